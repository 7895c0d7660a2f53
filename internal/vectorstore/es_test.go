package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

// fakeEmbedder 返回固定向量，或注入的错误。
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeES 是内存版 Elasticsearch，只实现 _doc 和 _mget 两类端点。
type fakeES struct {
	mu        sync.Mutex
	docs      map[string]json.RawMessage
	indexed   int
	failAfter int // >0 时第 N+1 次索引写入返回 500
}

func newFakeES() *fakeES {
	return &fakeES{docs: make(map[string]json.RawMessage), failAfter: -1}
}

func (f *fakeES) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/_mget"):
		var req struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		type mdoc struct {
			Found  bool            `json:"found"`
			Source json.RawMessage `json:"_source,omitempty"`
		}
		resp := struct {
			Docs []mdoc `json:"docs"`
		}{}
		for _, id := range req.IDs {
			if src, ok := f.docs[id]; ok {
				resp.Docs = append(resp.Docs, mdoc{Found: true, Source: src})
			} else {
				resp.Docs = append(resp.Docs, mdoc{Found: false})
			}
		}
		_ = json.NewEncoder(w).Encode(resp)

	case strings.Contains(r.URL.Path, "/_doc/"):
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if r.Method == http.MethodDelete {
			if _, ok := f.docs[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"result":"not_found"}`)
				return
			}
			delete(f.docs, id)
			fmt.Fprint(w, `{"result":"deleted"}`)
			return
		}
		if f.failAfter >= 0 && f.indexed >= f.failAfter {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"boom"}`)
			return
		}
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.docs[id] = body
		f.indexed++
		fmt.Fprint(w, `{"result":"created"}`)

	default:
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"unsupported"}`)
	}
}

func newTestStore(t *testing.T, embedder *fakeEmbedder) (*ESStore, *fakeES) {
	t.Helper()
	fake := newFakeES()
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewESStore(client, "docs_en", model.LanguageEN, embedder, "test-model"), fake
}

func TestESStoreAddAndGet(t *testing.T) {
	store, fake := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	refs, err := store.Add(ctx, []model.Chunk{
		{Source: "https://example.org/a", Content: "first"},
		{Source: "https://example.org/a", Content: "second"},
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 2, fake.indexed)

	chunks, err := store.GetByIDs(ctx, []string{refs[0].ID, refs[1].ID})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "https://example.org/a", chunks[0].Source)
	assert.Equal(t, model.LanguageEN, chunks[0].Language)
	assert.NotEmpty(t, chunks[0].Vector)
}

func TestESStoreAddValidatesSource(t *testing.T) {
	store, fake := newTestStore(t, &fakeEmbedder{})

	_, err := store.Add(context.Background(), []model.Chunk{
		{Source: "https://example.org/a", Content: "ok"},
		{Source: "", Content: "missing"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingSource))
	// 校验失败发生在任何写入之前。
	assert.Zero(t, fake.indexed)
}

func TestESStoreAddEmbedFailureWritesNothing(t *testing.T) {
	store, fake := newTestStore(t, &fakeEmbedder{err: errors.New("嵌入服务超时")})

	_, err := store.Add(context.Background(), []model.Chunk{
		{Source: "https://example.org/a", Content: "x"},
	})
	require.Error(t, err)
	assert.Zero(t, fake.indexed)
}

func TestESStoreAddPartialWrite(t *testing.T) {
	store, fake := newTestStore(t, &fakeEmbedder{})
	fake.failAfter = 1

	_, err := store.Add(context.Background(), []model.Chunk{
		{Source: "s", Content: "a"},
		{Source: "s", Content: "b"},
		{Source: "s", Content: "c"},
	})
	require.Error(t, err)

	var pw *PartialWriteError
	require.True(t, errors.As(err, &pw))
	assert.Len(t, pw.Written, 1)
}

func TestESStoreDeleteMissingIDIsNoError(t *testing.T) {
	store, _ := newTestStore(t, &fakeEmbedder{})
	assert.NoError(t, store.Delete(context.Background(), []string{"does-not-exist"}))
}

func TestESStoreRestoreRequiresVector(t *testing.T) {
	store, fake := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	err := store.Restore(ctx, []model.Chunk{{ID: "id-1", Source: "s", Content: "x"}})
	assert.Error(t, err)

	err = store.Restore(ctx, []model.Chunk{{ID: "id-1", Source: "s", Content: "x", Vector: []float32{0.5}}})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.indexed)

	chunks, err := store.GetByIDs(ctx, []string{"id-1"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "id-1", chunks[0].ID)
}
