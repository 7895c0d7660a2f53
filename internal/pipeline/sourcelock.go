package pipeline

import (
	"sort"
	"sync"
)

// sourceLocks 按 source 串行化工作单元：同一 source 的并发更新/删除不得交错，
// 因为两者都假设 read-old → mutate → commit 期间没有并发写。
type sourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSourceLocks() *sourceLocks {
	return &sourceLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *sourceLocks) get(source string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[source]
	if !ok {
		m = &sync.Mutex{}
		s.locks[source] = m
	}
	return m
}

// lockAll 按排序后的顺序锁住一组 source，固定加锁顺序避免死锁。
// 返回的函数按相反顺序解锁。
func (s *sourceLocks) lockAll(sources []string) func() {
	uniq := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		uniq[src] = struct{}{}
	}
	ordered := make([]string, 0, len(uniq))
	for src := range uniq {
		ordered = append(ordered, src)
	}
	sort.Strings(ordered)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, src := range ordered {
		m := s.get(src)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
