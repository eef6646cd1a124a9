package shortcode

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu    sync.Mutex
	codes map[string]bool
	count int64
	err   error
}

func newMemStore(codes ...string) *memStore {
	s := &memStore{codes: map[string]bool{}}
	for _, c := range codes {
		s.codes[c] = true
	}
	s.count = int64(len(codes))
	return s
}

func (s *memStore) ShortCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[code], s.err
}

func (s *memStore) CountShortCodes(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.err
}

func (s *memStore) AllShortCodes(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	return out, s.err
}

// sequence 返回一个按顺序给出候选短码的随机源
func sequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func TestRandomCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := RandomCode(CodeLength)
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.True(t, Valid(code), "code %q uses characters outside the alphabet", code)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("a0Z"))
	assert.False(t, Valid("ab"))
	assert.False(t, Valid("abcd"))
	assert.False(t, Valid("a-b"))
	assert.False(t, Valid("é1"))
}

func TestNext_SkipsExistingCodes(t *testing.T) {
	store := newMemStore("aaa")
	g := NewGenerator(store, 10, zap.NewNop().Sugar())
	g.random = sequence("aaa", "bbb")

	code, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bbb", code)
	assert.True(t, g.maybeUsed("aaa"), "a colliding code should be remembered")
}

func TestNext_SeededCodesSkipStoreLookup(t *testing.T) {
	store := newMemStore("xyz")
	g := NewGenerator(store, 10, zap.NewNop().Sugar())
	require.NoError(t, g.Seed(context.Background()))

	g.random = sequence("xyz", "q1Q")
	code, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "q1Q", code)
}

func TestNext_BoundedAttempts(t *testing.T) {
	store := newMemStore("aaa")
	g := NewGenerator(store, 5, zap.NewNop().Sugar())
	g.random = sequence("aaa")

	_, err := g.Next(context.Background())
	assert.ErrorIs(t, err, ErrSpaceExhausted)
}

func TestNext_RebuildsFilterAfterDeletes(t *testing.T) {
	store := newMemStore()
	g := NewGenerator(store, 9, zap.NewNop().Sugar())
	g.random = sequence("aaa", "bbb", "ccc")

	// 这些短码曾被使用，随后书签被删除，存储中已不存在
	for _, code := range []string{"aaa", "bbb", "ccc"} {
		g.MarkUsed(code)
	}

	code, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaa", code)
	assert.False(t, g.maybeUsed("bbb"), "the rebuilt filter only holds codes still in the store")
}

func TestNext_RebuildKeepsLiveCodes(t *testing.T) {
	store := newMemStore("aaa")
	g := NewGenerator(store, 4, zap.NewNop().Sugar())
	g.MarkUsed("aaa")
	g.MarkUsed("bbb")
	g.random = sequence("aaa", "bbb", "aaa", "bbb", "aaa", "bbb", "aaa", "bbb", "bbb")

	code, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bbb", code)
	assert.True(t, g.maybeUsed("aaa"))
}

func TestNext_CapacityReached(t *testing.T) {
	store := newMemStore()
	store.count = Capacity
	g := NewGenerator(store, 5, zap.NewNop().Sugar())

	_, err := g.Next(context.Background())
	assert.ErrorIs(t, err, ErrSpaceExhausted)
}

func TestNext_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("db down")
	g := NewGenerator(store, 5, zap.NewNop().Sugar())

	_, err := g.Next(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSpaceExhausted)
}

func TestNext_Concurrent(t *testing.T) {
	g := NewGenerator(newMemStore(), 0, zap.NewNop().Sugar())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := g.Next(context.Background())
			assert.NoError(t, err)
			g.MarkUsed(code)
		}()
	}
	wg.Wait()
}
