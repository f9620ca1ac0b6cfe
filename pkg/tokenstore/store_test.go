package tokenstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory_InitiallyEmpty(t *testing.T) {
	s := NewMemory()
	p, ok := s.Get()
	assert.False(t, ok)
	assert.Equal(t, Pair{}, p)
}

func TestMemory_LastWriteWins(t *testing.T) {
	s := NewMemory()
	s.Set(Pair{AccessToken: "a1", RefreshToken: "r1"})
	s.Set(Pair{AccessToken: "a2", RefreshToken: "r2"})

	p, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, Pair{AccessToken: "a2", RefreshToken: "r2"}, p)
}

func TestMemory_EmptyAccessTokenResets(t *testing.T) {
	s := NewMemory()
	s.Set(Pair{AccessToken: "a1"})
	s.Set(Pair{RefreshToken: "only-refresh"})

	_, ok := s.Get()
	assert.False(t, ok)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Set(Pair{AccessToken: fmt.Sprintf("token-%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			if p, ok := s.Get(); ok {
				assert.NotEmpty(t, p.AccessToken)
			}
		}()
	}
	wg.Wait()

	_, ok := s.Get()
	assert.True(t, ok)
}
