package idgen

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_MonotonicAndUnique(t *testing.T) {
	s := &Snowflake{workerID: 1}

	seen := make(map[int64]struct{})
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		assert.Greater(t, id, prev)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestGenerate_ConcurrentUnique(t *testing.T) {
	s := &Snowflake{workerID: 1}

	var mu sync.Mutex
	seen := make(map[int64]struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				id := s.Generate()
				mu.Lock()
				_, dup := seen[id]
				seen[id] = struct{}{}
				mu.Unlock()
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
}

func TestGenerateOrderNo_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD\d{14}\d{8}$`)
	no := GenerateOrderNo()
	assert.Regexp(t, pattern, no)

	txnPattern := regexp.MustCompile(`^TXN\d{14}\d{8}$`)
	assert.Regexp(t, txnPattern, GenerateTransactionNo())
}
