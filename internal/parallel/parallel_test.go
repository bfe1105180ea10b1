package parallel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(100), counter)
}

func TestRange_CoversAllOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 10}
	seen := make([]int32, 257)

	var mu sync.Mutex
	var ranges int
	err := Range(len(seen), func(lo, hi int) error {
		mu.Lock()
		ranges++
		mu.Unlock()
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
		return nil
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, ranges)
	for i, c := range seen {
		assert.EqualValues(t, 1, c, "index %d", i)
	}
}

func TestRange_SmallInputRunsInline(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}
	var calls int
	err := Range(100, func(lo, hi int) error {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 100, hi)
		return nil
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRange_Error(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	boom := errors.New("boom")
	err := Range(16, func(lo, _ int) error {
		if lo == 0 {
			return boom
		}
		return nil
	}, cfg)
	assert.ErrorIs(t, err, boom)
}

func TestRange_Empty(t *testing.T) {
	called := false
	require.NoError(t, Range(0, func(_, _ int) error { called = true; return nil }, DefaultConfig()))
	assert.False(t, called)
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("TENSORCORE_NUM_THREADS", "1")
	t.Setenv("TENSORCORE_MIN_CHUNK", "32")
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.NumWorkers)
	assert.Equal(t, 32, cfg.MinChunkSize)
}
