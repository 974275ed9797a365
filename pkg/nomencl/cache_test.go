package nomencl

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proarc/proarc-api/pkg/remote"
)

func TestGetCachesUntilExpiry(t *testing.T) {
	c := NewCache(time.Hour)
	var loads int32
	load := func(ctx context.Context) ([]remote.Nomenclature, error) {
		atomic.AddInt32(&loads, 1)
		return []remote.Nomenclature{{Kind: "documentType", Value: "periodical"}}, nil
	}

	key := Key("desa1", "operator1")
	for i := 0; i < 3; i++ {
		values, err := c.Get(context.Background(), key, load)
		require.NoError(t, err)
		assert.Len(t, values, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))

	c.Invalidate(key)
	_, err := c.Get(context.Background(), key, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	c := NewCache(time.Hour)
	var loads int32
	started := make(chan struct{})
	load := func(ctx context.Context) ([]remote.Nomenclature, error) {
		atomic.AddInt32(&loads, 1)
		<-started
		return []remote.Nomenclature{{Kind: "documentType", Value: "monograph"}}, nil
	}

	key := Key("desa1", "operator1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), key, load)
			assert.NoError(t, err)
		}()
	}
	close(started)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads), "one winner per cache key")
}

func TestDistinctOperatorsUseDistinctKeys(t *testing.T) {
	assert.NotEqual(t, Key("desa1", "a"), Key("desa1", "b"))
	assert.NotEqual(t, Key("desa1", "a"), Key("desa2", "a"))
}
