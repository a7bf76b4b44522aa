package redisstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplan/internal/store"
	"studyplan/internal/store/storetest"
)

// These tests need a reachable Redis; set STUDYPLAN_TEST_REDIS=host:port.
func openTest(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("STUDYPLAN_TEST_REDIS")
	if addr == "" {
		t.Skip("STUDYPLAN_TEST_REDIS not set")
	}
	s, err := Open(context.Background(), Options{Addr: addr, Prefix: "studyplan-test-" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBackend(t *testing.T) {
	storetest.RunBackendTests(t, func(t *testing.T) store.Backend {
		return openTest(t)
	})
}

func TestLockerSerializes(t *testing.T) {
	s := openTest(t)
	l := NewLocker(s.Client(), s.prefix)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, store.SeriesKey("p1"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
