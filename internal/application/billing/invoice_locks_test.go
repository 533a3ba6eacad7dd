package billing

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInvoiceLocks_SerialisesSameKey(t *testing.T) {
	locks := NewInvoiceLocks()
	key := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, locks.Len(), "entries are dropped once released")
}

func TestInvoiceLocks_OverlappingSetsDoNotDeadlock(t *testing.T) {
	locks := NewInvoiceLocks()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				keys := []uuid.UUID{a, b, c}
				if i%2 == 0 {
					keys = []uuid.UUID{c, b, a, a}
				}
				unlock := locks.Lock(keys...)
				unlock()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockers deadlocked")
	}
	assert.Zero(t, locks.Len())
}

func TestInvoiceLocks_DistinctKeysRunConcurrently(t *testing.T) {
	locks := NewInvoiceLocks()
	unlockA := locks.Lock(uuid.New())
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlock := locks.Lock(uuid.New())
		unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("unrelated key was blocked")
	}
}

func TestInvoiceLocks_UnlockTwice(t *testing.T) {
	locks := NewInvoiceLocks()
	key := uuid.New()

	unlock := locks.Lock(key)
	unlock()
	unlock()

	assert.Zero(t, locks.Len())
	relock := locks.Lock(key)
	relock()
}
