package emergency

import (
	"sync"
	"testing"
)

func TestKmutexSerializesPerKey(t *testing.T) {
	km := newKmutex()

	var mu sync.Mutex
	counts := map[string]int{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				km.lock(key)
				defer km.unlock(key)

				mu.Lock()
				counts[key]++
				mu.Unlock()
			}(key)
		}
	}
	wg.Wait()

	if counts["a"] != 50 || counts["b"] != 50 {
		t.Fatalf("lost increments: %v", counts)
	}
	if n := len(km.locks); n != 0 {
		t.Fatalf("expected all key state released, %d entries remain", n)
	}
}
