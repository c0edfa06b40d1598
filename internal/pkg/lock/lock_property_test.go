package lock

import (
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

// TestLockSerializesProperty checks that updates made under Lock for the
// same key match sequential execution.
func TestLockSerializesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(0, 100000).Draw(t, "initial")
		amounts := rapid.SliceOfN(rapid.Int64Range(-500, 500), 2, 20).Draw(t, "amounts")
		key := rapid.Int64Range(1, 1000000).Draw(t, "key")

		kl := New()
		counter := initial
		expected := initial
		for _, a := range amounts {
			expected += a
		}

		var wg sync.WaitGroup
		wg.Add(len(amounts))
		for _, a := range amounts {
			go func(amount int64) {
				defer wg.Done()
				kl.Lock(key)
				defer kl.Unlock(key)
				counter += amount
			}(a)
		}
		wg.Wait()

		if counter != expected {
			t.Fatalf("expected %d, got %d", expected, counter)
		}
		if kl.IsLocked(key) {
			t.Fatal("key should be released after all goroutines finish")
		}
	})
}

func TestWithLockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		step := rapid.Int64Range(1, 100).Draw(t, "step")
		key := rapid.Int64Range(1, 1000000).Draw(t, "key")

		kl := New()
		var total int64

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = kl.WithLock(key, func() error {
					total += step
					return nil
				})
			}()
		}
		wg.Wait()

		if total != int64(numOps)*step {
			t.Fatalf("expected %d, got %d", int64(numOps)*step, total)
		}
	})
}

// TestTryLockSingleHolderProperty checks that while one caller holds a key
// every TryLock on it fails, and that other keys stay available.
func TestTryLockSingleHolderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.Int64Range(1, 1000000).Draw(t, "key")
		other := rapid.Int64Range(1, 1000000).Filter(func(v int64) bool { return v != key }).Draw(t, "other")
		attempts := rapid.IntRange(2, 20).Draw(t, "attempts")

		kl := New()
		if !kl.TryLock(key) {
			t.Fatal("first TryLock should succeed")
		}

		var acquired atomic.Int32
		var wg sync.WaitGroup
		wg.Add(attempts)
		for i := 0; i < attempts; i++ {
			go func() {
				defer wg.Done()
				if kl.TryLock(key) {
					acquired.Add(1)
				}
			}()
		}
		wg.Wait()

		if acquired.Load() != 0 {
			t.Fatalf("TryLock succeeded %d times while key was held", acquired.Load())
		}
		if !kl.TryLock(other) {
			t.Fatal("unrelated key should be available")
		}
		kl.Unlock(other)

		kl.Unlock(key)
		if kl.IsLocked(key) {
			t.Fatal("key should be released")
		}
		if !kl.TryLock(key) {
			t.Fatal("key should be available after unlock")
		}
		kl.Unlock(key)
	})
}

func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.Int64Range(1, 1000000).Draw(t, "key")
		cycles := rapid.IntRange(1, 50).Draw(t, "cycles")

		kl := New()
		for i := 0; i < cycles; i++ {
			kl.Lock(key)
			kl.Unlock(key)
		}

		if len(kl.locks) != 0 {
			t.Fatalf("expected no tracked keys, got %d", len(kl.locks))
		}
		if !kl.TryLock(key) {
			t.Fatal("lock should be available after symmetric cycles")
		}
		kl.Unlock(key)
	})
}

func TestUnlockUnknownKey(t *testing.T) {
	kl := New()
	kl.Unlock(42)
	if kl.IsLocked(42) {
		t.Fatal("unknown key should not be locked")
	}
}
