package parallel

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestPool(t *testing.T, workers int) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(workers)
	if err != nil {
		t.Fatalf("NewWorkerPool(%d) failed: %v", workers, err)
	}
	return pool
}

// TestWorkerPoolBasicOperations tests basic worker pool functionality
func TestWorkerPoolBasicOperations(t *testing.T) {
	pool := newTestPool(t, 4)

	// Submit a simple task
	executed := false
	success := pool.Submit(func() {
		executed = true
	})

	if !success {
		t.Error("Task submission failed")
	}

	// Wait for task to complete
	if err := pool.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	if !executed {
		t.Error("Task was not executed")
	}
}

// TestWorkerPoolConcurrentSubmissions tests concurrent task submissions
func TestWorkerPoolConcurrentSubmissions(t *testing.T) {
	pool := newTestPool(t, 10)

	numTasks := 100
	var counter int64

	var wg sync.WaitGroup
	for i := 0; i < numTasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Submit(func() {
				atomic.AddInt64(&counter, 1)
			})
		}()
	}

	wg.Wait()
	pool.Close()

	if counter != int64(numTasks) {
		t.Errorf("Expected counter %d, got %d", numTasks, counter)
	}
}

// TestWorkerPoolSubmitAfterClose tests submitting to a closed pool
func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := newTestPool(t, 2)
	pool.Close()

	if pool.Submit(func() {}) {
		t.Error("Submit after Close should return false")
	}
}

// TestWorkerPoolMultipleClose tests that Close is idempotent
func TestWorkerPoolMultipleClose(t *testing.T) {
	pool := newTestPool(t, 2)
	pool.Close()
	pool.Close()
	if err := pool.Wait(); err != nil {
		t.Errorf("Wait after Close returned error: %v", err)
	}
}

// TestWorkerPoolWithPanic tests that panics are recovered and reported
func TestWorkerPoolWithPanic(t *testing.T) {
	pool := newTestPool(t, 4)

	var counter int64

	// Submit tasks that panic
	for i := 0; i < 5; i++ {
		pool.Submit(func() {
			panic("intentional panic")
		})
	}

	// Submit normal tasks
	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
		})
	}

	err := pool.Wait()
	if err == nil {
		t.Error("Expected Wait to report the recovered panic")
	}
	if counter != 10 {
		t.Errorf("Expected counter 10, got %d", counter)
	}
}

func TestWorkerPoolOverflow(t *testing.T) {
	// Test that extremely large worker counts are rejected with an error
	_, err := NewWorkerPool(math.MaxInt)
	if err == nil {
		t.Error("Expected error for too many workers")
	}
}

func TestWorkerPoolZeroWorkers(t *testing.T) {
	// Zero and negative workers default to 1
	for _, n := range []int{0, -5} {
		pool := newTestPool(t, n)
		if pool.workers != 1 {
			t.Errorf("Expected 1 worker for %d, got %d", n, pool.workers)
		}
		pool.Close()
	}
}

func TestForEachIndex(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		out := make([]int, 50)
		err := ForEachIndex(workers, len(out), func(i int) {
			out[i] = i * i
		})
		if err != nil {
			t.Fatalf("ForEachIndex(%d) failed: %v", workers, err)
		}
		for i, v := range out {
			if v != i*i {
				t.Fatalf("workers=%d: out[%d] = %d, want %d", workers, i, v, i*i)
			}
		}
	}
}

func TestForEachIndex_Empty(t *testing.T) {
	called := false
	if err := ForEachIndex(4, 0, func(int) { called = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("fn should not be called for n = 0")
	}
}

func TestForEachIndex_Panic(t *testing.T) {
	err := ForEachIndex(2, 4, func(i int) {
		if i == 2 {
			panic("bad row")
		}
	})
	if err == nil {
		t.Error("Expected error from panicking task")
	}
}

// BenchmarkWorkerPoolThroughput benchmarks worker pool throughput
func BenchmarkWorkerPoolThroughput(b *testing.B) {
	pool, _ := NewWorkerPool(10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Submit(func() {
			// Minimal work
		})
	}

	pool.Close()
}
