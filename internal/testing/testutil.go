// Package testing provides test utilities for the feedlog project.
//
// Upstream fakes run their handlers on server goroutines. Using t.Fatal or
// t.FailNow there does not stop the test, so those handlers report through
// GoroutineTest instead.
package testing

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Error Channel Pattern
// =============================================================================

// GoroutineTest collects errors from goroutines and reports them on Wait.
//
// Example usage:
//
//	gt := testutil.NewGoroutineTest(t)
//	defer gt.Wait()
//
//	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	    if r.Method != http.MethodPost {
//	        gt.Errorf("method = %s", r.Method)
//	    }
//	}))
type GoroutineTest struct {
	t      *testing.T
	wg     sync.WaitGroup
	errors chan error
}

// NewGoroutineTest creates a new GoroutineTest helper.
func NewGoroutineTest(t *testing.T) *GoroutineTest {
	return &GoroutineTest{
		t:      t,
		errors: make(chan error, 100), // buffered to avoid blocking
	}
}

// Go runs fn in a goroutine and records its error.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(); err != nil {
			gt.record(err)
		}
	}()
}

// Errorf records an error from any goroutine.
func (gt *GoroutineTest) Errorf(format string, args ...interface{}) {
	gt.record(fmt.Errorf(format, args...))
}

func (gt *GoroutineTest) record(err error) {
	select {
	case gt.errors <- err:
	default:
		gt.t.Logf("Error channel full, dropping error: %v", err)
	}
}

// Wait waits for goroutines started with Go and fails the test if any
// errors were recorded.
func (gt *GoroutineTest) Wait() {
	gt.wg.Wait()
	close(gt.errors)

	var errs []error
	for err := range gt.errors {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		gt.t.Errorf("Goroutine test failed with %d error(s):", len(errs))
		for i, err := range errs {
			gt.t.Errorf("  [%d] %v", i+1, err)
		}
		gt.t.FailNow()
	}
}

// Eventually waits for a condition to become true.
func Eventually(timeout, interval time.Duration, condition func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("condition not met within %v", timeout)
}
