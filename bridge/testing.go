package bridge

import (
	"context"
	"sync"
)

// Shared context for tests, created once to amortize the shim cold start.
// Tests that need an isolated runtime (reset, memory limits, trackers)
// create their own.
var (
	testContext     *Context
	testContextOnce sync.Once
	testContextErr  error
)

// GetTestContext returns a shared context for testing. Tests using it must
// pick globally unique names for anything they bind.
func GetTestContext() (*Context, error) {
	testContextOnce.Do(func() {
		testContext, testContextErr = New(context.Background())
	})
	return testContext, testContextErr
}
