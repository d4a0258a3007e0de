package storage

import (
	"context"
	"testing"
	"time"
)

// testContext returns a context that is cancelled when the test ends
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
