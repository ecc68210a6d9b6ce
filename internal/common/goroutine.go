package common

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

var spawned atomic.Int64

// GetGoroutineCount returns how many goroutines were started through
// SafeGo and SafeGoWithContext.
func GetGoroutineCount() int64 {
	return spawned.Load()
}

func logRecovered(logger arbor.ILogger, name string, r any) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	if logger == nil {
		fmt.Fprintf(os.Stderr, "panic in goroutine %s: %v\n%s\n", name, r, buf[:n])
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", string(buf[:n])).
		Msg("Recovered panic in background goroutine")
}

// SafeGo runs fn in a goroutine that recovers and logs panics instead
// of taking the process down. Use it for fire-and-forget work such as
// event fan-out and job execution.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	spawned.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logRecovered(logger, name, r)
			}
		}()
		fn()
	}()
}

// SafeGoWithContext is SafeGo for work tied to a context: if ctx is
// already cancelled when the goroutine gets scheduled, fn never runs.
func SafeGoWithContext(ctx context.Context, logger arbor.ILogger, name string, fn func()) {
	spawned.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logRecovered(logger, name, r)
			}
		}()
		if ctx.Err() != nil {
			return
		}
		fn()
	}()
}
