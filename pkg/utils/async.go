package utils

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

const maxGoroutineRestarts = 10

// EnsureRunGoroutine runs f in a goroutine and restarts it when it panics. The process exits
// after too many consecutive restarts.
func EnsureRunGoroutine(logger *zap.Logger, name string, f func(), tryCount ...int) {
	try := 0
	if len(tryCount) > 0 {
		try = tryCount[0]
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked",
					zap.String("name", name),
					zap.Int("try", try),
					zap.String("panic", fmt.Sprintf("%v", r)),
					zap.String("stack", string(debug.Stack())),
				)
				time.Sleep(1 * time.Second)
				if try > maxGoroutineRestarts {
					os.Exit(1)
				}
				EnsureRunGoroutine(logger, name, f, try+1)
			}
		}()

		f()
	}()
}
