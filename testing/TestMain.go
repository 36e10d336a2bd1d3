// Package testing switches the process into test mode when imported for side
// effects from a _test.go file.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("LEDGER_OPERATION_TIMEOUT") == "" {
			_ = os.Setenv("LEDGER_OPERATION_TIMEOUT", "5s")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
