// Package testing switches the binaries into test mode when blank-imported
// by a test, and points every backend at something that cannot leak.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var testDefaults = map[string]string{
	"STORE_DRIVER":    "memory",
	"ARCHIVE_BACKEND": "none",
	"GOTENBERG_URL":   "http://127.0.0.1:0",
}

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("HVACDESK_TEST_MODE", "1")
		for key, value := range testDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
