package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("WEBBUILDER_TEST_MODE", "1")
		if os.Getenv("JWT_ACCESS_SECRET") == "" {
			_ = os.Setenv("JWT_ACCESS_SECRET", "test-access-secret-0123456789abcdef")
		}
		if os.Getenv("JWT_REFRESH_SECRET") == "" {
			_ = os.Setenv("JWT_REFRESH_SECRET", "test-refresh-secret-0123456789abcdef")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets packages opt into test mode explicitly.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
