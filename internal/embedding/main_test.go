package embedding

import (
	"testing"

	"go.uber.org/goleak"
)

// The client spawns nothing itself, but timeouts and rate limiting
// must not strand provider goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
