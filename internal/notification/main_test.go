package notification

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Idle keep-alive connections from the shared transport.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
