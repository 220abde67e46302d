package actor

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// TestMain lets this package's own test binary double as the forked-child
// worker its WithMode(ModeForked) tests spawn: dialForked re-execs
// os.Executable(), which for a test run is this compiled test binary, with
// ACTORKIT_CHILD_HOST set. Intercepting that here, before m.Run() drives any
// *testing.T, mirrors exactly how cmd/actorkitd/main.go branches in
// production.
func TestMain(m *testing.M) {
	if IsChildHost() {
		if err := RunChildHost(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	os.Exit(m.Run())
}
