package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btclog/v2"
	"github.com/skeinforge/actorkit/actor"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsBtclogPerLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := btclog.NewDefaultHandler(&buf)
	impl := New(btclog.NewSLogger(handler).WithPrefix(actor.Subsystem))

	impl.Info("my-actor", "hello")
	impl.Error("my-actor", "boom")

	out := buf.String()
	require.Contains(t, out, "my-actor")
	require.Contains(t, out, "hello")
	require.Contains(t, out, "boom")
}

// TestDefaultRegisteredNameResolves asserts this package's init() actually
// registered its default implementation under DefaultRegisteredName, so a
// forked or remote worker resolving a LoggerRef by that name alone succeeds.
func TestDefaultRegisteredNameResolves(t *testing.T) {
	t.Parallel()

	sys, err := actor.NewActorSystem(actor.SystemConfig{
		Logger: actor.LoggerRef{Name: DefaultRegisteredName},
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())
}
