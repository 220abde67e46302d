package actor

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// forkedCapture is set, independently, by whichever process (this test
// binary or one of its re-exec'd forked children) resolves the logger name
// registered below -- each process's build() call only ever touches its own
// copy, which is exactly what a real forked actor's logger isolation
// requires.
var (
	forkedCaptureMu sync.Mutex
	forkedCapture   *captureLoggerImpl
)

const forkedCaptureLoggerName = "test/forked-capture-logger"

func init() {
	RegisterLoggerImpl(forkedCaptureLoggerName, func() LoggerImpl {
		c := newCaptureLoggerImpl()
		forkedCaptureMu.Lock()
		forkedCapture = c
		forkedCaptureMu.Unlock()
		return c
	})
}

const forkedLoggerBehaviorName = "test/forked-logger-actor"

func forkedLoggerBehaviorBuild() BehaviorFactory {
	return BehaviorFactory{
		Name: forkedLoggerBehaviorName,
		New: func(...any) BehaviorDefinition {
			return &funcBehavior{
				handlers: map[string]HandlerFunc{
					"test": func(ctx context.Context, self ActorRef, payload any) (any, error) {
						self.GetLog().Info(payload.(string))
						return nil, nil
					},
					"getLoggerMessages": func(ctx context.Context, self ActorRef, payload any) (any, error) {
						forkedCaptureMu.Lock()
						defer forkedCaptureMu.Unlock()
						if forkedCapture == nil {
							return []string{}, nil
						}
						return forkedCapture.infoRecords(), nil
					},
				},
			}
		},
	}
}

func init() {
	RegisterBehavior(forkedLoggerBehaviorName, forkedLoggerBehaviorBuild)
}

// TestForkedLoggerAcrossProcessBoundary mirrors TestLoggerCategoryGating but
// with the logged-to actor running as a forked child process: the logger is
// named rather than handed over directly, since a closure over an in-process
// value cannot itself cross the fork.
func TestForkedLoggerAcrossProcessBoundary(t *testing.T) {
	if testing.Short() {
		t.Skip("forks a subprocess")
	}
	t.Parallel()

	sys, err := NewActorSystem(SystemConfig{
		Logger: LoggerRef{Name: forkedCaptureLoggerName},
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	child, err := sys.Root().CreateChild(ctx, forkedLoggerBehaviorBuild(), WithMode(ModeForked))
	require.NoError(t, err)
	defer child.Destroy(ctx)

	_, err = child.SendAndReceive(ctx, "test", "Hello!").Await(ctx).Unpack()
	require.NoError(t, err)

	val, err := child.SendAndReceive(ctx, "getLoggerMessages", nil).Await(ctx).Unpack()
	require.NoError(t, err)

	msgs, ok := val.([]string)
	require.True(t, ok)
	require.Equal(t, []string{"Hello!"}, msgs)
}

const forkedPidBehaviorName = "test/forked-pid-actor"

func forkedPidBehaviorBuild() BehaviorFactory {
	return BehaviorFactory{
		Name: forkedPidBehaviorName,
		New: func(...any) BehaviorDefinition {
			return &funcBehavior{
				handlers: map[string]HandlerFunc{
					"getPid": func(ctx context.Context, self ActorRef, payload any) (any, error) {
						return os.Getpid(), nil
					},
				},
			}
		},
	}
}

func init() {
	RegisterBehavior(forkedPidBehaviorName, forkedPidBehaviorBuild)
}

// TestForkedRoundRobinCluster places a 3-replica forked cluster and checks
// that six successive deliveries land on processes in round-robin order --
// positions i and i+3 share a pid, no two of the first three share one, and
// none of them is this test's own process.
func TestForkedRoundRobinCluster(t *testing.T) {
	if testing.Short() {
		t.Skip("forks three subprocesses")
	}
	t.Parallel()

	sys, err := NewActorSystem(SystemConfig{})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	router, err := sys.Root().CreateChild(ctx, forkedPidBehaviorBuild(),
		WithMode(ModeForked), WithClusterSize(3))
	require.NoError(t, err)
	defer router.Destroy(ctx)

	pids := make([]int, 6)
	for i := range pids {
		val, err := router.SendAndReceive(ctx, "getPid", nil).Await(ctx).Unpack()
		require.NoError(t, err)
		pid, ok := val.(int)
		require.True(t, ok)
		pids[i] = pid
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, pids[i], pids[i+3], "position %d and %d should hit the same replica", i, i+3)
	}
	require.NotEqual(t, pids[0], pids[1])
	require.NotEqual(t, pids[1], pids[2])
	require.NotEqual(t, pids[0], pids[2])

	parentPid := os.Getpid()
	for _, pid := range pids {
		require.NotEqual(t, parentPid, pid)
	}
}
