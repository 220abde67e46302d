package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoggerCategoryGating asserts that LoggerConfig.Categories gates
// emission per actor: an actor with no category entry inherits "default"
// (here Silent), while an actor matched by name logs at its configured
// level.
func TestLoggerCategoryGating(t *testing.T) {
	t.Parallel()

	capture := newCaptureLoggerImpl()

	sys, err := NewActorSystem(SystemConfig{
		Logger: LoggerRef{Impl: capture},
		LoggerConfig: LoggerConfig{
			Categories: map[string]Level{
				"default": LevelSilent,
				"root":    LevelInfo,
			},
		},
		Root: simpleFactory(func() *funcBehavior {
			return &funcBehavior{
				handlers: map[string]HandlerFunc{
					"test": func(ctx context.Context, self ActorRef, payload any) (any, error) {
						self.GetLog().Info(payload.(string))
						self.GetLog().Debug(payload.(string))
						return nil, nil
					},
				},
			}
		}),
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	root := sys.Root()

	_, err = root.SendAndReceive(context.Background(), "test", "Hello!").Await(context.Background()).Unpack()
	require.NoError(t, err)

	// Info is at the actor's configured level and is captured; Debug is
	// above it and is gated out entirely.
	require.Equal(t, []string{"Hello!"}, capture.infoRecords())
}

// TestLoggerDefaultCategoryGatesUnlistedActors asserts that an actor with no
// matching category entry falls back to "default" rather than always
// logging.
func TestLoggerDefaultCategoryGatesUnlistedActors(t *testing.T) {
	t.Parallel()

	capture := newCaptureLoggerImpl()

	sys, err := NewActorSystem(SystemConfig{
		Logger: LoggerRef{Impl: capture},
		LoggerConfig: LoggerConfig{
			Categories: map[string]Level{"default": LevelSilent},
		},
		Root: simpleFactory(func() *funcBehavior {
			return &funcBehavior{
				handlers: map[string]HandlerFunc{
					"test": func(ctx context.Context, self ActorRef, payload any) (any, error) {
						self.GetLog().Info(payload.(string))
						return nil, nil
					},
				},
			}
		}),
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	_, err = sys.Root().SendAndReceive(context.Background(), "test", "quiet").Await(context.Background()).Unpack()
	require.NoError(t, err)

	require.Empty(t, capture.infoRecords())
}
