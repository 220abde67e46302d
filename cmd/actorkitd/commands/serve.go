package commands

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"
	"github.com/skeinforge/actorkit/actor"
	"github.com/skeinforge/actorkit/internal/buildinfo"
	"github.com/skeinforge/actorkit/logging"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var (
	listenAddr      string
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an actorkit ActorSystem",
	Long: `serve constructs an ActorSystem with the reference logging package
wired in and blocks until interrupted. With --listen set, it additionally
registers actorkit's remote transport on a grpc.Server and accepts
remote-mode child-host requests from peer actorkitd processes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(
		&listenAddr, "listen", "",
		"Address to accept remote actor-hosting connections on "+
			"(empty disables the remote transport)",
	)
	serveCmd.Flags().DurationVar(
		&shutdownTimeout, "shutdown-timeout", 30*time.Second,
		"Bound on how long graceful shutdown waits for the "+
			"supervision tree to tear down",
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		loggerImpl actor.LoggerImpl
		closeLog   func() error
	)

	if logDir != "" {
		impl, closer, err := logging.NewRotating(&buildinfo.LogRotatorConfig{
			LogDir:         logDir,
			MaxLogFiles:    maxLogFiles,
			MaxLogFileSize: maxLogFileSize,
		})
		if err != nil {
			return fmt.Errorf("initializing rotating logger: %w", err)
		}
		loggerImpl, closeLog = impl, closer
	} else {
		loggerImpl = logging.New(
			btclog.NewSLogger(btclog.NewDefaultHandler(os.Stdout)).
				WithPrefix(actor.Subsystem),
		)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// UseLogger wires the kernel's own internal subsystem logger (mailbox
	// lifecycle traces, replica respawn failures); it is independent of the
	// per-actor LoggerImpl behaviors log through above.
	actor.UseLogger(btclog.NewSLogger(btclog.NewDefaultHandler(os.Stdout)).
		WithPrefix(actor.Subsystem))

	sys, err := actor.NewActorSystem(actor.SystemConfig{
		Logger: actor.LoggerRef{Impl: loggerImpl},
		LoggerConfig: actor.LoggerConfig{
			Categories: map[string]actor.Level{"default": actor.LevelInfo},
		},
	})
	if err != nil {
		return fmt.Errorf("starting actor system: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var grpcServer *grpc.Server
	if listenAddr != "" {
		lis, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return fmt.Errorf("listening on %q: %w", listenAddr, err)
		}

		grpcServer = grpc.NewServer()
		actor.ListenRemote(sys, grpcServer)

		go func() {
			log.Printf("actorkitd listening for remote actors on %s", listenAddr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("remote transport server stopped: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("actorkitd started")
	<-sigCh
	log.Println("shutting down")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer shutdownCancel()

	if err := sys.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("actor system shutdown incomplete: %w", err)
	}

	return nil
}
