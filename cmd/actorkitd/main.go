package main

import (
	"context"
	"fmt"
	"os"

	"github.com/skeinforge/actorkit/actor"
	"github.com/skeinforge/actorkit/cmd/actorkitd/commands"
)

func main() {
	// A forked child is re-exec'd from this same binary with
	// ACTORKIT_CHILD_HOST set in its environment; service its wire
	// protocol instead of running the CLI below.
	if actor.IsChildHost() {
		if err := actor.RunChildHost(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
