package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gwctlcmd "github.com/gwctl/gwctl/pkg/gwctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := gwctlcmd.DefaultConfig()
	cfg.Context = ctx
	root := gwctlcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
