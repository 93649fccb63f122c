// Command apicall invokes operations declared in a YAML method registry.
//
//	apicall methods --registry api.yaml
//	apicall invoke --registry api.yaml --base-url https://api.example.com GetUser 42
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
