// Package app provides the supportdesk server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/supportdesk/cmd/supportdesk/app/options"
	"github.com/kart-io/supportdesk/internal/supportdesk"
	"github.com/kart-io/supportdesk/pkg/app"
)

const (
	// Name is the name of the application.
	Name = "supportdesk"

	// commandDesc is the description of the command.
	commandDesc = `Customer Support Chat Service

A retrieval-augmented customer support chat service.

This server provides:
  - Knowledge base document ingestion with vector embeddings
  - Intent-aware semantic retrieval over support documents
  - LLM-generated answers grounded in the knowledge base
  - Session management with conversation history`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithWatchConfig(),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := supportdesk.NewServer(cfg)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal forces immediate exit.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
