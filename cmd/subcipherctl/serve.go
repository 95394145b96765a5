package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RowanDark/subcipher/internal/api"
	"github.com/RowanDark/subcipher/internal/cipher"
	"github.com/RowanDark/subcipher/internal/history"
	"github.com/RowanDark/subcipher/internal/logging"
	"github.com/RowanDark/subcipher/internal/observability/tracing"
)

func runServe(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, args, stdout, stderr)
}

// serve runs the API until ctx is cancelled.
func serve(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("serve", stderr)
	addr := fs.String("addr", "", "listen address (defaults to api.addr from config)")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	log := logging.NewCommandLogger(stderr, *verbose)

	shutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: "subcipher-api",
		SampleRatio: cfg.Tracing.SampleRatio,
		FilePath:    cfg.Tracing.File,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: setup tracing: %v\n", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	auditOpts := []logging.Option{logging.WithoutStdout(), logging.WithWriter(stdout)}
	if cfg.AuditLog != "" {
		auditOpts = []logging.Option{logging.WithoutStdout(), logging.WithFile(cfg.AuditLog)}
	}
	audit, err := logging.NewAuditLogger("api", auditOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "error: open audit log: %v\n", err)
		return 1
	}
	defer audit.Close()

	recipes := cipher.NewRecipeManager(cfg.RecipesDir)
	if err := recipes.LoadRecipes(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		defer store.Close()
	}

	srv, err := api.NewServer(api.Config{
		Addr:        cfg.API.Addr,
		DefaultSeed: cfg.DefaultSeed,
		Recipes:     recipes,
		History:     store,
		Logger:      audit,
		Log:         log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
