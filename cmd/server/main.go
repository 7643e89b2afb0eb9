package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/indicator/internal/core/config"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/injector"
)

func main() {
	path := flag.String("config", "", "path to a YAML config file")
	watch := flag.Bool("watch", true, "reload the config file when it changes")
	flag.Parse()

	cfg := config.Default()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := run(cfg, *path, *watch); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, path string, watch bool) error {
	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing server:", err)
		return err
	}
	defer cleanup()
	defer func() { _ = app.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reload <-chan *config.Config
	if path != "" && watch {
		w, err := config.Watch(ctx, path, app.Logger)
		if err != nil {
			app.Logger.Warn("Config watch disabled", log.Error(err))
		} else {
			defer w.Close()
			reload = w.Updates
		}
	}

	if err = app.Run(ctx, reload); err != nil {
		app.Logger.Error("Server failed", log.Error(err))
		return err
	}
	return nil
}
