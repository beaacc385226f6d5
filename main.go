package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/markis/gh-transcript/internal/args"
	"github.com/markis/gh-transcript/internal/client"
	"github.com/markis/gh-transcript/internal/config"
	"github.com/markis/gh-transcript/internal/history"
	"github.com/markis/gh-transcript/internal/logging"
	"github.com/markis/gh-transcript/internal/render"
	"github.com/markis/gh-transcript/internal/transcript"
)

// main function to parse arguments and initiate the chat request.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()

	if errors.Is(err, args.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := args.ParseArgs(ctx, *cfg)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if a.Debug {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	finalizer := transcript.Finalizer{RepairJSON: cfg.Payload.RepairJSON, Logger: logger}
	renderer := render.NewTerminalRenderer(os.Stdout, a.UsePlainText, cfg.Render.Wrap)

	switch a.Action {
	case args.ActionHistoryList:
		store, err := openHistory(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		turns, err := store.List(ctx, a.HistoryLimit)
		if err != nil {
			return err
		}
		fmt.Println(render.HistoryTable(turns))
		return nil

	case args.ActionHistoryShow:
		store, err := openHistory(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		turn, err := store.Get(ctx, a.HistoryID)
		if err != nil {
			return err
		}
		return renderer.RenderText(finalizer.FormatHistoryText(turn.RawOutput))
	}

	req := client.Request{
		Prompt:    a.Prompt(),
		Model:     a.Model,
		Stop:      a.Stop,
		Snapshots: a.Snapshots,
	}
	result, err := client.Ask(ctx, req, renderer, finalizer, logger)
	if err != nil {
		return err
	}
	if a.NoHistory {
		return nil
	}

	store, err := openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Save(ctx, &history.Turn{
		Model:      req.Model,
		Prompt:     req.Prompt,
		RawOutput:  result.Raw,
		Transcript: result.Transcript,
	})
}

func openHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*history.Store, error) {
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve history path: %w", err)
	}
	store, err := history.Open(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}
