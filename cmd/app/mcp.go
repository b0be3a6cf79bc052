package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/flashdeck/internal"
	"github.com/starford/flashdeck/internal/mcpserver"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve resolve and list tools over MCP stdio",
		Action: serveMCP,
	}
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	comps, err := internal.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	var opts []mcpserver.Option
	if comps.History != nil {
		opts = append(opts, mcpserver.WithHistory(comps.History))
	}
	if comps.Cards != nil {
		opts = append(opts, mcpserver.WithCards(comps.Cards))
	}

	srv := mcpserver.New(comps.Resolver, cfg.Source.FolderID, opts...)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
