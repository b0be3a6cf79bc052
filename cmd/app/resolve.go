package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"

	"github.com/starford/flashdeck/internal"
	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/assets"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	wordStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	urlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	missStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve comma-separated words against the configured folder and print the deck",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "words",
				Aliases:  []string{"w"},
				Usage:    "Comma-separated words, e.g. \"apple, Ball\"",
				Required: true,
			},
		},
		Action: resolve,
	}
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Keep logs off the terminal table; warnings still reach stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	comps, err := internal.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	spinner, _ := pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithRemoveWhenDone(true).
		Start("Listing images...")

	res, err := comps.Resolver.Resolve(ctx, cfg.Source.FolderID, cmd.String("words"))
	if spinner != nil {
		_ = spinner.Stop()
	}

	switch {
	case errors.Is(err, apperr.ErrEmptyInput):
		fmt.Println(missStyle.Render("No words given."))
		return nil
	case errors.Is(err, apperr.ErrNoMatch):
		printResult(os.Stdout, res)
		return nil
	case err != nil:
		return err
	}

	printResult(os.Stdout, res)
	return nil
}

func printResult(w io.Writer, res *assets.Result) {
	if res == nil {
		return
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Deck (%d cards)", len(res.Deck))))
	b.WriteString("\n")
	for i, url := range res.Deck {
		word := ""
		if i < len(res.Matched) {
			word = res.Matched[i]
		}
		fmt.Fprintf(&b, "%3d  %s  %s\n", i+1, wordStyle.Render(word), urlStyle.Render(url))
	}
	if len(res.Deck) == 0 {
		b.WriteString(missStyle.Render("no match"))
		b.WriteString("\n")
	}
	if len(res.Missed) > 0 {
		b.WriteString(missStyle.Render("Missed: " + strings.Join(res.Missed, ", ")))
	} else {
		b.WriteString(okStyle.Render("All words matched"))
	}

	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
