package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/astromechza/ink-relay/pkg/config"
	"github.com/astromechza/ink-relay/pkg/store"
	"github.com/astromechza/ink-relay/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	sessionVar := flag.String("session", config.DefaultSessionID, "the board to dump")
	outVar := flag.String("out", "", "write the rendered board here instead of a temp file")
	widthVar := flag.Int("width", 1920, "render width")
	heightVar := flag.Int("height", 1080, "render height")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("expected one position argument: the database to read")
	}
	if _, err := os.Stat(flag.Arg(0)); err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}

	db, err := store.OpenSQLite(flag.Arg(0))
	if err != nil {
		return err
	}
	defer db.Close()

	strokes, err := db.ListBySession(context.Background(), *sessionVar)
	if err != nil {
		return fmt.Errorf("failed to load strokes: %w", err)
	}
	slog.Info("loaded board", "session", *sessionVar, "strokes", len(strokes))

	for i, s := range strokes {
		slog.Info("stroke", "i", fmt.Sprintf("%4d", i), "id", s.ID, "owner", s.OwnerID, "color", s.Color, "width", s.Width, "points", s.Pairs(), "created", s.CreatedAt)
	}

	out := *outVar
	if out == "" {
		out, err = viz.RenderToTemp(strokes, *widthVar, *heightVar)
	} else {
		err = viz.RenderBoardToPng(strokes, *widthVar, *heightVar, out)
	}
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	slog.Info("rendered", "path", "file://"+out)
	return nil
}
