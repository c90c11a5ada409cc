package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/astromechza/ink-relay/pkg/ink"
)

var palette = []string{"#000000", "#e63946", "#2a9d8f", "#264653", "#f4a261"}

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "127.0.0.1:8080", "the address of the relay")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addrVar, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	b := &bot{conn: conn, owner: uuid.NewString()}
	slog.Info("connected", "url", u.String(), "owner", b.owner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		b.readContinuously()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.drawRandomlyContinuously(ctx)
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("Signal caught", "sig", sig)
	case <-ctx.Done():
		slog.Info("connection lost")
	}
	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()

	wg.Wait()
	slog.Info("drew strokes", "count", b.drawn)
	return nil
}

type bot struct {
	conn  *websocket.Conn
	owner string
	drawn int
	last  string
}

func (b *bot) readContinuously() {
	counts := map[ink.Kind]int{}
	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			slog.Info("stopped reading", "err", err, "received", counts)
			return
		}
		var m ink.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			slog.Warn("received undecodable frame", "err", err)
			continue
		}
		counts[m.Kind]++
		slog.Debug("received", "kind", m.Kind, "stroke", m.StrokeID())
	}
}

func (b *bot) drawRandomlyContinuously(ctx context.Context) {
	for {
		t := time.NewTimer(time.Second + time.Second*time.Duration(rand.Intn(3)))
		select {
		case <-t.C:
			var err error
			if b.last != "" && rand.Intn(5) == 0 {
				err = b.undo()
			} else {
				err = b.draw(ctx)
			}
			if err != nil {
				slog.Error("failed to draw", "err", err)
				return
			}
		case <-ctx.Done():
			t.Stop()
			slog.Info("stopping scheduled drawing")
			return
		}
	}
}

// draw sends a wobbly circle as a start frame, a few points batches and an end frame.
func (b *bot) draw(ctx context.Context) error {
	meta := ink.Meta{
		ID:      uuid.NewString(),
		OwnerID: b.owner,
		Color:   palette[rand.Intn(len(palette))],
		Width:   1 + rand.Intn(8),
	}
	cx, cy, radius := 100+rand.Float64()*800, 100+rand.Float64()*500, 20+rand.Float64()*80
	at := func(step int) (float64, float64) {
		a := float64(step) * math.Pi / 16
		r := radius + rand.Float64()*4
		return cx + r*math.Cos(a), cy + r*math.Sin(a)
	}

	x, y := at(0)
	frame, err := ink.EncodeStart(meta, x, y)
	if err != nil {
		return err
	}
	if err := b.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write start: %w", err)
	}
	for batch := 0; batch < 4; batch++ {
		pts := make([]float64, 0, 16)
		for i := 1; i <= 8; i++ {
			x, y := at(batch*8 + i)
			pts = append(pts, x, y)
		}
		if frame, err = ink.EncodePoints(meta.ID, pts); err != nil {
			return err
		}
		if err := b.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("failed to write points: %w", err)
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			// leave the stroke unfinished; the relay discards it when we disconnect
			return nil
		}
	}
	if frame, err = ink.EncodeEnd(meta.ID, meta); err != nil {
		return err
	}
	if err := b.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write end: %w", err)
	}
	b.drawn++
	b.last = meta.ID
	slog.Info("drew stroke", "stroke", meta.ID, "color", meta.Color, "width", meta.Width)
	return nil
}

func (b *bot) undo() error {
	frame, err := ink.EncodeUndo(b.last)
	if err != nil {
		return err
	}
	if err := b.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write undo: %w", err)
	}
	slog.Info("undid stroke", "stroke", b.last)
	b.drawn--
	b.last = ""
	return nil
}
