// Package viz renders a board's committed strokes to an image.
package viz

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"

	"github.com/astromechza/ink-relay/pkg/ink"
)

// RenderBoardToPng draws strokes in order onto a white canvas and writes it to outputPath.
func RenderBoardToPng(strokes []ink.Stroke, width, height int, outputPath string) error {
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	for _, s := range strokes {
		if s.Pairs() == 0 {
			continue
		}
		dc.SetHexColor(s.Color)
		dc.SetLineWidth(float64(s.Width))
		if s.Pairs() == 1 {
			// a tap leaves a dot rather than a zero length line
			dc.DrawCircle(s.Points[0], s.Points[1], float64(s.Width)/2)
			dc.Fill()
			continue
		}
		dc.MoveTo(s.Points[0], s.Points[1])
		for i := 2; i+1 < len(s.Points); i += 2 {
			dc.LineTo(s.Points[i], s.Points[i+1])
		}
		dc.Stroke()
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

func RenderToTemp(strokes []ink.Stroke, width, height int) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.png", time.Now().UnixNano(), rand.Int()))
	if err := RenderBoardToPng(strokes, width, height, tf); err != nil {
		return "", err
	}
	return tf, nil
}
