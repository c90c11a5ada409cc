// Package ink holds the stroke model and the JSON wire protocol spoken between browsers and the relay.
package ink

import "time"

// Stroke is one committed pen gesture on a board.
type Stroke struct {
	ID        string
	SessionID string
	OwnerID   string
	Color     string
	Width     int
	Points    []float64 // flattened x,y pairs
	CreatedAt time.Time
}

// Pairs returns the number of complete coordinate pairs in the stroke.
func (s Stroke) Pairs() int {
	return len(s.Points) / 2
}
