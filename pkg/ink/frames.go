package ink

import "encoding/json"

// FullStroke is the body of a stroke-full frame.
type FullStroke struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"ownerId"`
	Color   string    `json:"color"`
	Width   int       `json:"width"`
	Points  []float64 `json:"points"`
}

// FullFrame describes a committed stroke sent to a joining client.
type FullFrame struct {
	Kind   Kind       `json:"kind"`
	Stroke FullStroke `json:"stroke"`
}

// SnapshotFrame describes an in-flight stroke sent to a joining client. Metadata arrives later with stroke-end.
type SnapshotFrame struct {
	Kind   Kind      `json:"kind"`
	ID     string    `json:"id"`
	Points []float64 `json:"points"`
}

func EncodeFull(s Stroke) ([]byte, error) {
	return json.Marshal(FullFrame{
		Kind: KindStrokeFull,
		Stroke: FullStroke{
			ID:      s.ID,
			OwnerID: s.OwnerID,
			Color:   s.Color,
			Width:   s.Width,
			Points:  nonNil(s.Points),
		},
	})
}

func EncodeSnapshot(id string, points []float64) ([]byte, error) {
	return json.Marshal(SnapshotFrame{Kind: KindStrokeSnapshot, ID: id, Points: nonNil(points)})
}

func nonNil(p []float64) []float64 {
	if p == nil {
		return []float64{}
	}
	return p
}
