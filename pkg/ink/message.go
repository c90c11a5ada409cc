package ink

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindStrokeStart    Kind = "stroke-start"
	KindStrokePoints   Kind = "stroke-points"
	KindStrokeEnd      Kind = "stroke-end"
	KindUndo           Kind = "undo"
	KindStrokeFull     Kind = "stroke-full"
	KindStrokeSnapshot Kind = "stroke-snapshot"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownKind = errors.New("unknown message kind")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Meta is the stroke metadata carried by stroke-start and stroke-end. The id is only present on stroke-start.
type Meta struct {
	ID      string `json:"id,omitempty"`
	OwnerID string `json:"ownerId" validate:"required"`
	Color   string `json:"color" validate:"required"`
	Width   int    `json:"width" validate:"gte=1,lte=32767"`
}

// Message is a decoded client frame. Only the fields relevant to Kind are populated.
type Message struct {
	Kind   Kind      `json:"kind"`
	ID     string    `json:"id,omitempty"`
	Stroke *Meta     `json:"stroke,omitempty"`
	First  []float64 `json:"first,omitempty"`
	Pts    []float64 `json:"pts,omitempty"`
}

// StrokeID returns the id the message refers to. stroke-start carries it inside the metadata.
func (m Message) StrokeID() string {
	if m.Kind == KindStrokeStart && m.Stroke != nil {
		return m.Stroke.ID
	}
	return m.ID
}

// Decode parses a raw client frame and checks that it carries what its kind needs. The returned error
// wraps ErrMalformed or ErrUnknownKind. The Kind is populated whenever the frame was valid JSON.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	switch m.Kind {
	case KindStrokeStart:
		if m.Stroke == nil || m.Stroke.ID == "" {
			return m, fmt.Errorf("%w: stroke-start without stroke id", ErrMalformed)
		}
	case KindStrokePoints:
		if m.ID == "" {
			return m, fmt.Errorf("%w: stroke-points without id", ErrMalformed)
		}
	case KindStrokeEnd:
		if m.ID == "" || m.Stroke == nil {
			return m, fmt.Errorf("%w: stroke-end without id or stroke", ErrMalformed)
		}
		if err := validate.Struct(m.Stroke); err != nil {
			return m, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	case KindUndo:
		if m.ID == "" {
			return m, fmt.Errorf("%w: undo without id", ErrMalformed)
		}
	default:
		return m, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return m, nil
}

// EncodeStart builds a stroke-start frame. It is used by clients of the relay.
func EncodeStart(meta Meta, x, y float64) ([]byte, error) {
	return json.Marshal(Message{Kind: KindStrokeStart, Stroke: &meta, First: []float64{x, y}})
}

func EncodePoints(id string, pts []float64) ([]byte, error) {
	return json.Marshal(Message{Kind: KindStrokePoints, ID: id, Pts: pts})
}

func EncodeEnd(id string, meta Meta) ([]byte, error) {
	meta.ID = ""
	return json.Marshal(Message{Kind: KindStrokeEnd, ID: id, Stroke: &meta})
}

func EncodeUndo(id string) ([]byte, error) {
	return json.Marshal(Message{Kind: KindUndo, ID: id})
}
