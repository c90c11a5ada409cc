package ink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  string
		wantErr error
	}{
		{
			name:   "start",
			raw:    `{"kind":"stroke-start","stroke":{"id":"s1","ownerId":"o","color":"#000","width":2},"first":[1,2]}`,
			wantID: "s1",
		},
		{
			name:   "points",
			raw:    `{"kind":"stroke-points","id":"s1","pts":[1,1,2,2]}`,
			wantID: "s1",
		},
		{
			name:   "end",
			raw:    `{"kind":"stroke-end","id":"s1","stroke":{"ownerId":"o","color":"#ff0000","width":4}}`,
			wantID: "s1",
		},
		{
			name:   "undo",
			raw:    `{"kind":"undo","id":"s1"}`,
			wantID: "s1",
		},
		{name: "not json", raw: `{nope`, wantErr: ErrMalformed},
		{name: "start without id", raw: `{"kind":"stroke-start","stroke":{"ownerId":"o"},"first":[0,0]}`, wantErr: ErrMalformed},
		{name: "points without id", raw: `{"kind":"stroke-points","pts":[0,0]}`, wantErr: ErrMalformed},
		{name: "end without stroke", raw: `{"kind":"stroke-end","id":"s1"}`, wantErr: ErrMalformed},
		{name: "end zero width", raw: `{"kind":"stroke-end","id":"s1","stroke":{"ownerId":"o","color":"#000","width":0}}`, wantErr: ErrMalformed},
		{name: "end huge width", raw: `{"kind":"stroke-end","id":"s1","stroke":{"ownerId":"o","color":"#000","width":40000}}`, wantErr: ErrMalformed},
		{name: "end without owner", raw: `{"kind":"stroke-end","id":"s1","stroke":{"color":"#000","width":2}}`, wantErr: ErrMalformed},
		{name: "undo without id", raw: `{"kind":"undo"}`, wantErr: ErrMalformed},
		{name: "unknown", raw: `{"kind":"cursor","id":"s1"}`, wantErr: ErrUnknownKind},
		{name: "server kind from client", raw: `{"kind":"stroke-full","stroke":{}}`, wantErr: ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, m.StrokeID())
		})
	}
}

func TestEncodeRoundTripThroughDecode(t *testing.T) {
	meta := Meta{ID: "s9", OwnerID: "owner", Color: "#00ff00", Width: 3}

	raw, err := EncodeStart(meta, 4, 5)
	require.NoError(t, err)
	m, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindStrokeStart, m.Kind)
	assert.Equal(t, []float64{4, 5}, m.First)

	raw, err = EncodeEnd("s9", meta)
	require.NoError(t, err)
	m, err = Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "s9", m.ID)
	assert.Empty(t, m.Stroke.ID)
	assert.Equal(t, 3, m.Stroke.Width)
}

func TestEncodeFullUsesEmptyArrayForNoPoints(t *testing.T) {
	raw, err := EncodeFull(Stroke{ID: "a", OwnerID: "o", Color: "#000", Width: 1})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "stroke-full", got["kind"])
	assert.Equal(t, []any{}, got["stroke"].(map[string]any)["points"])

	raw, err = EncodeSnapshot("b", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"stroke-snapshot","id":"b","points":[]}`, string(raw))
}
