// ABOUTME: Pluggable decoding of inbound agent payloads into observations.
// ABOUTME: RawDecoder leaves observations alone; JSONDecoder applies partial telemetry.

package agent

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/teamera/basestation/internal/field"
)

// Decoder turns one inbound payload into observation updates. Decode is
// called with the agent's lock held and must not block.
type Decoder interface {
	Decode(payload []byte, obs *Observation) error
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(payload []byte, obs *Observation) error

// Decode calls f.
func (f DecoderFunc) Decode(payload []byte, obs *Observation) error {
	return f(payload, obs)
}

// RawDecoder accepts every payload and changes nothing. The receive loop
// still logs the raw bytes.
type RawDecoder struct{}

// Decode implements Decoder.
func (RawDecoder) Decode([]byte, *Observation) error { return nil }

// Telemetry is the JSON payload understood by JSONDecoder. Every field is
// optional; missing fields keep their previous value.
type Telemetry struct {
	Position    *orb.Point   `json:"position,omitempty"`
	Orientation *float64     `json:"orientation,omitempty"`
	Ball        *orb.Point   `json:"ball,omitempty"`
	Obstacles   *[]orb.Point `json:"obstacles,omitempty"`
}

// JSONDecoder decodes Telemetry payloads.
type JSONDecoder struct{}

// Decode implements Decoder.
func (JSONDecoder) Decode(payload []byte, obs *Observation) error {
	var t Telemetry
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("decoding telemetry: %w", err)
	}
	if t.Position != nil {
		obs.Position = *t.Position
	}
	if t.Orientation != nil {
		obs.Orientation = field.NormalizeHeading(*t.Orientation)
	}
	if t.Ball != nil {
		obs.Ball = *t.Ball
	}
	if t.Obstacles != nil {
		obs.Obstacles = append([]orb.Point(nil), (*t.Obstacles)...)
	}
	return nil
}

// DecoderByName returns the decoder registered under name ("raw" or "json").
func DecoderByName(name string) (Decoder, error) {
	switch name {
	case "", "raw":
		return RawDecoder{}, nil
	case "json":
		return JSONDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown payload decoder %q", name)
	}
}
