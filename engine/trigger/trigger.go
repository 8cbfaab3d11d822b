package trigger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UseDefault marks a trigger fade duration that should fall back to the controller default.
const UseDefault float32 = -1

var (
	// ErrEmptyPayload is returned when a trigger payload carries no sequence id.
	ErrEmptyPayload = errors.New("trigger: payload names no sequence")
)

// Trigger is a request to play one sequence on one rig, or on every rig when Rig is empty.
type Trigger struct {
	// Sequence is the id of the sequence to play.
	Sequence string
	// Rig names the receiving rig. Empty delivers to every subscriber.
	Rig string
	// MaxWeight is the overlay weight to ramp to.
	MaxWeight float32
	// FadeIn is the overlay ramp-up duration in seconds, or UseDefault.
	FadeIn float32
	// FadeOut is the duration used when the overlay is later faded out, or UseDefault.
	FadeOut float32
	// Source describes where the trigger came from (for logs).
	Source string
}

// New creates a full-weight Trigger for sequence that uses the default fades.
//
// Parameters:
//   - sequence: the sequence id
//
// Returns:
//   - Trigger: the new trigger
func New(sequence string) Trigger {
	return Trigger{
		Sequence:  sequence,
		MaxWeight: 1,
		FadeIn:    UseDefault,
		FadeOut:   UseDefault,
	}
}

// payload is the JSON form of a trigger. Pointers distinguish absent fields from zero.
type payload struct {
	Sequence  string   `json:"sequence"`
	Rig       string   `json:"rig,omitempty"`
	MaxWeight *float32 `json:"max_weight,omitempty"`
	FadeIn    *float32 `json:"fade_in,omitempty"`
	FadeOut   *float32 `json:"fade_out,omitempty"`
}

// Parse decodes a trigger message. A payload starting with '{' is decoded as JSON
// ({"sequence": "wave", "rig": "hero", "max_weight": 0.5, "fade_in": 0.2, "fade_out": 0.4});
// anything else is taken as a bare sequence id. Absent fields keep the defaults of New.
//
// Parameters:
//   - data: the raw message payload
//
// Returns:
//   - Trigger: the decoded trigger
//   - error: ErrEmptyPayload if no sequence is named, or a JSON decoding error
func Parse(data []byte) (Trigger, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Trigger{}, ErrEmptyPayload
	}
	if data[0] != '{' {
		return New(string(data)), nil
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Trigger{}, fmt.Errorf("decoding trigger payload: %w", err)
	}
	if strings.TrimSpace(p.Sequence) == "" {
		return Trigger{}, ErrEmptyPayload
	}

	t := New(strings.TrimSpace(p.Sequence))
	t.Rig = p.Rig
	if p.MaxWeight != nil {
		t.MaxWeight = *p.MaxWeight
	}
	if p.FadeIn != nil {
		t.FadeIn = *p.FadeIn
	}
	if p.FadeOut != nil {
		t.FadeOut = *p.FadeOut
	}
	return t, nil
}
