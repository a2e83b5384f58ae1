// Package feed defines the wire model for the payment ops event stream.
package feed

import (
	"encoding/json"
	"fmt"
)

// FrameKind identifies the payload type of a stream frame.
type FrameKind string

const (
	KindTransaction   FrameKind = "transaction"
	KindDecision      FrameKind = "decision"
	KindMetrics       FrameKind = "metrics"
	KindCouncilDebate FrameKind = "council_debate"
)

// Known reports whether the kind is one the client understands.
// Unknown kinds are dropped by the session for forward compatibility.
func (k FrameKind) Known() bool {
	switch k {
	case KindTransaction, KindDecision, KindMetrics, KindCouncilDebate:
		return true
	}
	return false
}

// Frame is the envelope for every message on the stream. The payload shape
// is determined by Type and left raw until the session routes the frame.
type Frame struct {
	Type      FrameKind       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// ParseFrame decodes a raw stream message into a Frame. It validates the
// envelope only; payload decoding is deferred to the per-kind handlers.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("decode frame: missing type")
	}
	return &f, nil
}
