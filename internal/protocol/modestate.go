package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hersh/towerattack/internal/mode"
)

// ModeStateType discriminates the modeState payload.
type ModeStateType string

const (
	StompState  ModeStateType = "classicStompState"
	StompEnded  ModeStateType = "classicStompEnded"
	KothState   ModeStateType = "kothState"
	KothControl ModeStateType = "kothControl"
	KothEnded   ModeStateType = "kothEnded"
)

// ModeState is a host-driven mode change. Exactly one of Match, Control and
// Result is set, according to Type.
type ModeState struct {
	Type    ModeStateType `json:"type"`
	Match   *mode.Match   `json:"-"`
	Control *mode.Control `json:"-"`
	Result  *mode.Result  `json:"-"`
}

type modeStateWire struct {
	Type    ModeStateType   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (m ModeState) MarshalJSON() ([]byte, error) {
	var payload any
	switch m.Type {
	case StompState, KothState:
		payload = m.Match
	case KothControl:
		payload = m.Control
	case StompEnded, KothEnded:
		payload = m.Result
	default:
		return nil, fmt.Errorf("mode state %q: %w", m.Type, ErrUnknownMessage)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(modeStateWire{Type: m.Type, Payload: raw})
}

func (m *ModeState) UnmarshalJSON(b []byte) error {
	var w modeStateWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = ModeState{Type: w.Type}
	switch w.Type {
	case StompState, KothState:
		m.Match = new(mode.Match)
		return unmarshalOptional(w.Payload, m.Match)
	case KothControl:
		m.Control = new(mode.Control)
		return unmarshalOptional(w.Payload, m.Control)
	case StompEnded, KothEnded:
		m.Result = new(mode.Result)
		return unmarshalOptional(w.Payload, m.Result)
	}
	return fmt.Errorf("mode state %q: %w", w.Type, ErrUnknownMessage)
}

func unmarshalOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
