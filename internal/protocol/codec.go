package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Marshal splits an event into its type and JSON payload.
func Marshal(ev Event) (MessageType, json.RawMessage, error) {
	if ev == nil {
		return "", nil, errors.New("marshal nil event")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s: %w", ev.MessageType(), err)
	}
	return ev.MessageType(), raw, nil
}

// Unmarshal rebuilds an event from its type and payload.
func Unmarshal(t MessageType, raw json.RawMessage) (Event, error) {
	decode, ok := decoders[t]
	if !ok {
		return nil, fmt.Errorf("decode %q: %w", t, ErrUnknownMessage)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode %q: empty payload", t)
	}
	ev, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", t, err)
	}
	return ev, nil
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var decoders = map[MessageType]func(json.RawMessage) (Event, error){
	MsgPlayerMove:       decodeAs[PlayerMove],
	MsgBlockPlaced:      decodeAs[BlockPlaced],
	MsgBlockRemoved:     decodeAs[BlockRemoved],
	MsgChatMessage:      decodeAs[ChatMessage],
	MsgPlayerPushed:     decodeAs[PlayerPushed],
	MsgPlayerFell:       decodeAs[PlayerFell],
	MsgPlayerNameChange: decodeAs[PlayerNameChange],
	MsgHostClaim:        decodeAs[HostClaim],
	MsgHostHeartbeat:    decodeAs[HostHeartbeat],
	MsgStateRequest:     decodeAs[StateRequest],
	MsgStateSnapshot:    decodeAs[StateSnapshot],
	MsgNPCState:         decodeAs[NPCState],
	MsgNPCStomped:       decodeAs[NPCStomped],
	MsgNPCRespawned:     decodeAs[NPCRespawned],
	MsgScoreUpdate:      decodeAs[ScoreUpdate],
	MsgModeState:        decodeAs[ModeState],
	MsgReturnToLobby:    decodeAs[ReturnToLobby],
	MsgInfectionSpread:  decodeAs[InfectionSpread],
	MsgPlayerKicked:     decodeAs[PlayerKicked],
}
