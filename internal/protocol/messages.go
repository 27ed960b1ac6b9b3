package protocol

import (
	"time"

	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/world"
)

// MessageType identifies the kind of broadcast sent over a room channel.
type MessageType string

const (
	// Any peer
	MsgPlayerMove       MessageType = "playerMove"
	MsgBlockPlaced      MessageType = "blockPlaced"
	MsgBlockRemoved     MessageType = "blockRemoved"
	MsgChatMessage      MessageType = "chatMessage"
	MsgPlayerPushed     MessageType = "playerPushed"
	MsgPlayerFell       MessageType = "playerFell"
	MsgPlayerNameChange MessageType = "playerNameChange"

	// Election and sync
	MsgHostClaim     MessageType = "hostClaim"
	MsgHostHeartbeat MessageType = "hostHeartbeat"
	MsgStateRequest  MessageType = "stateRequest"
	MsgStateSnapshot MessageType = "stateSnapshot"

	// Host only
	MsgNPCState        MessageType = "npcState"
	MsgNPCStomped      MessageType = "npcStomped"
	MsgNPCRespawned    MessageType = "npcRespawned"
	MsgScoreUpdate     MessageType = "scoreUpdate"
	MsgModeState       MessageType = "modeState"
	MsgReturnToLobby   MessageType = "returnToLobby"
	MsgInfectionSpread MessageType = "infectionSpread"
	MsgPlayerKicked    MessageType = "playerKicked"
)

// --- Player payloads ---

// PlayerMove is a player's own position report.
type PlayerMove struct {
	PlayerID  string          `json:"playerId"`
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Z         int             `json:"z"`
	Direction world.Direction `json:"direction"`
	PreviousY int             `json:"previousY"`
	Score     *int            `json:"score,omitempty"`
	Infected  *bool           `json:"isInfected,omitempty"`
}

// BlockPlaced announces a new non-floor block.
type BlockPlaced struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Color    string `json:"color"`
	PlacedBy string `json:"placedBy"`
}

// BlockRemoved announces a removed non-floor block.
type BlockRemoved struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

type ChatKind string

const (
	ChatPlayer ChatKind = "player"
	ChatSystem ChatKind = "system"
)

// ChatMessage is a chat line. System lines have no player attribution.
type ChatMessage struct {
	ID          string    `json:"id"`
	Type        ChatKind  `json:"type"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	PlayerID    string    `json:"playerId,omitempty"`
	PlayerName  string    `json:"playerName,omitempty"`
	PlayerColor string    `json:"playerColor,omitempty"`
}

// PlayerPushed moves a victim after a push.
type PlayerPushed struct {
	AttackerID string `json:"attackerId"`
	VictimID   string `json:"victimId"`
	NewX       int    `json:"newX"`
	NewY       int    `json:"newY"`
	NewZ       int    `json:"newZ"`
	Tiles      int    `json:"tiles"`
}

// PlayerFell starts a fall off the world edge.
type PlayerFell struct {
	PlayerID      string          `json:"playerId"`
	X             int             `json:"x"`
	Y             int             `json:"y"`
	Z             int             `json:"z"`
	FallDirection world.Direction `json:"fallDirection"`
}

// PlayerNameChange renames a player.
type PlayerNameChange struct {
	PlayerID string `json:"playerId"`
	OldName  string `json:"oldName"`
	NewName  string `json:"newName"`
}

// --- Election and sync payloads ---

// HostClaim is a candidate's bid during an election round.
type HostClaim struct {
	CandidateID string    `json:"candidateId"`
	Timestamp   time.Time `json:"ts"`
}

// HostHeartbeat is sent by the host every second.
type HostHeartbeat struct {
	HostID    string    `json:"hostId"`
	Timestamp time.Time `json:"t"`
}

// StateRequest asks the host for a snapshot.
type StateRequest struct {
	RequesterID string `json:"requesterId"`
}

// StateSnapshot answers a StateRequest. To names the requester.
type StateSnapshot struct {
	To       string   `json:"to"`
	Snapshot Snapshot `json:"snapshot"`
}

// Snapshot is a full copy of replicated room state.
type Snapshot struct {
	Blocks      []world.Block `json:"blocks"`
	NPCs        []world.NPC   `json:"npcs"`
	ChatHistory []ChatMessage `json:"chatHistory"`
	GameMode    mode.Kind     `json:"gameMode"`
	Stomp       *mode.Match   `json:"stomp,omitempty"`
	Koth        *mode.Match   `json:"koth,omitempty"`
	Players     []RosterEntry `json:"players"`
}

// RosterEntry is one player in a snapshot.
type RosterEntry struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	X          int             `json:"x"`
	Y          int             `json:"y"`
	Z          int             `json:"z"`
	Direction  world.Direction `json:"direction"`
	Score      int             `json:"score"`
	Infected   bool            `json:"isInfected"`
	InfectedAt time.Time       `json:"infectedAt"`
}

// --- Host payloads ---

// NPCState carries every NPC after a simulation tick.
type NPCState struct {
	NPCs      []world.NPC `json:"npcs"`
	Timestamp time.Time   `json:"t"`
}

// NPCStomped marks an NPC dead.
type NPCStomped struct {
	NPCID      string `json:"npcId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// NPCRespawned carries a revived NPC.
type NPCRespawned struct {
	NPC world.NPC `json:"npc"`
}

// ScoreUpdate sets a player's score.
type ScoreUpdate struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// ReturnToLobby sends every peer back to room selection after a delay.
type ReturnToLobby struct {
	Message string `json:"message"`
	DelayMs *int64 `json:"delayMs,omitempty"`
}

// InfectionSpread marks a player infected. Source is empty for a random pick.
type InfectionSpread struct {
	TargetID   string `json:"targetId"`
	TargetName string `json:"targetName"`
	SourceID   string `json:"sourceId,omitempty"`
	SourceName string `json:"sourceName,omitempty"`
}

// PlayerKicked removes a player by host decision.
type PlayerKicked struct {
	KickedID   string `json:"kickedId"`
	KickedName string `json:"kickedName"`
}

// --- Presence metadata ---

// PlayerMeta is what each peer tracks on the room channel.
type PlayerMeta struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Color    string `json:"color"`
}

// RoomListing is what a host tracks on the directory channel.
type RoomListing struct {
	RoomID      string    `json:"roomId"`
	RoomName    string    `json:"roomName"`
	GameMode    mode.Kind `json:"gameMode"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	CreatedAt   time.Time `json:"createdAt"`
}
