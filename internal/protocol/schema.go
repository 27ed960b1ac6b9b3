package protocol

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Catalog groups every payload so a single schema documents the wire.
type Catalog struct {
	PlayerMove       PlayerMove       `json:"playerMove"`
	BlockPlaced      BlockPlaced      `json:"blockPlaced"`
	BlockRemoved     BlockRemoved     `json:"blockRemoved"`
	ChatMessage      ChatMessage      `json:"chatMessage"`
	PlayerPushed     PlayerPushed     `json:"playerPushed"`
	PlayerFell       PlayerFell       `json:"playerFell"`
	PlayerNameChange PlayerNameChange `json:"playerNameChange"`
	HostClaim        HostClaim        `json:"hostClaim"`
	HostHeartbeat    HostHeartbeat    `json:"hostHeartbeat"`
	StateRequest     StateRequest     `json:"stateRequest"`
	StateSnapshot    StateSnapshot    `json:"stateSnapshot"`
	NPCState         NPCState         `json:"npcState"`
	NPCStomped       NPCStomped       `json:"npcStomped"`
	NPCRespawned     NPCRespawned     `json:"npcRespawned"`
	ScoreUpdate      ScoreUpdate      `json:"scoreUpdate"`
	ModeState        ModeState        `json:"modeState"`
	ReturnToLobby    ReturnToLobby    `json:"returnToLobby"`
	InfectionSpread  InfectionSpread  `json:"infectionSpread"`
	PlayerKicked     PlayerKicked     `json:"playerKicked"`
	PlayerMeta       PlayerMeta       `json:"playerMeta"`
	RoomListing      RoomListing      `json:"roomListing"`
	Frame            Frame            `json:"frame"`
}

// Schema reflects the catalog into a JSON schema.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Catalog))
	schema.Title = "Tower Attack wire catalog"
	schema.Description = "Room broadcasts, presence metadata and relay frames"
	return schema
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
