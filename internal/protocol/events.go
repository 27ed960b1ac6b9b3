package protocol

// Event is the closed set of room broadcasts. Accept dispatches to the
// matching Handler method, so adding a kind means adding a method there.
type Event interface {
	MessageType() MessageType
	Accept(h Handler)
	sealed()
}

// Handler receives one callback per event kind.
type Handler interface {
	OnPlayerMove(PlayerMove)
	OnBlockPlaced(BlockPlaced)
	OnBlockRemoved(BlockRemoved)
	OnChatMessage(ChatMessage)
	OnPlayerPushed(PlayerPushed)
	OnPlayerFell(PlayerFell)
	OnPlayerNameChange(PlayerNameChange)
	OnHostClaim(HostClaim)
	OnHostHeartbeat(HostHeartbeat)
	OnStateRequest(StateRequest)
	OnStateSnapshot(StateSnapshot)
	OnNPCState(NPCState)
	OnNPCStomped(NPCStomped)
	OnNPCRespawned(NPCRespawned)
	OnScoreUpdate(ScoreUpdate)
	OnModeState(ModeState)
	OnReturnToLobby(ReturnToLobby)
	OnInfectionSpread(InfectionSpread)
	OnPlayerKicked(PlayerKicked)
}

func (PlayerMove) MessageType() MessageType       { return MsgPlayerMove }
func (BlockPlaced) MessageType() MessageType      { return MsgBlockPlaced }
func (BlockRemoved) MessageType() MessageType     { return MsgBlockRemoved }
func (ChatMessage) MessageType() MessageType      { return MsgChatMessage }
func (PlayerPushed) MessageType() MessageType     { return MsgPlayerPushed }
func (PlayerFell) MessageType() MessageType       { return MsgPlayerFell }
func (PlayerNameChange) MessageType() MessageType { return MsgPlayerNameChange }
func (HostClaim) MessageType() MessageType        { return MsgHostClaim }
func (HostHeartbeat) MessageType() MessageType    { return MsgHostHeartbeat }
func (StateRequest) MessageType() MessageType     { return MsgStateRequest }
func (StateSnapshot) MessageType() MessageType    { return MsgStateSnapshot }
func (NPCState) MessageType() MessageType         { return MsgNPCState }
func (NPCStomped) MessageType() MessageType       { return MsgNPCStomped }
func (NPCRespawned) MessageType() MessageType     { return MsgNPCRespawned }
func (ScoreUpdate) MessageType() MessageType      { return MsgScoreUpdate }
func (ModeState) MessageType() MessageType        { return MsgModeState }
func (ReturnToLobby) MessageType() MessageType    { return MsgReturnToLobby }
func (InfectionSpread) MessageType() MessageType  { return MsgInfectionSpread }
func (PlayerKicked) MessageType() MessageType     { return MsgPlayerKicked }

func (e PlayerMove) Accept(h Handler)       { h.OnPlayerMove(e) }
func (e BlockPlaced) Accept(h Handler)      { h.OnBlockPlaced(e) }
func (e BlockRemoved) Accept(h Handler)     { h.OnBlockRemoved(e) }
func (e ChatMessage) Accept(h Handler)      { h.OnChatMessage(e) }
func (e PlayerPushed) Accept(h Handler)     { h.OnPlayerPushed(e) }
func (e PlayerFell) Accept(h Handler)       { h.OnPlayerFell(e) }
func (e PlayerNameChange) Accept(h Handler) { h.OnPlayerNameChange(e) }
func (e HostClaim) Accept(h Handler)        { h.OnHostClaim(e) }
func (e HostHeartbeat) Accept(h Handler)    { h.OnHostHeartbeat(e) }
func (e StateRequest) Accept(h Handler)     { h.OnStateRequest(e) }
func (e StateSnapshot) Accept(h Handler)    { h.OnStateSnapshot(e) }
func (e NPCState) Accept(h Handler)         { h.OnNPCState(e) }
func (e NPCStomped) Accept(h Handler)       { h.OnNPCStomped(e) }
func (e NPCRespawned) Accept(h Handler)     { h.OnNPCRespawned(e) }
func (e ScoreUpdate) Accept(h Handler)      { h.OnScoreUpdate(e) }
func (e ModeState) Accept(h Handler)        { h.OnModeState(e) }
func (e ReturnToLobby) Accept(h Handler)    { h.OnReturnToLobby(e) }
func (e InfectionSpread) Accept(h Handler)  { h.OnInfectionSpread(e) }
func (e PlayerKicked) Accept(h Handler)     { h.OnPlayerKicked(e) }

func (PlayerMove) sealed()       {}
func (BlockPlaced) sealed()      {}
func (BlockRemoved) sealed()     {}
func (ChatMessage) sealed()      {}
func (PlayerPushed) sealed()     {}
func (PlayerFell) sealed()       {}
func (PlayerNameChange) sealed() {}
func (HostClaim) sealed()        {}
func (HostHeartbeat) sealed()    {}
func (StateRequest) sealed()     {}
func (StateSnapshot) sealed()    {}
func (NPCState) sealed()         {}
func (NPCStomped) sealed()       {}
func (NPCRespawned) sealed()     {}
func (ScoreUpdate) sealed()      {}
func (ModeState) sealed()        {}
func (ReturnToLobby) sealed()    {}
func (InfectionSpread) sealed()  {}
func (PlayerKicked) sealed()     {}
