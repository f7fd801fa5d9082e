package protocol

import "encoding/json"

// Client -> Server
const (
	MsgGetRooms        = "getRooms"
	MsgCreateRoom      = "createRoom"
	MsgJoinRoom        = "joinRoom"
	MsgLeaveRoom       = "leaveRoom"
	MsgSelectVehicle   = "selectVehicle"
	MsgStartGame       = "startGame"
	MsgCancelCountdown = "cancelCountdown"
	MsgToggleReady     = "toggleReady"
	MsgSwitchTeam      = "switchTeam"
	MsgAddAI           = "addAI"
	MsgVehicleState    = "vehicleState"
	MsgVehicleDamage   = "vehicleDamage"
	MsgVehicleRespawn  = "vehicleRespawn"
	MsgFlagEvent       = "flagEvent"
	MsgTileDestroyed   = "tileDestroyed"
	MsgChatMessage     = "chatMessage"
)

// Server -> Client
const (
	MsgConnected   = "connected"
	MsgRoomList    = "roomList"
	MsgRoomJoined  = "roomJoined"
	MsgLobbyUpdate = "lobbyUpdate"
	MsgPlayerLeft  = "playerLeft"
	MsgCountdown   = "countdown"
	MsgGameStart   = "gameStart"
	MsgGameState   = "gameState"
	MsgError       = "error"
)

// Envelope is the wire frame: a type discriminator plus the message payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope by marshalling payload. A nil payload yields an
// envelope with no payload field.
func New(msgType string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, err
	}
	env.Payload = raw
	return env, nil
}

// MustNew is New for payloads built from server-side structs, which cannot
// fail to marshal.
func MustNew(msgType string, payload any) Envelope {
	env, err := New(msgType, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if e.Payload == nil {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(e.Payload, v)
}
