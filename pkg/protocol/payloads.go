package protocol

// Client -> Server payloads.

type CreateRoomRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type SelectVehicleRequest struct {
	VehicleType int `json:"vehicleType"`
}

type AddAIRequest struct {
	Team int `json:"team"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type TileDestroyed struct {
	TX int `json:"tx"`
	TY int `json:"ty"`
}

// VehicleState is the periodic position snapshot. Clients send it without
// PlayerID/Name; the relay attaches both before fan-out as a gameState event.
type VehicleState struct {
	PlayerID    string  `json:"playerId,omitempty"`
	Name        string  `json:"name,omitempty"`
	VehicleType int     `json:"vehicleType"`
	Team        int     `json:"team"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Heading     float64 `json:"heading"`
	Turret      float64 `json:"turret"`
	HP          int     `json:"hp"`
	Fuel        int     `json:"fuel"`
	Ammo        int     `json:"ammo"`
	Alive       bool    `json:"alive"`
	HasFlag     bool    `json:"hasFlag"`
}

// VehicleDamage is sent by the shooting client only; AttackerID is attached
// server-side.
type VehicleDamage struct {
	AttackerID string `json:"attackerId,omitempty"`
	TargetID   string `json:"targetId"`
	Damage     int    `json:"damage"`
}

type VehicleRespawn struct {
	PlayerID    string  `json:"playerId,omitempty"`
	VehicleType int     `json:"vehicleType"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// Flag event actions.
const (
	FlagPickup  = "pickup"
	FlagCapture = "capture"
	FlagDrop    = "drop"
	FlagReturn  = "return"
)

// FlagEvent mutates the per-team flag mirrors. Team is the flag's owning
// team; PlayerID is attached server-side.
type FlagEvent struct {
	PlayerID string  `json:"playerId,omitempty"`
	Action   string  `json:"action"`
	Team     int     `json:"team"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type ChatMessage struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

// Server -> Client payloads.

type Connected struct {
	ID string `json:"id"`
}

type RoomSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	State      string `json:"state"`
}

type RoomListPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

type RoomJoined struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
	PlayerID string `json:"playerId"`
	Team     int    `json:"team"`
	IsHost   bool   `json:"isHost"`
}

type PlayerInfo struct {
	ID          string `json:"id"`
	Team        int    `json:"team"`
	VehicleType int    `json:"vehicleType"`
	Ready       bool   `json:"ready"`
	Name        string `json:"name"`
	IsAI        bool   `json:"isAI"`
}

type LobbyUpdate struct {
	Players   []PlayerInfo `json:"players"`
	Countdown int          `json:"countdown"`
	HostID    string       `json:"hostId"`
	RoomName  string       `json:"roomName"`
}

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

type GameStart struct {
	MapSeed int64        `json:"mapSeed"`
	Players []PlayerInfo `json:"players"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
