package client

import (
	"flagrush/internal/mapgen"
	"flagrush/pkg/protocol"
)

const (
	MaxHP   = 100
	MaxFuel = 100
	MaxAmmo = 50
)

// Vehicle is the client-local gameplay entity, either the local player's
// vehicle or a mirror of a remote one rebuilt from snapshots.
type Vehicle struct {
	ID      string
	Type    int
	Team    int
	X, Y    float64
	Heading float64
	Turret  float64
	HP      int
	Fuel    int
	Ammo    int
	Alive   bool
	HasFlag bool
}

// Flag mirrors one team's flag. CarrierID is a weak reference into the
// vehicle set, never owned.
type Flag struct {
	Team      int
	X, Y      float64
	BaseX     float64
	BaseY     float64
	AtBase    bool
	Carried   bool
	CarrierID string
}

// World is the local simulation mirror. Remote state is whatever the last
// relayed events said it was; the relay never corrects it.
type World struct {
	LocalID string
	Local   *Vehicle
	Remotes map[string]*Vehicle
	Names   map[string]string // display labels only, no gameplay authority
	Flags   [2]*Flag
	Scores  [2]int
	Map     *mapgen.Map
}

func NewWorld(localID string) *World {
	return &World{
		LocalID: localID,
		Remotes: make(map[string]*Vehicle),
		Names:   make(map[string]string),
	}
}

// StartMatch regenerates the deterministic map from the shared seed and
// spawns the local vehicle at its team base.
func (w *World) StartMatch(seed int64, round int, team, vehicleType int) {
	w.Map = mapgen.Generate(seed, round)
	w.Remotes = make(map[string]*Vehicle)
	w.Scores = [2]int{}

	for i := 0; i < 2; i++ {
		base := w.Map.Flags[i]
		w.Flags[i] = &Flag{
			Team:   i + 1,
			X:      float64(base.X),
			Y:      float64(base.Y),
			BaseX:  float64(base.X),
			BaseY:  float64(base.Y),
			AtBase: true,
		}
	}

	spawn := w.Map.Bases[team-1]
	w.Local = &Vehicle{
		ID:    w.LocalID,
		Type:  vehicleType,
		Team:  team,
		X:     float64(spawn.X),
		Y:     float64(spawn.Y),
		HP:    MaxHP,
		Fuel:  MaxFuel,
		Ammo:  MaxAmmo,
		Alive: true,
	}
}

// ApplyGameState reconciles one remote snapshot. Unknown senders are
// synthesized; a changed vehicle type means the player redeployed, so the
// mirror is rebuilt before the state lands.
func (w *World) ApplyGameState(vs protocol.VehicleState) {
	if vs.PlayerID == "" || vs.PlayerID == w.LocalID {
		return
	}
	v, ok := w.Remotes[vs.PlayerID]
	if !ok {
		if !vs.Alive {
			// Nothing to update and nothing worth creating.
			return
		}
		v = &Vehicle{ID: vs.PlayerID}
		w.Remotes[vs.PlayerID] = v
	} else if v.Type != vs.VehicleType {
		v = &Vehicle{ID: vs.PlayerID}
		w.Remotes[vs.PlayerID] = v
	}

	v.Type = vs.VehicleType
	v.Team = vs.Team
	v.X, v.Y = vs.X, vs.Y
	v.Heading = vs.Heading
	v.Turret = vs.Turret
	v.HP = vs.HP
	v.Fuel = vs.Fuel
	v.Ammo = vs.Ammo
	v.Alive = vs.Alive
	v.HasFlag = vs.HasFlag
	if vs.Name != "" {
		w.Names[vs.PlayerID] = vs.Name
	}
}

// ApplyDamage applies a relayed hit to whichever entity it targets. Damage
// authority is caller-side: the local vehicle takes relayed damage too, and
// every mirror applies it so all clients converge on the same HP.
func (w *World) ApplyDamage(targetID string, damage int) {
	var v *Vehicle
	if targetID == w.LocalID {
		v = w.Local
	} else {
		v = w.Remotes[targetID]
	}
	if v == nil {
		return
	}
	v.HP -= damage
	if v.HP <= 0 {
		v.HP = 0
		v.Alive = false
	}
}

func (w *World) ApplyRespawn(playerID string, vehicleType int, x, y float64) {
	if playerID == "" || playerID == w.LocalID {
		return
	}
	v := &Vehicle{
		ID:    playerID,
		Type:  vehicleType,
		X:     x,
		Y:     y,
		HP:    MaxHP,
		Fuel:  MaxFuel,
		Ammo:  MaxAmmo,
		Alive: true,
	}
	if old, ok := w.Remotes[playerID]; ok {
		v.Team = old.Team
	}
	w.Remotes[playerID] = v
}

// ApplyFlagEvent mutates the flag mirror for one of the four flag actions.
// Capture increments the score counter directly; a duplicated capture event
// therefore double-counts. Known limitation of the relay trust model, kept.
func (w *World) ApplyFlagEvent(action string, team int, playerID string, x, y float64) {
	if team != 1 && team != 2 {
		return
	}
	f := w.Flags[team-1]
	if f == nil {
		return
	}
	switch action {
	case protocol.FlagPickup:
		f.Carried = true
		f.AtBase = false
		f.CarrierID = playerID
	case protocol.FlagDrop:
		f.Carried = false
		f.CarrierID = ""
		f.X, f.Y = x, y
	case protocol.FlagReturn:
		f.Carried = false
		f.CarrierID = ""
		f.AtBase = true
		f.X, f.Y = f.BaseX, f.BaseY
	case protocol.FlagCapture:
		w.Scores[2-team]++ // the flag owner's opponent scores
		f.Carried = false
		f.CarrierID = ""
		f.AtBase = true
		f.X, f.Y = f.BaseX, f.BaseY
	}
}

// RemovePlayer drops a departed player's mirror entity and name record.
func (w *World) RemovePlayer(playerID string) {
	delete(w.Remotes, playerID)
	delete(w.Names, playerID)
}

func (w *World) DestroyTile(tx, ty int) {
	if w.Map == nil || ty < 0 || ty >= len(w.Map.Tiles) || tx < 0 || tx >= len(w.Map.Tiles[ty]) {
		return
	}
	if w.Map.Tiles[ty][tx] == mapgen.TileDestructible {
		w.Map.Tiles[ty][tx] = mapgen.TileEmpty
	}
}
