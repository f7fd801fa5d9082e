package client

import (
	"math"
	"time"

	"flagrush/pkg/protocol"
)

// SnapshotInterval paces outbound vehicleState at ~20 Hz. Everything else
// the client sends is event-triggered.
const SnapshotInterval = 50 * time.Millisecond

// Tick is the per-frame contract: drain queued inbound events into the
// world mirror, then emit the local snapshot if one is due. Call it from
// the game loop only; the world is not safe to touch from anywhere else.
func (c *Client) Tick(now time.Time) {
	c.pumpEvents()
	c.maybeSendState(now)
}

func (c *Client) pumpEvents() {
	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, env := range pending {
		c.apply(env)
	}
}

func (c *Client) apply(env protocol.Envelope) {
	switch env.Type {
	case protocol.MsgRoomJoined:
		var p protocol.RoomJoined
		if env.Decode(&p) != nil {
			return
		}
		c.mu.Lock()
		c.roomID = p.RoomID
		c.roomName = p.RoomName
		c.isHost = p.IsHost
		c.playing = false
		c.mu.Unlock()

	case protocol.MsgLobbyUpdate:
		var p protocol.LobbyUpdate
		if env.Decode(&p) != nil {
			return
		}
		c.mu.Lock()
		c.lobby = p
		c.isHost = p.HostID == c.id
		c.mu.Unlock()

	case protocol.MsgRoomList:
		var p protocol.RoomListPayload
		if env.Decode(&p) != nil {
			return
		}
		c.mu.Lock()
		c.roomList = p.Rooms
		c.mu.Unlock()

	case protocol.MsgCountdown:
		var p protocol.CountdownPayload
		if env.Decode(&p) != nil {
			return
		}
		c.mu.Lock()
		c.lobby.Countdown = p.Seconds
		c.mu.Unlock()

	case protocol.MsgGameStart:
		var p protocol.GameStart
		if env.Decode(&p) != nil {
			return
		}
		localID := c.ID()
		team, vehicleType := 1, 0
		for _, pl := range p.Players {
			if pl.ID == localID {
				team, vehicleType = pl.Team, pl.VehicleType
			}
			c.world.Names[pl.ID] = pl.Name
		}
		c.world.StartMatch(p.MapSeed, 1, team, vehicleType)
		c.mu.Lock()
		c.playing = true
		c.mu.Unlock()

	case protocol.MsgGameState:
		var p protocol.VehicleState
		if env.Decode(&p) != nil {
			return
		}
		c.world.ApplyGameState(p)

	case protocol.MsgVehicleDamage:
		var p protocol.VehicleDamage
		if env.Decode(&p) != nil {
			return
		}
		c.world.ApplyDamage(p.TargetID, p.Damage)

	case protocol.MsgVehicleRespawn:
		var p protocol.VehicleRespawn
		if env.Decode(&p) != nil {
			return
		}
		c.world.ApplyRespawn(p.PlayerID, p.VehicleType, p.X, p.Y)

	case protocol.MsgFlagEvent:
		var p protocol.FlagEvent
		if env.Decode(&p) != nil {
			return
		}
		c.world.ApplyFlagEvent(p.Action, p.Team, p.PlayerID, p.X, p.Y)

	case protocol.MsgTileDestroyed:
		var p protocol.TileDestroyed
		if env.Decode(&p) != nil {
			return
		}
		c.world.DestroyTile(p.TX, p.TY)

	case protocol.MsgPlayerLeft:
		var p protocol.PlayerLeft
		if env.Decode(&p) != nil {
			return
		}
		c.world.RemovePlayer(p.PlayerID)

	case protocol.MsgChatMessage:
		var p protocol.ChatMessage
		if env.Decode(&p) != nil {
			return
		}
		c.mu.Lock()
		c.chat = append(c.chat, p)
		if len(c.chat) > 50 {
			c.chat = c.chat[len(c.chat)-50:]
		}
		c.mu.Unlock()

	case protocol.MsgError:
		var p protocol.ErrorPayload
		if env.Decode(&p) != nil {
			return
		}
		c.mu.Lock()
		c.lastError = p.Message
		c.mu.Unlock()
	}
}

func (c *Client) maybeSendState(now time.Time) {
	c.mu.Lock()
	due := c.connected && c.playing && now.Sub(c.lastSnapshot) >= SnapshotInterval
	if due {
		c.lastSnapshot = now
	}
	c.mu.Unlock()
	if !due || c.world.Local == nil {
		return
	}

	v := c.world.Local
	c.send(protocol.MsgVehicleState, protocol.VehicleState{
		VehicleType: v.Type,
		Team:        v.Team,
		X:           round1(v.X),
		Y:           round1(v.Y),
		Heading:     round2(v.Heading),
		Turret:      round2(v.Turret),
		HP:          v.HP,
		Fuel:        v.Fuel,
		Ammo:        v.Ammo,
		Alive:       v.Alive,
		HasFlag:     v.HasFlag,
	})
}

// Positions ship at one decimal and angles at two: payload economy over a
// 20 Hz stream.
func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round2(f float64) float64 { return math.Round(f*100) / 100 }

// Chat returns the recent chat backlog.
func (c *Client) Chat() []protocol.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.ChatMessage(nil), c.chat...)
}
