package relay

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flagrush/internal/room"
	"flagrush/pkg/protocol"
)

// dispatch routes one validated inbound frame. Room operations report
// failure as no-effect sentinels, so every rejection here becomes a
// sender-only error event with no broadcast.
func (r *Relay) dispatch(s *session, env protocol.Envelope) {
	switch env.Type {
	case protocol.MsgGetRooms:
		s.sender.SendReliable(protocol.MustNew(protocol.MsgRoomList, r.roomList()))

	case protocol.MsgCreateRoom:
		r.handleCreateRoom(s, env)

	case protocol.MsgJoinRoom:
		r.handleJoinRoom(s, env)

	case protocol.MsgLeaveRoom:
		if s.room == nil {
			r.sendError(s, "not in a room")
			return
		}
		r.leaveRoom(s)

	case protocol.MsgSelectVehicle:
		r.handleSelectVehicle(s, env)

	case protocol.MsgStartGame:
		r.handleStartGame(s)

	case protocol.MsgCancelCountdown:
		rm := s.room
		if rm == nil || rm.HostID != s.id {
			r.sendError(s, "only the host can cancel the countdown")
			return
		}
		rm.StopCountdown()
		r.broadcastLobby(rm)

	case protocol.MsgToggleReady:
		rm := s.room
		if rm == nil {
			r.sendError(s, "not in a room")
			return
		}
		rm.ToggleReady(s.id)
		r.broadcastLobby(rm)

	case protocol.MsgSwitchTeam:
		rm := s.room
		if rm == nil {
			r.sendError(s, "not in a room")
			return
		}
		if !rm.SwitchTeam(s.id) {
			r.sendError(s, "team is full")
			return
		}
		r.broadcastLobby(rm)

	case protocol.MsgAddAI:
		r.handleAddAI(s, env)

	case protocol.MsgVehicleState:
		r.handleVehicleState(s, env)

	case protocol.MsgVehicleDamage:
		r.handleVehicleDamage(s, env)

	case protocol.MsgVehicleRespawn:
		r.handleVehicleRespawn(s, env)

	case protocol.MsgFlagEvent:
		r.handleFlagEvent(s, env)

	case protocol.MsgTileDestroyed:
		r.handleTileDestroyed(s, env)

	case protocol.MsgChatMessage:
		r.handleChat(s, env)

	default:
		// Unknown types are dropped, never fatal.
		r.log.Debug("unknown message type", zap.String("type", env.Type), zap.String("conn", s.id))
	}
}

func (r *Relay) sendError(s *session, message string) {
	s.sender.SendReliable(protocol.MustNew(protocol.MsgError, protocol.ErrorPayload{Message: message}))
}

func (r *Relay) handleCreateRoom(s *session, env protocol.Envelope) {
	var req protocol.CreateRoomRequest
	if err := env.Decode(&req); err != nil {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	if req.Name == "" || req.Username == "" {
		r.sendError(s, "room name and username are required")
		return
	}
	if s.room != nil {
		r.sendError(s, "already in a room")
		return
	}

	rm := room.New(uuid.NewString(), req.Name, rand.Int63(), loopScheduler{r}, r)
	r.rooms[rm.ID] = rm
	m := rm.AddPlayer(s.id, req.Username)
	s.room = rm
	s.name = m.Name

	s.sender.SendReliable(protocol.MustNew(protocol.MsgRoomJoined, protocol.RoomJoined{
		RoomID:   rm.ID,
		RoomName: rm.Name,
		PlayerID: s.id,
		Team:     m.Team,
		IsHost:   true,
	}))
	r.broadcastLobby(rm)
	r.broadcastRoomList()
	r.log.Info("room created", zap.String("room", rm.ID), zap.String("host", s.id))
}

func (r *Relay) handleJoinRoom(s *session, env protocol.Envelope) {
	var req protocol.JoinRoomRequest
	if err := env.Decode(&req); err != nil {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.RoomID == "" || req.Username == "" {
		r.sendError(s, "room id and username are required")
		return
	}
	if s.room != nil {
		r.sendError(s, "already in a room")
		return
	}
	rm, ok := r.rooms[req.RoomID]
	if !ok {
		r.sendError(s, "room not found")
		return
	}
	if rm.State() != room.StateWaiting {
		r.sendError(s, "game in progress")
		return
	}
	m := rm.AddPlayer(s.id, req.Username)
	if m == nil {
		r.sendError(s, "room is full")
		return
	}
	s.room = rm
	s.name = m.Name

	s.sender.SendReliable(protocol.MustNew(protocol.MsgRoomJoined, protocol.RoomJoined{
		RoomID:   rm.ID,
		RoomName: rm.Name,
		PlayerID: s.id,
		Team:     m.Team,
		IsHost:   rm.HostID == s.id,
	}))
	r.broadcastLobby(rm)
	r.broadcastRoomList()
}

func (r *Relay) handleSelectVehicle(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil {
		r.sendError(s, "not in a room")
		return
	}
	var req protocol.SelectVehicleRequest
	if err := env.Decode(&req); err != nil {
		return
	}
	if req.VehicleType < 0 || req.VehicleType > 3 {
		return
	}
	if m := rm.Member(s.id); m != nil {
		m.VehicleType = req.VehicleType
	}
	r.broadcastLobby(rm)
}

func (r *Relay) handleStartGame(s *session) {
	rm := s.room
	if rm == nil || rm.HostID != s.id {
		r.sendError(s, "only the host can start the game")
		return
	}
	if rm.State() == room.StatePlaying {
		r.sendError(s, "game in progress")
		return
	}
	if !rm.AllReady() {
		r.sendError(s, "not all players are ready")
		return
	}
	rm.StartCountdown()
}

func (r *Relay) handleAddAI(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil || rm.HostID != s.id {
		r.sendError(s, "only the host can add bots")
		return
	}
	var req protocol.AddAIRequest
	if err := env.Decode(&req); err != nil {
		return
	}
	if req.Team != 1 && req.Team != 2 {
		r.sendError(s, "invalid team")
		return
	}
	if rm.AddAI(req.Team) == nil {
		r.sendError(s, "team is full")
		return
	}
	r.broadcastLobby(rm)
}

// handleVehicleState relays the periodic snapshot unreliably; stale frames
// are superseded by the next tick so preconditions fail silently.
func (r *Relay) handleVehicleState(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil || rm.State() != room.StatePlaying {
		return
	}
	var vs protocol.VehicleState
	if err := env.Decode(&vs); err != nil {
		return
	}
	vs.PlayerID = s.id
	vs.Name = s.name
	r.broadcastRoomUnreliable(rm, protocol.MustNew(protocol.MsgGameState, vs), s.id)
}

func (r *Relay) handleVehicleDamage(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil {
		return
	}
	var d protocol.VehicleDamage
	if err := env.Decode(&d); err != nil || d.TargetID == "" {
		return
	}
	d.AttackerID = s.id
	// Reliable to every member, sender included, so all mirrors converge.
	r.broadcastRoom(rm, protocol.MustNew(protocol.MsgVehicleDamage, d), "")
}

func (r *Relay) handleVehicleRespawn(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil {
		return
	}
	var v protocol.VehicleRespawn
	if err := env.Decode(&v); err != nil {
		return
	}
	v.PlayerID = s.id
	r.broadcastRoom(rm, protocol.MustNew(protocol.MsgVehicleRespawn, v), s.id)
}

func (r *Relay) handleFlagEvent(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil {
		return
	}
	var f protocol.FlagEvent
	if err := env.Decode(&f); err != nil {
		return
	}
	switch f.Action {
	case protocol.FlagPickup, protocol.FlagCapture, protocol.FlagDrop, protocol.FlagReturn:
	default:
		return
	}
	f.PlayerID = s.id
	if f.Action == protocol.FlagCapture && (f.Team == 1 || f.Team == 2) {
		// Capturing team is the flag owner's opponent.
		rm.AddScore(3 - f.Team)
	}
	r.broadcastRoom(rm, protocol.MustNew(protocol.MsgFlagEvent, f), "")
}

func (r *Relay) handleTileDestroyed(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil {
		return
	}
	var td protocol.TileDestroyed
	if err := env.Decode(&td); err != nil {
		return
	}
	r.broadcastRoom(rm, protocol.MustNew(protocol.MsgTileDestroyed, td), s.id)
}

func (r *Relay) handleChat(s *session, env protocol.Envelope) {
	rm := s.room
	if rm == nil {
		return
	}
	var req protocol.ChatRequest
	if err := env.Decode(&req); err != nil {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return
	}
	out := protocol.ChatMessage{PlayerID: s.id, Name: s.name, Message: req.Message}
	r.broadcastRoom(rm, protocol.MustNew(protocol.MsgChatMessage, out), "")
}
