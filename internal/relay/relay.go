package relay

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flagrush/internal/room"
	"flagrush/pkg/protocol"
)

// Sender is the relay's view of one client connection. SendReliable frames
// are ordered and must not be dropped; SendUnreliable frames may be dropped
// or superseded (only the vehicleState relay uses it).
type Sender interface {
	SendReliable(env protocol.Envelope)
	SendUnreliable(env protocol.Envelope)
	Close()
}

type Config struct {
	SweepInterval time.Duration
	RoomTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		SweepInterval: time.Minute,
		RoomTTL:       30 * time.Minute,
	}
}

type Counts struct {
	UptimeSeconds int64 `json:"uptime_sec"`
	Rooms         int   `json:"rooms"`
	Players       int   `json:"players"`
}

type session struct {
	id     string
	name   string // display name cached at join, attached to relayed events
	sender Sender
	room   *room.Room
}

type msg interface{ isRelayMsg() }

type connectMsg struct {
	id     string
	sender Sender
}

type disconnectMsg struct{ id string }

type frameMsg struct {
	connID string
	env    protocol.Envelope
}

// callMsg funnels scheduler callbacks onto the relay goroutine so timers
// never touch room state concurrently with message handlers.
type callMsg struct{ fn func() }

type countsMsg struct{ reply chan Counts }

type shutdownMsg struct{}

func (connectMsg) isRelayMsg()    {}
func (disconnectMsg) isRelayMsg() {}
func (frameMsg) isRelayMsg()      {}
func (callMsg) isRelayMsg()       {}
func (countsMsg) isRelayMsg()     {}
func (shutdownMsg) isRelayMsg()   {}

// Relay owns the connection and room registries. A single goroutine drains
// the inbox and runs every handler to completion, so rooms need no locks.
type Relay struct {
	log       *zap.Logger
	cfg       Config
	sched     room.Scheduler
	inbox     chan msg
	sessions  map[string]*session
	rooms     map[string]*room.Room
	started   time.Time
	stopSweep func()
	done      chan struct{}
}

func New(log *zap.Logger, cfg Config, sched room.Scheduler) *Relay {
	r := &Relay{
		log:      log,
		cfg:      cfg,
		sched:    sched,
		inbox:    make(chan msg, 256),
		sessions: make(map[string]*session),
		rooms:    make(map[string]*room.Room),
		started:  time.Now(),
		done:     make(chan struct{}),
	}
	r.stopSweep = sched.Every(cfg.SweepInterval, func() {
		r.post(callMsg{fn: r.sweep})
	})
	go r.loop()
	return r
}

func (r *Relay) post(m msg) {
	select {
	case r.inbox <- m:
	case <-r.done:
	}
}

// Connect registers a transport connection and returns its assigned id.
// The relay's first frame to the new connection is connected{id}.
func (r *Relay) Connect(sender Sender) string {
	id := uuid.NewString()
	r.post(connectMsg{id: id, sender: sender})
	return id
}

func (r *Relay) Disconnect(id string) {
	r.post(disconnectMsg{id: id})
}

// HandleFrame hands one inbound envelope to the dispatcher.
func (r *Relay) HandleFrame(connID string, env protocol.Envelope) {
	r.post(frameMsg{connID: connID, env: env})
}

// Counts answers the /status surface.
func (r *Relay) Counts() Counts {
	reply := make(chan Counts, 1)
	r.post(countsMsg{reply: reply})
	select {
	case c := <-reply:
		return c
	case <-r.done:
		return Counts{}
	}
}

func (r *Relay) Shutdown() {
	r.post(shutdownMsg{})
	<-r.done
}

func (r *Relay) loop() {
	for m := range r.inbox {
		if _, ok := m.(shutdownMsg); ok {
			r.shutdown()
			close(r.done)
			return
		}
		r.handle(m)
	}
}

// handle isolates one message. A panic while handling one connection's
// frame must not take down other rooms' sessions.
func (r *Relay) handle(m msg) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("relay handler panic", zap.Any("panic", rec))
		}
	}()

	switch msg := m.(type) {
	case connectMsg:
		s := &session{id: msg.id, sender: msg.sender}
		r.sessions[msg.id] = s
		s.sender.SendReliable(protocol.MustNew(protocol.MsgConnected, protocol.Connected{ID: msg.id}))
		r.log.Info("client connected", zap.String("conn", msg.id))

	case disconnectMsg:
		s, ok := r.sessions[msg.id]
		if !ok {
			return
		}
		r.leaveRoom(s)
		delete(r.sessions, msg.id)
		r.log.Info("client disconnected", zap.String("conn", msg.id))

	case frameMsg:
		s, ok := r.sessions[msg.connID]
		if !ok {
			return
		}
		r.dispatch(s, msg.env)

	case callMsg:
		msg.fn()

	case countsMsg:
		msg.reply <- Counts{
			UptimeSeconds: int64(time.Since(r.started).Seconds()),
			Rooms:         len(r.rooms),
			Players:       len(r.sessions),
		}
	}
}

func (r *Relay) shutdown() {
	r.stopSweep()
	for _, rm := range r.rooms {
		rm.StopCountdown()
	}
	for _, s := range r.sessions {
		s.sender.Close()
	}
	clear(r.rooms)
	clear(r.sessions)
}

// sweep deletes rooms that are both empty and past the idle threshold,
// guarding against unclean disconnect paths leaking rooms.
func (r *Relay) sweep() {
	for id, rm := range r.rooms {
		if rm.MemberCount() == 0 && time.Since(rm.CreatedAt) > r.cfg.RoomTTL {
			delete(r.rooms, id)
			r.log.Info("swept stale room", zap.String("room", id))
		}
	}
}

// loopScheduler re-routes room timer callbacks through the relay inbox.
type loopScheduler struct{ r *Relay }

func (s loopScheduler) Every(d time.Duration, fn func()) func() {
	return s.r.sched.Every(d, func() {
		s.r.post(callMsg{fn: fn})
	})
}

// Room emitter callbacks. These run on the relay goroutine because room
// timers are delivered through the inbox.

func (r *Relay) LobbySnapshot(rm *room.Room) {
	r.broadcastLobby(rm)
}

func (r *Relay) CountdownTick(rm *room.Room, remaining int) {
	env := protocol.MustNew(protocol.MsgCountdown, protocol.CountdownPayload{Seconds: remaining})
	r.broadcastRoom(rm, env, "")
}

func (r *Relay) GameStart(rm *room.Room) {
	env := protocol.MustNew(protocol.MsgGameStart, protocol.GameStart{
		MapSeed: rm.MapSeed,
		Players: rm.PlayerList(),
	})
	r.broadcastRoom(rm, env, "")
	r.broadcastRoomList()
	r.log.Info("game started", zap.String("room", rm.ID), zap.Int64("seed", rm.MapSeed))
}

// Broadcast fan-out is explicit: a room broadcast iterates the room's
// human members; "except" skips the sender for relay-to-others messages.

func (r *Relay) broadcastRoom(rm *room.Room, env protocol.Envelope, except string) {
	for _, p := range rm.PlayerList() {
		if p.IsAI || p.ID == except {
			continue
		}
		if s, ok := r.sessions[p.ID]; ok {
			s.sender.SendReliable(env)
		}
	}
}

func (r *Relay) broadcastRoomUnreliable(rm *room.Room, env protocol.Envelope, except string) {
	for _, p := range rm.PlayerList() {
		if p.IsAI || p.ID == except {
			continue
		}
		if s, ok := r.sessions[p.ID]; ok {
			s.sender.SendUnreliable(env)
		}
	}
}

func (r *Relay) broadcastLobby(rm *room.Room) {
	env := protocol.MustNew(protocol.MsgLobbyUpdate, protocol.LobbyUpdate{
		Players:   rm.PlayerList(),
		Countdown: rm.CountdownRemaining(),
		HostID:    rm.HostID,
		RoomName:  rm.Name,
	})
	r.broadcastRoom(rm, env, "")
}

func (r *Relay) roomList() protocol.RoomListPayload {
	list := protocol.RoomListPayload{Rooms: []protocol.RoomSummary{}}
	for _, rm := range r.rooms {
		if rm.State() == room.StateWaiting {
			list.Rooms = append(list.Rooms, rm.Summary())
		}
	}
	return list
}

func (r *Relay) broadcastRoomList() {
	env := protocol.MustNew(protocol.MsgRoomList, r.roomList())
	for _, s := range r.sessions {
		s.sender.SendReliable(env)
	}
}

// leaveRoom runs the shared leave/disconnect path: remove the member,
// delete the room if that emptied it, otherwise announce the departure.
func (r *Relay) leaveRoom(s *session) {
	rm := s.room
	if rm == nil {
		return
	}
	s.room = nil
	rm.RemovePlayer(s.id)
	if rm.MemberCount() == 0 {
		delete(r.rooms, rm.ID)
		r.log.Info("room deleted", zap.String("room", rm.ID))
	} else {
		r.broadcastRoom(rm, protocol.MustNew(protocol.MsgPlayerLeft, protocol.PlayerLeft{PlayerID: s.id}), "")
		r.broadcastLobby(rm)
	}
	r.broadcastRoomList()
}
