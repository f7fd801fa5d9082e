package room

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"flagrush/pkg/protocol"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
)

const (
	MaxPlayers       = 8
	TeamCap          = 4
	CountdownSeconds = 10
)

// botSeq distinguishes synthetic bot ids from connection ids process-wide.
var botSeq atomic.Int64

type Member struct {
	ID          string
	Name        string
	Team        int
	VehicleType int
	Ready       bool
	IsBot       bool
}

// Emitter receives the room's countdown-driven broadcasts. The relay
// implements it; tests record it.
type Emitter interface {
	LobbySnapshot(r *Room)
	CountdownTick(r *Room, remaining int)
	GameStart(r *Room)
}

// Room is one match lobby. It is not goroutine-safe: the relay actor owns
// every Room and serializes all access, matching the single event loop the
// protocol assumes.
type Room struct {
	ID        string
	Name      string
	HostID    string
	MapSeed   int64
	CreatedAt time.Time

	state     State
	members   map[string]*Member
	order     []string // insertion order, for host failover
	scores    [2]int
	remaining int

	sched     Scheduler
	emitter   Emitter
	stopTimer func()
}

func New(id, name string, seed int64, sched Scheduler, emitter Emitter) *Room {
	return &Room{
		ID:        id,
		Name:      name,
		MapSeed:   seed,
		CreatedAt: time.Now(),
		state:     StateWaiting,
		members:   make(map[string]*Member),
		sched:     sched,
		emitter:   emitter,
	}
}

func (r *Room) State() State             { return r.state }
func (r *Room) CountdownRemaining() int  { return r.remaining }
func (r *Room) MemberCount() int         { return len(r.members) }
func (r *Room) Member(id string) *Member { return r.members[id] }

func (r *Room) teamCount(team int) int {
	n := 0
	for _, m := range r.members {
		if m.Team == team {
			n++
		}
	}
	return n
}

func (r *Room) humanCount() int {
	n := 0
	for _, m := range r.members {
		if !m.IsBot {
			n++
		}
	}
	return n
}

func (r *Room) botCount() int {
	return len(r.members) - r.humanCount()
}

func (r *Room) nameTaken(name string) bool {
	for _, m := range r.members {
		if m.Name == name {
			return true
		}
	}
	return false
}

// uniqueName resolves collisions by the first available " (n)" suffix.
func (r *Room) uniqueName(want string) string {
	if !r.nameTaken(want) {
		return want
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", want, n)
		if !r.nameTaken(candidate) {
			return candidate
		}
	}
}

// AddPlayer joins a human member, balancing teams (ties favor team 1).
// Returns nil when the room is full.
func (r *Room) AddPlayer(connID, requestedName string) *Member {
	if len(r.members) >= MaxPlayers {
		return nil
	}
	team := 1
	if r.teamCount(1) > r.teamCount(2) {
		team = 2
	}
	m := &Member{
		ID:   connID,
		Name: r.uniqueName(requestedName),
		Team: team,
	}
	r.members[connID] = m
	r.order = append(r.order, connID)
	if r.HostID == "" {
		r.HostID = connID
	}
	return m
}

// AddAI fills a slot with a bot, pre-readied on the requested team. Returns
// nil if that team already holds TeamCap members or the room is full.
func (r *Room) AddAI(team int) *Member {
	if len(r.members) >= MaxPlayers || r.teamCount(team) >= TeamCap {
		return nil
	}
	m := &Member{
		ID:          fmt.Sprintf("ai-%d", botSeq.Add(1)),
		Name:        fmt.Sprintf("AI Bot %d", r.botCount()+1),
		Team:        team,
		VehicleType: rand.Intn(4),
		Ready:       true,
		IsBot:       true,
	}
	r.members[m.ID] = m
	r.order = append(r.order, m.ID)
	return m
}

func (r *Room) removeFromOrder(id string) {
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// RemovePlayer drops a member and cancels any countdown. When the last
// human leaves, the whole roster (bots included) is purged and the host is
// cleared; the caller is expected to delete the room.
func (r *Room) RemovePlayer(connID string) {
	m, ok := r.members[connID]
	if !ok {
		return
	}
	delete(r.members, connID)
	r.removeFromOrder(connID)
	r.StopCountdown()

	if r.humanCount() == 0 {
		r.members = make(map[string]*Member)
		r.order = nil
		r.HostID = ""
		return
	}
	if r.HostID == m.ID {
		for _, id := range r.order {
			if !r.members[id].IsBot {
				r.HostID = id
				break
			}
		}
	}
}

// SwitchTeam flips the member to the opposite team. Fails without mutation
// when the destination team is full.
func (r *Room) SwitchTeam(connID string) bool {
	m, ok := r.members[connID]
	if !ok {
		return false
	}
	dest := 3 - m.Team
	if r.teamCount(dest) >= TeamCap {
		return false
	}
	m.Team = dest
	m.Ready = false
	r.StopCountdown()
	return true
}

// ToggleReady flips readiness for human members. Going un-ready cancels the
// countdown; going ready never starts one (that is the host's call).
func (r *Room) ToggleReady(connID string) {
	m, ok := r.members[connID]
	if !ok || m.IsBot {
		return
	}
	m.Ready = !m.Ready
	if !m.Ready {
		r.StopCountdown()
	}
}

func (r *Room) AllReady() bool {
	if len(r.members) == 0 {
		return false
	}
	for _, m := range r.members {
		if !m.IsBot && !m.Ready {
			return false
		}
	}
	return true
}

// StartCountdown arms the 10 second timer. Re-entrant calls while a timer
// is live are no-ops, so at most one timer instance exists per room.
func (r *Room) StartCountdown() {
	if r.stopTimer != nil {
		return
	}
	r.state = StateCountdown
	r.remaining = CountdownSeconds
	r.emitter.LobbySnapshot(r)
	r.stopTimer = r.sched.Every(time.Second, r.Tick)
}

// Tick is driven by the scheduler once per second while a countdown runs.
// At zero it transitions the room to playing and emits the game start.
func (r *Room) Tick() {
	if r.stopTimer == nil {
		return
	}
	r.remaining--
	if r.remaining > 0 {
		r.emitter.CountdownTick(r, r.remaining)
		return
	}
	stop := r.stopTimer
	r.stopTimer = nil
	stop()
	r.remaining = 0
	r.state = StatePlaying
	r.emitter.GameStart(r)
}

// StopCountdown cancels a running countdown: the timer is torn down, the
// room returns to waiting and every human is force-unreadied. With no
// timer armed it does nothing, so roster changes in a plain waiting room
// leave the other members' ready flags alone.
func (r *Room) StopCountdown() {
	if r.stopTimer == nil {
		r.remaining = 0
		return
	}
	stop := r.stopTimer
	r.stopTimer = nil
	stop()
	r.remaining = 0
	if r.state == StateCountdown {
		r.state = StateWaiting
	}
	for _, m := range r.members {
		if !m.IsBot {
			m.Ready = false
		}
	}
}

func (r *Room) AddScore(team int) {
	if team == 1 || team == 2 {
		r.scores[team-1]++
	}
}

func (r *Room) Scores() (int, int) { return r.scores[0], r.scores[1] }

// PlayerList projects the roster in insertion order.
func (r *Room) PlayerList() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(r.members))
	for _, id := range r.order {
		m := r.members[id]
		out = append(out, protocol.PlayerInfo{
			ID:          m.ID,
			Team:        m.Team,
			VehicleType: m.VehicleType,
			Ready:       m.Ready,
			Name:        m.Name,
			IsAI:        m.IsBot,
		})
	}
	return out
}

func (r *Room) Summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		ID:         r.ID,
		Name:       r.Name,
		Players:    len(r.members),
		MaxPlayers: MaxPlayers,
		State:      string(r.state),
	}
}
