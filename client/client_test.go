package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flagrush/internal/httpapi"
	"flagrush/internal/relay"
	"flagrush/internal/room"
)

type testServer struct {
	ts    *httptest.Server
	relay *relay.Relay
	sched *room.ManualScheduler
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	sched := &room.ManualScheduler{}
	rl := relay.New(zap.NewNop(), relay.DefaultConfig(), sched)
	ts := httptest.NewServer(httpapi.SetupRoutes(rl, zap.NewNop(), nil))
	t.Cleanup(func() {
		ts.Close()
		rl.Shutdown()
	})
	return &testServer{ts: ts, relay: rl, sched: sched}
}

func (s *testServer) wsURL() string {
	return s.ts.URL + "/ws"
}

func connectClient(t *testing.T, s *testServer) *Client {
	t.Helper()
	c := New(s.wsURL(), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := c.Connect(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	t.Cleanup(c.Close)
	return c
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond, what)
}

// tickUntil pumps the client's game loop until the condition holds.
func tickUntil(t *testing.T, c *Client, cond func() bool, what string) {
	t.Helper()
	eventually(t, func() bool {
		c.Tick(time.Now())
		return cond()
	}, what)
}

func startMatch(t *testing.T, s *testServer) (*Client, *Client) {
	t.Helper()
	c1 := connectClient(t, s)
	c2 := connectClient(t, s)

	c1.CreateRoom("Arena", "Ann")
	tickUntil(t, c1, func() bool { return c1.RoomID() != "" }, "c1 never joined its room")
	require.True(t, c1.IsHost())

	c2.JoinRoom(c1.RoomID(), "Bob")
	tickUntil(t, c2, func() bool { return c2.RoomID() != "" }, "c2 never joined")
	require.False(t, c2.IsHost())

	c1.ToggleReady()
	c2.ToggleReady()
	tickUntil(t, c1, func() bool {
		l := c1.Lobby()
		if len(l.Players) != 2 {
			return false
		}
		return l.Players[0].Ready && l.Players[1].Ready
	}, "ready flags never converged")

	c1.StartGame()
	tickUntil(t, c1, func() bool { return c1.Lobby().Countdown == room.CountdownSeconds }, "countdown never started")

	for i := 0; i < room.CountdownSeconds; i++ {
		s.sched.Fire()
	}
	tickUntil(t, c1, c1.Playing, "c1 never entered the match")
	tickUntil(t, c2, c2.Playing, "c2 never entered the match")
	return c1, c2
}

func TestConnectHandshake(t *testing.T) {
	s := startServer(t)
	c := connectClient(t, s)
	assert.NotEmpty(t, c.ID())
	assert.Equal(t, c.ID(), c.World().LocalID)
}

func TestLobbyFlow(t *testing.T) {
	s := startServer(t)
	c1 := connectClient(t, s)
	c2 := connectClient(t, s)

	c1.CreateRoom("Arena", "Ann")
	tickUntil(t, c1, func() bool { return c1.RoomID() != "" }, "room never created")

	c2.GetRooms()
	tickUntil(t, c2, func() bool { return len(c2.RoomList()) == 1 }, "room listing never arrived")
	assert.Equal(t, "Arena", c2.RoomList()[0].Name)

	c2.JoinRoom(c2.RoomList()[0].ID, "Bob")
	tickUntil(t, c2, func() bool { return len(c2.Lobby().Players) == 2 }, "lobby never showed both players")
	assert.Equal(t, c1.ID(), c2.Lobby().HostID)
}

func TestErrorSurfacesToSenderOnly(t *testing.T) {
	s := startServer(t)
	c1 := connectClient(t, s)

	c1.JoinRoom("no-such-room", "Ann")
	tickUntil(t, c1, func() bool { return c1.LastError() != "" }, "error never surfaced")
	assert.Equal(t, "room not found", c1.LastError())
}

func TestMatchStartAndWorldSetup(t *testing.T) {
	s := startServer(t)
	c1, c2 := startMatch(t, s)

	w1, w2 := c1.World(), c2.World()
	require.NotNil(t, w1.Local)
	require.NotNil(t, w2.Local)
	assert.Equal(t, w1.Map, w2.Map, "both clients derive the identical map from the shared seed")
	assert.NotEqual(t, w1.Local.Team, w2.Local.Team)
}

func TestSnapshotRelayBuildsRemoteMirror(t *testing.T) {
	s := startServer(t)
	c1, c2 := startMatch(t, s)

	// c2's loop emits snapshots; c1's mirror should materialize Bob.
	tickUntil(t, c2, func() bool {
		c1.Tick(time.Now())
		_, ok := c1.World().Remotes[c2.ID()]
		return ok
	}, "c1 never mirrored c2's vehicle")
	assert.Equal(t, "Bob", c1.World().Names[c2.ID()])
}

func TestDamageRelayConvergesHP(t *testing.T) {
	s := startServer(t)
	c1, c2 := startMatch(t, s)

	// Build mirrors on both sides first.
	tickUntil(t, c2, func() bool {
		c1.Tick(time.Now())
		_, ok := c1.World().Remotes[c2.ID()]
		return ok
	}, "mirror missing")

	c1.SendDamage(c2.ID(), 10)

	// The victim applies relayed damage to its own vehicle.
	tickUntil(t, c2, func() bool { return c2.World().Local.HP == MaxHP-10 }, "victim HP never dropped")
	// The shooter receives its own event back and damages the mirror.
	tickUntil(t, c1, func() bool { return c1.World().Remotes[c2.ID()].HP == MaxHP-10 }, "shooter mirror never converged")
}

func TestChatRoundTrip(t *testing.T) {
	s := startServer(t)
	c1, c2 := startMatch(t, s)

	c1.SendChat("gg")
	tickUntil(t, c2, func() bool { return len(c2.Chat()) == 1 }, "chat never arrived")
	msg := c2.Chat()[0]
	assert.Equal(t, "Ann", msg.Name)
	assert.Equal(t, "gg", msg.Message)
	tickUntil(t, c1, func() bool { return len(c1.Chat()) == 1 }, "chat echoes to the sender too")
}

func TestInvoluntaryDisconnectFiresCallback(t *testing.T) {
	s := startServer(t)
	c := New(s.wsURL(), zap.NewNop())

	dropped := make(chan struct{})
	c.OnDisconnect(func() { close(dropped) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Connect(ctx)
	require.NoError(t, err)

	s.ts.CloseClientConnections()

	select {
	case <-dropped:
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect callback never fired")
	}
	assert.False(t, c.Playing())
	assert.Empty(t, c.RoomID())
}

func TestOutboundOpsAreNoOpsWhenDisconnected(t *testing.T) {
	c := New("ws://127.0.0.1:0/ws", zap.NewNop())
	c.CreateRoom("Arena", "Ann")
	c.ToggleReady()
	c.SendDamage("x", 10)
	c.LeaveRoom()
	c.Tick(time.Now()) // nothing queued, nothing sent, nothing panics
}
