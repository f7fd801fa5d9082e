// Package client owns the single connection to the relay and keeps a local
// mirror of room and match state. The game loop drives it: inbound events
// queue until Tick drains them, so network handlers never mutate entities
// mid-frame.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"flagrush/pkg/protocol"
)

const (
	// ConnectTimeout is generous on purpose: the relay may be cold-starting.
	ConnectTimeout = 30 * time.Second
	writeTimeout   = 3 * time.Second
)

var ErrHandshake = errors.New("relay handshake failed")

type Client struct {
	log *zap.Logger
	url string

	mu        sync.Mutex
	sock      *websocket.Conn
	connected bool
	id        string
	roomID    string
	roomName  string
	isHost    bool
	playing   bool
	queue     []protocol.Envelope

	lobby     protocol.LobbyUpdate
	roomList  []protocol.RoomSummary
	chat      []protocol.ChatMessage
	lastError string

	onDisconnect func()

	world        *World
	lastSnapshot time.Time
}

func New(url string, log *zap.Logger) *Client {
	return &Client{
		log:   log,
		url:   url,
		world: NewWorld(""),
	}
}

// OnDisconnect registers the callback fired on involuntary disconnect.
// Must be set before Connect.
func (c *Client) OnDisconnect(fn func()) { c.onDisconnect = fn }

// Connect dials the relay and waits for the connected{id} handshake frame.
// It returns the assigned connection id. There is no auto-reconnect; a new
// Connect is a brand-new identity.
func (c *Client) Connect(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	sock, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("dial relay: %w", err)
	}

	_, data, err := sock.Read(ctx)
	if err != nil {
		sock.Close(websocket.StatusProtocolError, "no handshake")
		return "", fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != protocol.MsgConnected {
		sock.Close(websocket.StatusProtocolError, "bad handshake")
		return "", ErrHandshake
	}
	var hello protocol.Connected
	if err := env.Decode(&hello); err != nil || hello.ID == "" {
		sock.Close(websocket.StatusProtocolError, "bad handshake")
		return "", ErrHandshake
	}

	c.mu.Lock()
	c.sock = sock
	c.connected = true
	c.id = hello.ID
	c.mu.Unlock()
	c.world.LocalID = hello.ID

	go c.readLoop(sock)
	c.log.Info("connected to relay", zap.String("id", hello.ID))
	return hello.ID, nil
}

func (c *Client) readLoop(sock *websocket.Conn) {
	for {
		_, data, err := sock.Read(context.Background())
		if err != nil {
			c.handleDisconnect()
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.mu.Lock()
		c.queue = append(c.queue, env)
		c.mu.Unlock()
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.sock = nil
	c.roomID = ""
	c.isHost = false
	c.playing = false
	cb := c.onDisconnect
	c.mu.Unlock()

	if wasConnected {
		c.log.Warn("disconnected from relay")
		if cb != nil {
			cb()
		}
	}
}

// Close tears the connection down deliberately; the disconnect callback
// does not fire.
func (c *Client) Close() {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.connected = false
	c.roomID = ""
	c.playing = false
	c.mu.Unlock()
	if sock != nil {
		sock.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (c *Client) send(msgType string, payload any) {
	c.mu.Lock()
	sock := c.sock
	ok := c.connected
	c.mu.Unlock()
	if !ok || sock == nil {
		return
	}
	env, err := protocol.New(msgType, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := sock.Write(ctx, websocket.MessageText, data); err != nil {
		c.log.Debug("send failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (c *Client) inRoom() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.roomID != ""
}

// Lobby intents. Each maps to one relay message and is a no-op when the
// connection or room precondition does not hold.

func (c *Client) GetRooms() { c.send(protocol.MsgGetRooms, nil) }

func (c *Client) CreateRoom(name, username string) {
	c.send(protocol.MsgCreateRoom, protocol.CreateRoomRequest{Name: name, Username: username})
}

func (c *Client) JoinRoom(roomID, username string) {
	c.send(protocol.MsgJoinRoom, protocol.JoinRoomRequest{RoomID: roomID, Username: username})
}

func (c *Client) LeaveRoom() {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgLeaveRoom, nil)
	c.mu.Lock()
	c.roomID = ""
	c.isHost = false
	c.playing = false
	c.mu.Unlock()
}

func (c *Client) SelectVehicle(vehicleType int) {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgSelectVehicle, protocol.SelectVehicleRequest{VehicleType: vehicleType})
}

func (c *Client) ToggleReady() {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgToggleReady, nil)
}

func (c *Client) SwitchTeam() {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgSwitchTeam, nil)
}

func (c *Client) AddAI(team int) {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgAddAI, protocol.AddAIRequest{Team: team})
}

func (c *Client) StartGame() {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgStartGame, nil)
}

func (c *Client) CancelCountdown() {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgCancelCountdown, nil)
}

// Gameplay events. SendDamage is called only from the local player's own
// hit detection: one designated sender per damage event bounds the
// double-application risk inherent in the trust model.

func (c *Client) SendDamage(targetID string, damage int) {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgVehicleDamage, protocol.VehicleDamage{TargetID: targetID, Damage: damage})
}

func (c *Client) SendRespawn(vehicleType int, x, y float64) {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgVehicleRespawn, protocol.VehicleRespawn{VehicleType: vehicleType, X: x, Y: y})
}

func (c *Client) SendFlagEvent(action string, team int, x, y float64) {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgFlagEvent, protocol.FlagEvent{Action: action, Team: team, X: x, Y: y})
}

func (c *Client) SendTileDestroyed(tx, ty int) {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgTileDestroyed, protocol.TileDestroyed{TX: tx, TY: ty})
}

func (c *Client) SendChat(message string) {
	if !c.inRoom() {
		return
	}
	c.send(protocol.MsgChatMessage, protocol.ChatRequest{Message: message})
}

// Read-mostly mirrors for the UI layer.

func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

func (c *Client) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Client) Lobby() protocol.LobbyUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lobby
}

func (c *Client) RoomList() []protocol.RoomSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.RoomSummary(nil), c.roomList...)
}

func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// World is owned by the game-loop goroutine; only Tick mutates it.
func (c *Client) World() *World { return c.world }
