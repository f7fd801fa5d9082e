package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"flagrush/internal/relay"
	"flagrush/pkg/protocol"
)

const (
	writeTimeout = 3 * time.Second
	// Inbound frame budget: snapshots arrive at ~20 Hz, so allow headroom
	// for event bursts on top of that.
	inboundRate  = 40
	inboundBurst = 80
)

// conn adapts one websocket to the relay's Sender contract. Reliable frames
// queue in order; unreliable frames keep only the latest, so a stalled
// socket sees a fresh snapshot rather than a backlog.
type conn struct {
	sock       *websocket.Conn
	log        *zap.Logger
	reliable   chan protocol.Envelope
	unreliable chan protocol.Envelope
	done       chan struct{}
	closeOnce  sync.Once
}

func newConn(sock *websocket.Conn, log *zap.Logger) *conn {
	return &conn{
		sock:       sock,
		log:        log,
		reliable:   make(chan protocol.Envelope, 64),
		unreliable: make(chan protocol.Envelope, 1),
		done:       make(chan struct{}),
	}
}

func (c *conn) SendReliable(env protocol.Envelope) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.reliable <- env:
	default:
		// Reliable backlog full: the client cannot keep up with ordered
		// events, so drop the connection rather than the events.
		c.log.Warn("reliable outbox overflow, dropping client")
		c.Close()
	}
}

func (c *conn) SendUnreliable(env protocol.Envelope) {
	for {
		select {
		case <-c.done:
			return
		case c.unreliable <- env:
			return
		default:
		}
		// Slot holds a stale snapshot: discard it and retry.
		select {
		case <-c.unreliable:
		default:
		}
	}
}

// Close may race in from the write pump, the read loop and the relay
// goroutine at once. It also tears the socket down, so a send-side drop
// errors out the read loop and the handler's Disconnect defer runs.
func (c *conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sock != nil {
			c.sock.Close(websocket.StatusPolicyViolation, "dropped")
		}
	})
}

func (c *conn) writePump(ctx context.Context) {
	for {
		var env protocol.Envelope
		select {
		case env = <-c.reliable:
		case env = <-c.unreliable:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
		payload, err := json.Marshal(env)
		if err != nil {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = c.sock.Write(wctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			c.Close()
			return
		}
	}
}

// Handler upgrades the connection and pumps frames between the socket and
// the relay.
func Handler(r *relay.Relay, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sock, err := websocket.Accept(w, req, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer sock.Close(websocket.StatusNormalClosure, "bye")

		c := newConn(sock, log)
		connID := r.Connect(c)
		defer r.Disconnect(connID)
		defer c.Close()

		writeCtx, writeCancel := context.WithCancel(req.Context())
		defer writeCancel()
		go c.writePump(writeCtx)

		limiter := rate.NewLimiter(inboundRate, inboundBurst)

		// No read deadline: lobby members are legitimately silent for
		// minutes at a time.
		for {
			_, data, err := sock.Read(req.Context())
			if err != nil {
				return
			}

			if !limiter.Allow() {
				// Over budget: shed the frame. Snapshots are superseded by
				// the next tick anyway.
				continue
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.SendReliable(protocol.MustNew(protocol.MsgError, protocol.ErrorPayload{Message: "bad json"}))
				continue
			}
			r.HandleFrame(connID, env)
		}
	}
}
