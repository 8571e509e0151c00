package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/app"
	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

// WSController owns the websocket side of the realtime channel: one
// authenticated connection per user, demultiplexed by identity before any
// frame reaches the router.
type WSController struct {
	Router  *app.CallRouter
	Bridge  *app.SessionBridge
	Limiter *RateLimiter

	ReadLimit  int64
	PingPeriod time.Duration
}

func NewWSController(router *app.CallRouter, bridge *app.SessionBridge, limiter *RateLimiter, readLimit int64, pingPeriod time.Duration) *WSController {
	return &WSController{
		Router:     router,
		Bridge:     bridge,
		Limiter:    limiter,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the session until the connection
// drops. Identity comes from the auth middleware; per-message
// re-authentication never happens.
func (ctl *WSController) HandleWS(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	log.Info().Str("module", "signal").Str("user_id", string(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Bridge.Connected(ctx, uid, conn)

	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, uid, conn)
		ctl.Bridge.Disconnected(context.WithoutCancel(ctx), uid, conn)
	}()
}
