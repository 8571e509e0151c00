package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/domain"
)

func (ctl *WSController) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *WSController) readPump(ctx context.Context, uid domain.UserID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("user_id", string(uid)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("user_id", string(uid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("user_id", string(uid)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(ctx, uid, data)
		}
	}
}

func (ctl *WSController) handleFrame(ctx context.Context, uid domain.UserID, data []byte) {
	if !ctl.Limiter.Allow(uid) {
		log.Warn().Str("module", "signal").Str("user_id", string(uid)).Msg("rate limited, dropping frame")
		return
	}

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user_id", string(uid)).Msg("bad json")
		return
	}
	ctl.Router.HandleSignal(ctx, uid, env)
}
