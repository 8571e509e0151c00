package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/adapters/signal"
	"github.com/whiskr/backend/internal/config"
	"github.com/whiskr/backend/internal/core"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ws *signal.WSController, logs core.CallLogStore) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")
	api.Use(AuthRequired(cfg.Secret))

	api.GET("/ws", func(c *gin.Context) {
		ws.HandleWS(ctx, c)
	})
	api.GET("/calls/ice-config", IceConfigHandler(cfg.ICE))
	api.GET("/calls/history", CallHistoryHandler(logs))

	return r
}
