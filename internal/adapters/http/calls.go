package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/config"
	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

// IceConfigHandler exposes the static STUN/TURN set clients feed into their
// peer connection. The list is assembled once; nothing here is per-user.
func IceConfigHandler(ice config.ICEConfig) gin.HandlerFunc {
	servers := []webrtc.ICEServer{}
	if len(ice.STUNURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: ice.STUNURLs})
	}
	if ice.TURNURL != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{ice.TURNURL},
			Username:   ice.TURNUsername,
			Credential: ice.TURNCredential,
		})
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}

// CallHistoryHandler lists the authenticated user's call log, newest first.
func CallHistoryHandler(logs core.CallLogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := domain.UserID(c.GetString("user_id"))
		entries, err := logs.History(c.Request.Context(), uid)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("user_id", string(uid)).Msg("call history query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
