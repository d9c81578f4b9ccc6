// Package http wires the gin router: the static client bundle, a small
// REST surface for room discovery and the websocket endpoint.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FastPoint/internal/adapters/ws"
	"github.com/dkeye/FastPoint/internal/app"
	"github.com/dkeye/FastPoint/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller, rooms *app.RoomDirectory) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	api := r.Group("/api")

	// GET /api/rooms — list live rooms
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
	})

	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
