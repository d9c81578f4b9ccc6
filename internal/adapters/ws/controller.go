package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FastPoint/internal/app"
	"github.com/dkeye/FastPoint/internal/config"
)

type Controller struct {
	cfg  *config.Config
	hub  *Hub
	disp *app.Dispatcher
}

func NewController(cfg *config.Config, hub *Hub, disp *app.Dispatcher) *Controller {
	return &Controller{cfg: cfg, hub: hub, disp: disp}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection, allocates its identity and starts the
// pumps. The identity lives exactly as long as the socket.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	conn := newConn(ws)
	sid := ctl.disp.Sessions.OnConnect()
	ctl.hub.Register(sid, conn)
	ctl.disp.Connect(sid)
	log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("new connection")

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, sid, conn)
}
