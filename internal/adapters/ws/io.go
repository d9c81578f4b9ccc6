package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FastPoint/internal/app"
	"github.com/dkeye/FastPoint/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	pingPeriod := ctl.cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.ConnID, c *Conn) {
	defer func() {
		log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("connection closing")
		ctl.disp.Disconnect(sid)
		ctl.hub.Unregister(sid)
		c.Close()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleEvent(sid, data)
		}
	}
}

func (ctl *Controller) handleEvent(sid domain.ConnID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("sid", string(sid)).Msg("bad json")
		ctl.hub.SendTo(sid, app.EventError, app.NoticePayload{Message: "bad payload"})
		return
	}

	switch env.Type {
	case "join_room":
		var p app.JoinPayload
		if err := json.Unmarshal(data, &p); err != nil {
			ctl.hub.SendTo(sid, app.EventError, app.NoticePayload{Message: "bad payload"})
			return
		}
		ctl.disp.Join(sid, p)
	case "vote":
		var p struct {
			Vote json.RawMessage `json:"vote"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			ctl.hub.SendTo(sid, app.EventError, app.NoticePayload{Message: "bad payload"})
			return
		}
		ctl.disp.Vote(sid, p.Vote)
	case "reveal_votes":
		ctl.disp.RevealVotes(sid)
	case "reset_round":
		ctl.disp.ResetRound(sid)
	case "set_story":
		var p struct {
			Story string `json:"story"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			ctl.hub.SendTo(sid, app.EventError, app.NoticePayload{Message: "bad payload"})
			return
		}
		ctl.disp.SetStory(sid, p.Story)
	case "remove_user":
		var p struct {
			UserName string `json:"user_name"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			ctl.hub.SendTo(sid, app.EventError, app.NoticePayload{Message: "bad payload"})
			return
		}
		ctl.disp.RemoveUser(sid, p.UserName)
	case "ping":
		ctl.hub.SendTo(sid, "pong", nil)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown event")
	}
}
