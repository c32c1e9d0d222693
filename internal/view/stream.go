package view

import (
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/openclinic/patient-portal/internal/appointments"
)

// Stream returns a websocket handler pushing a snapshot on every committed
// state change. The current snapshot is sent immediately on connect so a
// client never renders from nothing.
func (h *Handler) Stream() http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		ch := h.engine.Subscribe()
		defer h.engine.Unsubscribe(ch)

		if err := websocket.JSON.Send(ws, h.engine.Snapshot(appointments.DefaultProjection())); err != nil {
			return
		}
		for snap := range ch {
			if err := websocket.JSON.Send(ws, snap); err != nil {
				return
			}
		}
	})
}
