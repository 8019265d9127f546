package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/awa-io/awa/internal/streaming"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvents upgrades the connection and forwards hub events matching
// the query filters: run_id, workflow_id, and types (comma-separated
// event types). The subscription is taken before the upgrade so events
// published right after the handshake are not lost.
func (s *Server) streamEvents(c echo.Context) error {
	filter := streaming.EventFilter{
		RunID:      c.QueryParam("run_id"),
		WorkflowID: c.QueryParam("workflow_id"),
	}
	if types := c.QueryParam("types"); types != "" {
		filter.EventTypes = strings.Split(types, ",")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, unsubscribe, err := s.svc.Hub().Subscribe(ctx, filter)
	if err != nil {
		return httpError(err)
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		return nil
	}
	defer conn.Close()

	// Reads only detect the client going away; inbound messages carry no
	// meaning on this endpoint.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(event); err != nil {
				return nil
			}
		}
	}
}
