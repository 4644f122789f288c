package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/elfinch/waveform/internal/narrate"
	"github.com/elfinch/waveform/internal/observe"
)

// wsWriteTimeout bounds a single frame write to a slow client.
const wsWriteTimeout = 5 * time.Second

// eventFrame is one websocket message on the narration event stream. The
// first frame carries the session snapshot; every following frame carries
// one playback event.
type eventFrame struct {
	Type     string            `json:"type"`
	Snapshot *narrate.Snapshot `json:"snapshot,omitempty"`
	Event    *narrate.Event    `json:"event,omitempty"`
}

func (s *Server) handleNarrationEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.narrator.Get(r.PathValue("id"))
	if errors.Is(err, narrate.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	events, cancel := sess.Subscribe()
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Reads are only used to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				stop()
				return
			}
		}
	}()

	snap := sess.Snapshot()
	if err := writeFrame(ctx, conn, eventFrame{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "done")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "done")
				return
			}
			if err := writeFrame(ctx, conn, eventFrame{Type: "event", Event: &ev}); err != nil {
				return
			}
			if ev.Type == narrate.EventState && ev.State == narrate.StateComplete {
				conn.Close(websocket.StatusNormalClosure, "narration complete")
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame eventFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
