package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	progressWSWriteWait = 10 * time.Second
	progressWSPongWait  = 60 * time.Second
	progressWSPingEvery = (progressWSPongWait * 9) / 10
)

var progressWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleEvents streams progress events for one analysis over a websocket.
// The full history is replayed first, then live events until the run
// completes or the client disconnects.
func (h *AnalysisHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	history, live, cancel, ok := h.svc.Broker.Subscribe(id)
	if !ok {
		writeError(w, http.StatusNotFound, "analysis not found or events expired")
		return
	}
	defer cancel()

	conn, err := progressWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(progressWSPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(progressWSPongWait))
	})

	// Reader goroutine only services control frames and detects disconnects.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressWSPingEvery)
	defer ticker.Stop()

	writeEvent := func(v any) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait)); err != nil {
			return false
		}
		return conn.WriteJSON(v) == nil
	}

	for _, ev := range history {
		if !writeEvent(ev) {
			return
		}
	}

	for {
		select {
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		case ev, open := <-live:
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete"))
				return
			}
			if !writeEvent(ev) {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(progressWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
