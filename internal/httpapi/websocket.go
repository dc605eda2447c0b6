package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// goalEvent is one message published to the live log view the desktop UI
// subscribes to over /api/agent/goal/stream (SPEC_FULL's websocket wiring
// for the fire-and-forget goal path).
type goalEvent struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	At        int64  `json:"at_unix"`
}

var (
	wsUpgrader = websocket.Upgrader{
		// The desktop UI is a local Electron/webview shell talking to a
		// localhost-only server (§6); Origin checks are not a meaningful
		// boundary here the way CORS is for the REST surface.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	goalFeedMu   sync.Mutex
	goalFeedSubs = map[chan goalEvent]struct{}{}
)

func publishGoalEvent(sessionID, status string) {
	ev := goalEvent{SessionID: sessionID, Status: status, At: time.Now().Unix()}
	goalFeedMu.Lock()
	defer goalFeedMu.Unlock()
	for ch := range goalFeedSubs {
		select {
		case ch <- ev:
		default: // a slow subscriber misses events rather than blocking publishers
		}
	}
}

func subscribeGoalFeed() chan goalEvent {
	ch := make(chan goalEvent, 16)
	goalFeedMu.Lock()
	goalFeedSubs[ch] = struct{}{}
	goalFeedMu.Unlock()
	return ch
}

func unsubscribeGoalFeed(ch chan goalEvent) {
	goalFeedMu.Lock()
	delete(goalFeedSubs, ch)
	goalFeedMu.Unlock()
	close(ch)
}

// agentGoalStream handles GET /api/agent/goal/stream: upgrades to a
// websocket and relays goal-completion events as they are published, so the
// desktop UI's live log view can follow a fire-and-forget goal without
// polling (§6 /api/agent/goal).
func (h *handlers) agentGoalStream(ctx *gin.Context) {
	conn, err := wsUpgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := subscribeGoalFeed()
	defer unsubscribeGoalFeed(ch)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ctx.Request.Context().Done():
			return
		}
	}
}
