package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	pendingStates  = 8
)

// upgrader keeps gorilla's same-origin check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Events streams the session state over a websocket: the current snapshot
// first, then one message per change.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered the client.
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer func() { _ = conn.Close() }()

		updates := make(chan session.State, pendingStates)
		cancel := c.Watch(func(s session.State) { pushLatest(updates, s) })
		defer cancel()

		done := make(chan struct{})
		go readPump(conn, done)

		if err := writeState(conn, c.Snapshot()); err != nil {
			return
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case s := <-updates:
				if err := writeState(conn, s); err != nil {
					d.Logger.Debug("websocket write failed", logger.Error(err))
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}

// pushLatest never blocks the controller: when the client lags, the oldest
// pending state is dropped.
func pushLatest(ch chan session.State, s session.State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// readPump discards client messages and closes done when the peer leaves.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeState(conn *websocket.Conn, s session.State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(s)
}
