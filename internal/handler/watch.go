package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/middleware"
	"github.com/projectdesk/projectdesk/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxClientMessage = 512
)

// newUpgrader accepts same-host origins and the configured CORS origins.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	origins := middleware.NewOriginList(allowedOrigins)

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origins.Allows(origin) {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
}

// feedStream pushes a realtime feed to one websocket client.
type feedStream[T any] struct {
	upgrader *websocket.Upgrader
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// serve subscribes to feed, upgrades the connection and writes one
// {"type":"snapshot"} frame per snapshot, passed through view first. It
// returns when the client goes away, the subscription ends or the request
// context is cancelled.
func (s feedStream[T]) serve(w http.ResponseWriter, r *http.Request, feed *realtime.Feed[T], view func(T) any) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := feed.Subscribe(ctx)
	if err != nil {
		s.logger.Error("failed to subscribe", "topic", feed.Topic(), "error", err)
		writeError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.metrics.IncSubscriptionOpened()
	defer s.metrics.IncSubscriptionClosed()

	go readUntilClosed(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snapshot, ok := <-sub.Snapshots():
			if !ok {
				if err := sub.Err(); err != nil {
					s.logger.Warn("feed ended", "topic", feed.Topic(), "error", err)
					_ = s.write(conn, dto.FeedMessage[any]{Type: dto.FeedError, Error: "feed ended"})
				}
				s.close(conn, websocket.CloseGoingAway)
				return
			}
			if err := s.write(conn, dto.FeedMessage[any]{Type: dto.FeedSnapshot, Data: view(snapshot)}); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			s.close(conn, websocket.CloseNormalClosure)
			return
		}
	}
}

func (s feedStream[T]) write(conn *websocket.Conn, msg dto.FeedMessage[any]) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (s feedStream[T]) close(conn *websocket.Conn, code int) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
}

// readUntilClosed drains client frames so pongs and close frames are
// processed, and cancels the stream once the connection fails.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxClientMessage)
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
