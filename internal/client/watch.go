package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/model"
)

// ErrFeed wraps an error frame sent by the server before it closes a watch.
var ErrFeed = errors.New("feed error")

// WatchProjects streams the filtered project list. fn runs for every snapshot,
// the first one being the current state. It blocks until ctx is cancelled
// (returning nil), fn returns an error, or the server ends the feed.
func (c *Client) WatchProjects(ctx context.Context, opts ListOptions, fn func([]model.Project) error) error {
	return watch(ctx, c, "/api/projects/watch", opts.values(), fn)
}

// WatchManagerPassword streams the manager password status.
func (c *Client) WatchManagerPassword(ctx context.Context, fn func(model.ManagerPasswordStatus) error) error {
	return watch(ctx, c, "/api/settings/manager-password/watch", nil, fn)
}

func watch[T any](ctx context.Context, c *Client, path string, query url.Values, fn func(T) error) error {
	scheme := "ws"
	if c.baseURL.Scheme == "https" {
		scheme = "wss"
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint(scheme, path, query), c.authHeader())
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			defer resp.Body.Close()
			return decodeAPIError(resp)
		}
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()

	// Unblock ReadJSON once the caller is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		var msg dto.FeedMessage[T]
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}

		switch msg.Type {
		case dto.FeedSnapshot:
			if err := fn(msg.Data); err != nil {
				return err
			}
		case dto.FeedError:
			return fmt.Errorf("%w: %s", ErrFeed, msg.Error)
		}
	}
}
