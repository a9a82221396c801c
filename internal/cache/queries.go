package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/projectdesk/projectdesk/internal/model"
)

// maxQueryStreamLen is the approximate max length of the query stream.
const maxQueryStreamLen = 10000

// queryPayload is the stream entry format of a project query.
type queryPayload struct {
	ProjectID   string `json:"pid"`
	ProjectName string `json:"pn"`
	RaisedBy    string `json:"by"`
	Message     string `json:"msg,omitempty"`
	RaisedAt    int64  `json:"t"` // Unix milliseconds
}

// AppendQuery adds a query to the stream and sets its ID to the stream entry ID.
func (c *Cache) AppendQuery(ctx context.Context, q *model.ProjectQuery) error {
	data, err := json.Marshal(queryPayload{
		ProjectID:   q.ProjectID,
		ProjectName: q.ProjectName,
		RaisedBy:    q.RaisedBy,
		Message:     q.Message,
		RaisedAt:    q.RaisedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	id, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.QueryStream(),
		MaxLen: maxQueryStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	q.ID = id
	return nil
}

// RecentQueries returns up to limit queries, newest first.
// Entries that cannot be decoded are skipped.
func (c *Cache) RecentQueries(ctx context.Context, limit int) ([]model.ProjectQuery, error) {
	msgs, err := c.client.XRevRangeN(ctx, c.QueryStream(), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}

	queries := make([]model.ProjectQuery, 0, len(msgs))
	for _, msg := range msgs {
		q, ok := DecodeQuery(msg)
		if ok {
			queries = append(queries, q)
		}
	}
	return queries, nil
}

// DecodeQuery converts a query stream entry. ok is false for entries that
// were not written by AppendQuery.
func DecodeQuery(msg redis.XMessage) (model.ProjectQuery, bool) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return model.ProjectQuery{}, false
	}

	var p queryPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.ProjectQuery{}, false
	}

	return model.ProjectQuery{
		ID:          msg.ID,
		ProjectID:   p.ProjectID,
		ProjectName: p.ProjectName,
		RaisedBy:    p.RaisedBy,
		Message:     p.Message,
		RaisedAt:    time.UnixMilli(p.RaisedAt).UTC(),
	}, true
}

// QueryStream is the stream key raised queries are appended to.
func (c *Cache) QueryStream() string {
	return c.key("stream", "queries")
}
