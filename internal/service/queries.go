package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/projectdesk/projectdesk/internal/model"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

// RaiseQuery records a question about one of the user's projects.
func (s *ProjectService) RaiseQuery(ctx context.Context, identity model.Identity, projectID, message string) (*model.ProjectQuery, error) {
	p, err := s.store.GetProject(ctx, s.collection(identity.UserID), projectID)
	if err != nil {
		return nil, mapProjectErr(err, "get")
	}

	raisedBy := identity.Username
	if raisedBy == "" {
		raisedBy = identity.Email
	}

	q := &model.ProjectQuery{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		RaisedBy:    raisedBy,
		Message:     strings.TrimSpace(message),
		RaisedAt:    s.now().UTC(),
	}

	if s.queries != nil {
		if err := s.queries.AppendQuery(ctx, q); err != nil {
			return nil, fmt.Errorf("failed to record query: %w", err)
		}
	} else {
		q.ID = ulid.Make().String()
	}

	s.metrics.IncQueryRaised()
	s.logger.Info("project_query_raised", "user_id", identity.UserID, "project_id", p.ID, "query_id", q.ID)
	return q, nil
}

// ListQueries returns the most recent queries, newest first.
func (s *ProjectService) ListQueries(ctx context.Context, limit int) ([]model.ProjectQuery, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	if s.queries == nil {
		return []model.ProjectQuery{}, nil
	}

	queries, err := s.queries.RecentQueries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	return queries, nil
}
