// Package postgres implements the content and lease stores on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"contentpipe/internal/domain"
	"contentpipe/internal/infra"
	"contentpipe/internal/sqlinline"
)

// ContentStore persists content items via the shared SQL runner.
type ContentStore struct {
	sql infra.SQLExecutor
}

// NewContentStore creates a store on top of the given SQL executor.
func NewContentStore(sql infra.SQLExecutor) *ContentStore {
	return &ContentStore{sql: sql}
}

func (s *ContentStore) Create(ctx context.Context, item *domain.ContentItem) error {
	approval := item.Approval
	if approval == "" {
		approval = domain.ApprovalPending
	}
	_, err := s.sql.Exec(ctx, sqlinline.QInsertContentItem,
		item.ID, string(item.Kind), string(item.State), item.Location,
		item.Prompt, item.NegativePrompt, item.Caption, item.Hashtags,
		item.ImageRef, string(approval), item.PostedAt,
		item.Attempts.Caption, item.Attempts.Image, item.Attempts.Persist,
		item.Attempts.Post, item.LastError,
	)
	if err != nil {
		return fmt.Errorf("create content item: %w", err)
	}
	return nil
}

func (s *ContentStore) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QGetContentItem, id)
	item, err := scanItem(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return item, nil
}

func (s *ContentStore) FetchCandidates(ctx context.Context, states ...domain.State) ([]domain.ContentItem, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	rows, err := s.sql.Query(ctx, sqlinline.QFetchCandidates, names)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	defer rows.Close()
	var out []domain.ContentItem
	seen := make(map[string]bool)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	return out, nil
}

func (s *ContentStore) Save(ctx context.Context, item *domain.ContentItem) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QSaveContentItem,
		item.ID, string(item.State), item.Caption, item.Hashtags,
		item.ImageRef, item.PostedAt,
		item.Attempts.Caption, item.Attempts.Image, item.Attempts.Persist,
		item.Attempts.Post, item.LastError,
	)
	if err != nil {
		// Transient by default so the resilience wrapper can retry.
		return domain.Retryable(fmt.Errorf("save content item: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.Permanent(fmt.Errorf("save content item %s: %w", item.ID, domain.ErrNotFound))
	}
	return nil
}

func (s *ContentStore) SetApproval(ctx context.Context, id string, approval domain.Approval) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QSetApproval, id, string(approval))
	if err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ContentStore) Requeue(ctx context.Context, id string) (*domain.ContentItem, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	state, err := item.RequeueState()
	if err != nil {
		return nil, err
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QRequeueContentItem, id, string(state))
	if err != nil {
		return nil, fmt.Errorf("requeue content item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var kind, state, approval string
	err := row.Scan(
		&item.ID, &kind, &state, &item.Location, &item.Prompt,
		&item.NegativePrompt, &item.Caption, &item.Hashtags, &item.ImageRef,
		&approval, &item.PostedAt, &item.Attempts.Caption,
		&item.Attempts.Image, &item.Attempts.Persist, &item.Attempts.Post,
		&item.LastError, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Kind = domain.Kind(kind)
	item.State = domain.State(state)
	item.Approval = domain.Approval(approval)
	return &item, nil
}

var _ domain.ContentStore = (*ContentStore)(nil)
