// Package memory provides in-process store backends for single-process
// deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"contentpipe/internal/domain"
)

// ContentStore keeps content items in a mutex-guarded map.
type ContentStore struct {
	mu    sync.Mutex
	items map[string]domain.ContentItem
}

// NewContentStore creates an empty store.
func NewContentStore() *ContentStore {
	return &ContentStore{items: make(map[string]domain.ContentItem)}
}

// Create inserts a new item. The id must be unused.
func (s *ContentStore) Create(ctx context.Context, item *domain.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("content item %s already exists", item.ID)
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.items[item.ID] = clone(item)
	return nil
}

// GetByID returns a copy of the stored item or domain.ErrNotFound.
func (s *ContentStore) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clone(&item)
	return &out, nil
}

// FetchCandidates returns items in any of the given states ordered by
// creation time. The map keying guarantees one entry per id.
func (s *ContentStore) FetchCandidates(ctx context.Context, states ...domain.State) ([]domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[domain.State]bool, len(states))
	for _, st := range states {
		wanted[st] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ContentItem
	for id := range s.items {
		item := s.items[id]
		if wanted[item.State] {
			out = append(out, clone(&item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Save overwrites the stored item. Saving the same state twice is idempotent.
func (s *ContentStore) Save(ctx context.Context, item *domain.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	item.UpdatedAt = time.Now()
	s.items[item.ID] = clone(item)
	return nil
}

// SetApproval records the reviewer verdict for an awaiting item.
func (s *ContentStore) SetApproval(ctx context.Context, id string, approval domain.Approval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.Approval = approval
	item.UpdatedAt = time.Now()
	s.items[id] = item
	return nil
}

// Requeue returns a failed item to the earliest incomplete stage.
func (s *ContentStore) Requeue(ctx context.Context, id string) (*domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	state, err := item.RequeueState()
	if err != nil {
		return nil, err
	}
	item.State = state
	item.LastError = ""
	item.Attempts = domain.StageAttempts{}
	item.UpdatedAt = time.Now()
	s.items[id] = item
	out := clone(&item)
	return &out, nil
}

func clone(item *domain.ContentItem) domain.ContentItem {
	out := *item
	if item.Hashtags != nil {
		out.Hashtags = append([]string(nil), item.Hashtags...)
	}
	if item.PostedAt != nil {
		at := *item.PostedAt
		out.PostedAt = &at
	}
	return out
}

var _ domain.ContentStore = (*ContentStore)(nil)
