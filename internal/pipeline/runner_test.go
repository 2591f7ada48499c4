package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"contentpipe/internal/domain"
	"contentpipe/internal/lifecycle"
	"contentpipe/internal/notify"
	"contentpipe/internal/providers/caption"
	"contentpipe/internal/providers/image"
	"contentpipe/internal/resilience"
	"contentpipe/internal/runlock"
	"contentpipe/internal/storage"
	"contentpipe/internal/store/memory"
)

type scriptedCaptioner struct {
	failFor map[string]error
}

func (s *scriptedCaptioner) GenerateCaption(ctx context.Context, prompt, location string) (caption.Caption, error) {
	if err, ok := s.failFor[prompt]; ok {
		return caption.Caption{}, err
	}
	return caption.Caption{Text: "Caption for " + prompt}, nil
}

type okGenerator struct{}

func (okGenerator) GenerateImage(ctx context.Context, req image.GenerateRequest) (image.Image, error) {
	return image.Image{Data: []byte("bytes"), Format: "image/png"}, nil
}

type okPoster struct{ calls int }

func (p *okPoster) Post(ctx context.Context, imageRef, caption string) error {
	p.calls++
	return nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, message string, severity notify.Severity) error {
	n.messages = append(n.messages, message)
	return nil
}

type fixture struct {
	runner   *Runner
	store    *memory.ContentStore
	leases   *memory.LeaseStore
	poster   *okPoster
	notifier *recordingNotifier
}

func newFixture(t *testing.T, captioner caption.Captioner) *fixture {
	t.Helper()
	store := memory.NewContentStore()
	leases := memory.NewLeaseStore()
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	budget := resilience.Budget{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	breakers := resilience.NewRegistry(resilience.BreakerConfig{Window: 100, Threshold: 100, Cooldown: time.Minute})
	post := &okPoster{}
	machine := lifecycle.NewMachine(
		store, captioner, okGenerator{}, post, notify.NopNotifier{}, files,
		breakers,
		lifecycle.Budgets{Caption: budget, Image: budget, Persist: budget, Post: budget},
		zerolog.Nop(),
	)
	locker := runlock.NewLocker(leases, "test-runner", time.Minute, zerolog.Nop())
	notifier := &recordingNotifier{}
	runner := NewRunner(locker, store, machine, notifier, breakers, budget, 4, zerolog.Nop())
	return &fixture{runner: runner, store: store, leases: leases, poster: post, notifier: notifier}
}

func seedItems(t *testing.T, store *memory.ContentStore, state domain.State, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("item-%d", i)
		item := &domain.ContentItem{
			ID:        id,
			Kind:      domain.KindPost,
			State:     state,
			Location:  "Jaipur, India",
			Prompt:    fmt.Sprintf("prompt-%d", i),
			Approval:  domain.ApprovalPending,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		}
		if state == domain.StateApproved {
			item.Approval = domain.ApprovalApproved
			item.Caption = "caption"
			item.ImageRef = "generated/posts/" + id + ".png"
		}
		require.NoError(t, store.Create(context.Background(), item))
		ids = append(ids, id)
	}
	return ids
}

func TestRunOncePartialFailure(t *testing.T) {
	captioner := &scriptedCaptioner{failFor: map[string]error{
		"prompt-2": domain.Permanent(errors.New("prompt rejected")),
	}}
	f := newFixture(t, captioner)
	seedItems(t, f.store, domain.StateCaptionPending, 5)

	summary, err := f.runner.RunOnce(context.Background(), JobGeneration)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Advanced)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	require.Equal(t, "item-2", summary.Errors[0].ItemID)

	failed, err := f.store.GetByID(context.Background(), "item-2")
	require.NoError(t, err)
	require.Equal(t, domain.StateFailed, failed.State)
	require.NotEmpty(t, failed.LastError)

	// The lock was released despite the failure.
	_, err = f.runner.RunOnce(context.Background(), JobGeneration)
	require.NoError(t, err)
}

func TestRunOnceUnknownJob(t *testing.T) {
	f := newFixture(t, &scriptedCaptioner{})
	_, err := f.runner.RunOnce(context.Background(), "mystery")
	require.Error(t, err)
}

func TestRunOnceAlreadyRunning(t *testing.T) {
	f := newFixture(t, &scriptedCaptioner{})
	other := runlock.NewLocker(f.leases, "other-runner", time.Minute, zerolog.Nop())
	handle, err := other.Acquire(context.Background(), JobGeneration)
	require.NoError(t, err)
	defer handle.Release(context.Background())

	_, err = f.runner.RunOnce(context.Background(), JobGeneration)
	require.ErrorIs(t, err, domain.ErrAlreadyRunning)
}

func TestGenerationJobDoesNotPost(t *testing.T) {
	f := newFixture(t, &scriptedCaptioner{})
	seedItems(t, f.store, domain.StateApproved, 3)

	summary, err := f.runner.RunOnce(context.Background(), JobGeneration)
	require.NoError(t, err)
	require.Zero(t, summary.Advanced)
	require.Zero(t, f.poster.calls)
}

func TestPostingJobPostsApprovedItems(t *testing.T) {
	f := newFixture(t, &scriptedCaptioner{})
	ids := seedItems(t, f.store, domain.StateApproved, 3)

	summary, err := f.runner.RunOnce(context.Background(), JobPosting)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Advanced)
	require.Equal(t, 3, f.poster.calls)

	for _, id := range ids {
		item, err := f.store.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, domain.StatePosted, item.State)
		require.NotNil(t, item.PostedAt)
	}

	// Re-running the job finds no candidates and never re-posts.
	summary, err = f.runner.RunOnce(context.Background(), JobPosting)
	require.NoError(t, err)
	require.Zero(t, summary.Advanced)
	require.Equal(t, 3, f.poster.calls)
}

func TestRunOnceNotifiesSummary(t *testing.T) {
	f := newFixture(t, &scriptedCaptioner{})
	seedItems(t, f.store, domain.StateCaptionPending, 2)

	_, err := f.runner.RunOnce(context.Background(), JobGeneration)
	require.NoError(t, err)
	require.NotEmpty(t, f.notifier.messages)
	require.Contains(t, f.notifier.messages[len(f.notifier.messages)-1], "2 advanced")
}

type slowCaptioner struct {
	delay time.Duration
}

func (s *slowCaptioner) GenerateCaption(ctx context.Context, prompt, location string) (caption.Caption, error) {
	select {
	case <-ctx.Done():
		return caption.Caption{}, ctx.Err()
	case <-time.After(s.delay):
	}
	return caption.Caption{Text: "Caption for " + prompt}, nil
}

type lostLeases struct {
	*memory.LeaseStore
}

func (lostLeases) Renew(ctx context.Context, lease *domain.RunLease, ttl time.Duration) (*domain.RunLease, error) {
	return nil, domain.ErrLeaseLost
}

func TestRunOnceLeaseLostStopsDispatch(t *testing.T) {
	store := memory.NewContentStore()
	leases := lostLeases{LeaseStore: memory.NewLeaseStore()}
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	budget := resilience.Budget{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	breakers := resilience.NewRegistry(resilience.BreakerConfig{Window: 100, Threshold: 100, Cooldown: time.Minute})
	machine := lifecycle.NewMachine(
		store, &slowCaptioner{delay: 15 * time.Millisecond}, okGenerator{}, &okPoster{}, notify.NopNotifier{}, files,
		breakers,
		lifecycle.Budgets{Caption: budget, Image: budget, Persist: budget, Post: budget},
		zerolog.Nop(),
	)
	// A short ttl makes the keepalive loop renew mid-batch, and every renewal
	// fails, so the run must stop dispatching and report itself incomplete.
	locker := runlock.NewLocker(leases, "test-runner", 30*time.Millisecond, zerolog.Nop())
	runner := NewRunner(locker, store, machine, nil, breakers, budget, 1, zerolog.Nop())
	seedItems(t, store, domain.StateCaptionPending, 20)

	summary, err := runner.RunOnce(context.Background(), JobGeneration)
	require.NoError(t, err)
	require.True(t, summary.Incomplete)
	require.Less(t, summary.Advanced, 20)
	require.Contains(t, summary.String(), "(incomplete)")
}

func TestRunOnceCancelledContext(t *testing.T) {
	f := newFixture(t, &scriptedCaptioner{})
	seedItems(t, f.store, domain.StateCaptionPending, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.runner.RunOnce(ctx, JobGeneration)
	require.Error(t, err)

	// The lock is not left behind after the aborted run.
	_, err = f.runner.RunOnce(context.Background(), JobGeneration)
	require.NoError(t, err)
}
