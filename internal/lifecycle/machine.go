// Package lifecycle advances content items through their states, one
// well-defined transition per invocation. Every collaborator call goes
// through the resilience wrapper.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"contentpipe/internal/domain"
	"contentpipe/internal/notify"
	"contentpipe/internal/providers/caption"
	"contentpipe/internal/providers/image"
	"contentpipe/internal/providers/poster"
	"contentpipe/internal/resilience"
	"contentpipe/internal/storage"
)

// Breaker keys, one per downstream dependency.
const (
	KeyCaptioner = "captioner"
	KeyImageGen  = "imagegen"
	KeyStorage   = "storage"
	KeyStore     = "store"
	KeyPoster    = "poster"
)

// Outcome reports what a Step invocation did to the item.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeAdvanced
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeFailed:
		return "failed"
	default:
		return "unchanged"
	}
}

// Budgets holds the per-stage retry budgets.
type Budgets struct {
	Caption resilience.Budget
	Image   resilience.Budget
	Persist resilience.Budget
	Post    resilience.Budget
}

// Machine drives single-item transitions.
type Machine struct {
	store     domain.ContentStore
	captioner caption.Captioner
	images    image.Generator
	poster    poster.Poster
	notifier  notify.Notifier
	files     *storage.FileStore
	breakers  *resilience.Registry
	budgets   Budgets
	logger    zerolog.Logger
	now       func() time.Time
}

// NewMachine wires a Machine from its collaborators.
func NewMachine(
	store domain.ContentStore,
	captioner caption.Captioner,
	images image.Generator,
	post poster.Poster,
	notifier notify.Notifier,
	files *storage.FileStore,
	breakers *resilience.Registry,
	budgets Budgets,
	logger zerolog.Logger,
) *Machine {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Machine{
		store:     store,
		captioner: captioner,
		images:    images,
		poster:    post,
		notifier:  notifier,
		files:     files,
		breakers:  breakers,
		budgets:   budgets,
		logger:    logger,
		now:       time.Now,
	}
}

// Step advances item by at most one transition. The item is mutated in
// memory only; persisting the result is the caller's responsibility, and a
// transition either fully completes (state plus associated fields) or leaves
// the item untouched apart from failure bookkeeping. Re-invoking on a
// terminal state is a no-op.
func (m *Machine) Step(ctx context.Context, item *domain.ContentItem) (Outcome, error) {
	if item.State.Terminal() {
		return OutcomeUnchanged, nil
	}
	switch item.State {
	case domain.StateCaptionPending:
		return m.stepCaption(ctx, item)
	case domain.StateImagePending:
		return m.stepImage(ctx, item)
	case domain.StateImageReady:
		return m.stepPersist(ctx, item)
	case domain.StateAwaitingApproval:
		return m.stepApproval(item)
	case domain.StateApproved:
		return m.stepPost(ctx, item)
	default:
		return OutcomeUnchanged, fmt.Errorf("unknown state %q", item.State)
	}
}

func (m *Machine) stepCaption(ctx context.Context, item *domain.ContentItem) (Outcome, error) {
	c, err := resilience.Do(ctx, m.breakers, KeyCaptioner, m.budgets.Caption, func(ctx context.Context) (caption.Caption, error) {
		return m.captioner.GenerateCaption(ctx, item.Prompt, item.Location)
	})
	if err != nil {
		return m.fail(ctx, item, domain.StageCaption, err)
	}
	item.Caption = c.Text
	item.Hashtags = c.Hashtags
	item.State = domain.StateImagePending
	item.Attempts.Caption = 0
	item.LastError = ""
	return OutcomeAdvanced, nil
}

func (m *Machine) stepImage(ctx context.Context, item *domain.ContentItem) (Outcome, error) {
	img, err := resilience.Do(ctx, m.breakers, KeyImageGen, m.budgets.Image, func(ctx context.Context) (image.Image, error) {
		return m.images.GenerateImage(ctx, image.GenerateRequest{
			Prompt:         item.Prompt,
			NegativePrompt: item.NegativePrompt,
			Kind:           item.Kind,
			RequestID:      item.ID,
		})
	})
	if err != nil {
		return m.fail(ctx, item, domain.StageImage, err)
	}
	key := storageKey(item)
	ref, err := resilience.Do(ctx, m.breakers, KeyStorage, m.budgets.Persist, func(ctx context.Context) (string, error) {
		saved, werr := m.files.Write(ctx, key, img.Data)
		if werr != nil {
			return "", domain.Retryable(werr)
		}
		return saved, nil
	})
	if err != nil {
		return m.fail(ctx, item, domain.StageImage, err)
	}
	item.ImageRef = ref
	item.State = domain.StateImageReady
	item.Attempts.Image = 0
	item.LastError = ""
	return OutcomeAdvanced, nil
}

func (m *Machine) stepPersist(ctx context.Context, item *domain.ContentItem) (Outcome, error) {
	item.State = domain.StateAwaitingApproval
	_, err := resilience.Do(ctx, m.breakers, KeyStore, m.budgets.Persist, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.store.Save(ctx, item)
	})
	if err != nil {
		return m.fail(ctx, item, domain.StagePersist, err)
	}
	item.Attempts.Persist = 0
	item.LastError = ""
	m.notifyBestEffort(ctx, fmt.Sprintf("Content %s (%s, %s) is ready for review", item.ID, item.Kind, item.Location), notify.SeverityInfo)
	return OutcomeAdvanced, nil
}

// stepApproval only observes the externally written approval field; it never
// calls a collaborator.
func (m *Machine) stepApproval(item *domain.ContentItem) (Outcome, error) {
	switch item.Approval {
	case domain.ApprovalApproved:
		item.State = domain.StateApproved
		return OutcomeAdvanced, nil
	case domain.ApprovalRejected:
		item.State = domain.StateRejected
		return OutcomeAdvanced, nil
	default:
		return OutcomeUnchanged, nil
	}
}

func (m *Machine) stepPost(ctx context.Context, item *domain.ContentItem) (Outcome, error) {
	_, err := resilience.Do(ctx, m.breakers, KeyPoster, m.budgets.Post, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.poster.Post(ctx, item.ImageRef, item.RenderedCaption())
	})
	if err != nil {
		return m.fail(ctx, item, domain.StagePost, err)
	}
	now := m.now()
	item.PostedAt = &now
	item.State = domain.StatePosted
	item.Attempts.Post = 0
	item.LastError = ""
	m.notifyBestEffort(ctx, fmt.Sprintf("Posted %s (%s)", item.ID, item.Location), notify.SeveritySuccess)
	return OutcomeAdvanced, nil
}

// fail moves the item to the terminal Failed state. Recovery is an explicit
// operator action (re-queue), never an automatic retry on the next run.
func (m *Machine) fail(ctx context.Context, item *domain.ContentItem, stage domain.Stage, err error) (Outcome, error) {
	item.State = domain.StateFailed
	item.LastError = err.Error()
	item.Attempts.Set(stage, resilience.Attempts(err))
	m.logger.Error().
		Err(err).
		Str("item_id", item.ID).
		Str("stage", string(stage)).
		Msg("lifecycle: transition failed")
	m.notifyBestEffort(ctx, fmt.Sprintf("Item %s failed at %s: %v", item.ID, stage, err), notify.SeverityError)
	return OutcomeFailed, err
}

func (m *Machine) notifyBestEffort(ctx context.Context, message string, severity notify.Severity) {
	if err := m.notifier.Notify(ctx, message, severity); err != nil {
		m.logger.Warn().Err(err).Msg("lifecycle: notification failed")
	}
}

func storageKey(item *domain.ContentItem) string {
	category := "posts"
	if item.Kind == domain.KindStory {
		category = "stories"
	}
	return fmt.Sprintf("generated/%s/%s.png", category, item.ID)
}
