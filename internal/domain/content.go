package domain

import (
	"errors"
	"strings"
	"time"
)

// Kind enumerates the content formats the pipeline produces.
type Kind string

const (
	KindPost  Kind = "post"
	KindStory Kind = "story"
)

// State enumerates content lifecycle states. Non-terminal states advance in
// the declared order; Failed is reachable from any of them and Rejected only
// from AwaitingApproval.
type State string

const (
	StateCaptionPending   State = "caption_pending"
	StateImagePending     State = "image_pending"
	StateImageReady       State = "image_ready"
	StateAwaitingApproval State = "awaiting_approval"
	StateApproved         State = "approved"
	StatePosted           State = "posted"
	StateRejected         State = "rejected"
	StateFailed           State = "failed"
)

// Terminal reports whether no further automatic transition exists from s.
func (s State) Terminal() bool {
	switch s {
	case StatePosted, StateRejected, StateFailed:
		return true
	}
	return false
}

// Approval is the reviewer's verdict, written outside the pipeline and only
// ever read by it.
type Approval string

const (
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Stage names the pipeline step an attempt counter or error belongs to.
type Stage string

const (
	StageCaption Stage = "caption"
	StageImage   Stage = "image"
	StagePersist Stage = "persist"
	StagePost    Stage = "post"
)

// StageAttempts tracks how many attempts the most recent invocation of each
// stage consumed. A counter is reset to zero when its stage succeeds.
type StageAttempts struct {
	Caption int
	Image   int
	Persist int
	Post    int
}

// Set records n attempts against the named stage.
func (a *StageAttempts) Set(stage Stage, n int) {
	switch stage {
	case StageCaption:
		a.Caption = n
	case StageImage:
		a.Image = n
	case StagePersist:
		a.Persist = n
	case StagePost:
		a.Post = n
	}
}

// ContentItem is the unit of work moved through the lifecycle. ID, Kind,
// Location, Prompt and NegativePrompt are fixed at creation; the remaining
// fields are written by the state machine (or, for Approval, by a reviewer).
type ContentItem struct {
	ID             string
	Kind           Kind
	State          State
	Location       string
	Prompt         string
	NegativePrompt string
	Caption        string
	Hashtags       []string
	ImageRef       string
	Approval       Approval
	PostedAt       *time.Time
	Attempts       StageAttempts
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RenderedCaption returns the caption as published: the caption text followed
// by the hashtag block, separated by a blank line.
func (c *ContentItem) RenderedCaption() string {
	if len(c.Hashtags) == 0 {
		return c.Caption
	}
	tags := make([]string, 0, len(c.Hashtags))
	for _, tag := range c.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, strings.ToLower(tag))
	}
	if len(tags) == 0 {
		return c.Caption
	}
	return c.Caption + "\n\n" + strings.Join(tags, " ")
}

// RequeueState derives the earliest incomplete stage for a failed item so an
// operator can send it back through the pipeline. Only failed items may be
// re-queued; everything already produced (caption, image, approval) is kept.
func (c *ContentItem) RequeueState() (State, error) {
	if c.State != StateFailed {
		return "", errors.New("only failed items can be re-queued")
	}
	switch {
	case c.PostedAt != nil:
		return "", errors.New("item was already posted")
	case c.Approval == ApprovalApproved && c.ImageRef != "":
		return StateApproved, nil
	case c.ImageRef != "":
		return StateImageReady, nil
	case c.Caption != "":
		return StateImagePending, nil
	default:
		return StateCaptionPending, nil
	}
}
