package httpapi

import (
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"contentpipe/internal/domain"
	"contentpipe/pkg/zip"
)

type reviewItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	Location  string    `json:"location"`
	Caption   string    `json:"caption"`
	ImageRef  string    `json:"image_ref"`
	Approval  string    `json:"approval"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewItem(item domain.ContentItem) reviewItem {
	return reviewItem{
		ID:        item.ID,
		Kind:      string(item.Kind),
		State:     string(item.State),
		Location:  item.Location,
		Caption:   item.RenderedCaption(),
		ImageRef:  item.ImageRef,
		Approval:  string(item.Approval),
		LastError: item.LastError,
		CreatedAt: item.CreatedAt,
	}
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListPending returns every item waiting for a reviewer verdict.
func (a *App) ListPending(w http.ResponseWriter, r *http.Request) {
	items, err := a.Store.FetchCandidates(r.Context(), domain.StateAwaitingApproval)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load pending items")
		return
	}
	out := make([]reviewItem, 0, len(items))
	for _, item := range items {
		if item.Approval == domain.ApprovalPending {
			out = append(out, toReviewItem(item))
		}
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

// ListFailed returns failed items so an operator can decide about re-queuing.
func (a *App) ListFailed(w http.ResponseWriter, r *http.Request) {
	items, err := a.Store.FetchCandidates(r.Context(), domain.StateFailed)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load failed items")
		return
	}
	out := make([]reviewItem, 0, len(items))
	for _, item := range items {
		out = append(out, toReviewItem(item))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

func (a *App) Approve(w http.ResponseWriter, r *http.Request) {
	a.decide(w, r, domain.ApprovalApproved)
}

func (a *App) Reject(w http.ResponseWriter, r *http.Request) {
	a.decide(w, r, domain.ApprovalRejected)
}

func (a *App) decide(w http.ResponseWriter, r *http.Request, verdict domain.Approval) {
	id := chi.URLParam(r, "id")
	item, err := a.Store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "unknown item")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load item")
		return
	}
	if item.State != domain.StateAwaitingApproval {
		a.error(w, http.StatusConflict, "conflict", "item is not awaiting approval")
		return
	}
	if err := a.Store.SetApproval(r.Context(), id, verdict); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to record verdict")
		return
	}
	a.Logger.Info().
		Str("item_id", id).
		Str("verdict", string(verdict)).
		Str("reviewer_country", a.reviewerCountry(r)).
		Msg("review: verdict recorded")
	a.json(w, http.StatusOK, map[string]string{"id": id, "approval": string(verdict)})
}

// Requeue sends a failed item back to its earliest incomplete stage.
func (a *App) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := a.Store.Requeue(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "unknown item")
		default:
			a.error(w, http.StatusConflict, "conflict", err.Error())
		}
		return
	}
	a.Logger.Info().
		Str("item_id", id).
		Str("state", string(item.State)).
		Str("reviewer_country", a.reviewerCountry(r)).
		Msg("review: item re-queued")
	a.json(w, http.StatusOK, toReviewItem(*item))
}

// PendingArchive bundles the images of all pending items into one zip so a
// reviewer can flip through them offline.
func (a *App) PendingArchive(w http.ResponseWriter, r *http.Request) {
	items, err := a.Store.FetchCandidates(r.Context(), domain.StateAwaitingApproval)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load pending items")
		return
	}
	var assets []zip.Asset
	for _, item := range items {
		if item.ImageRef == "" {
			continue
		}
		data, err := a.Files.Read(r.Context(), item.ImageRef)
		if err != nil {
			a.Logger.Warn().Err(err).Str("item_id", item.ID).Msg("review: skipping unreadable image")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: item.ID + path.Ext(item.ImageRef),
			MIME:     "image/png",
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no pending images")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="pending-review.zip"`)
	_, _ = w.Write(zip.ArchiveAssets(assets))
}
