package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"amsf/internal/comparison"
	"amsf/internal/filing"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/httputil"
	"amsf/pkg/requestcontext"
)

// HeaderArtifactLocation carries where an exported document was stored.
const HeaderArtifactLocation = "X-Artifact-Location"

// Service defines the filing operations exposed over HTTP.
type Service interface {
	Render(ctx context.Context, submissionID id.SubmissionID, format filing.Format) (*filing.Document, error)
	Validate(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*filing.ValidationOutcome, error)
	Export(ctx context.Context, submissionID id.SubmissionID, user id.UserID, format filing.Format, acknowledgeUnvalidated bool) (*filing.Document, error)
	Compare(ctx context.Context, submissionID id.SubmissionID) (*comparison.Comparison, error)
}

// Handler wires filing endpoints to the filing service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts filing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/submissions/{submissionID}/validation", h.HandleValidate)
	r.Get("/submissions/{submissionID}/render", h.HandleRender)
	r.Get("/submissions/{submissionID}/export", h.HandleExport)
	r.Get("/submissions/{submissionID}/comparison", h.HandleCompare)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func writeDocument(w http.ResponseWriter, doc *filing.Document, disposition string) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.Filename}))
	if doc.Location != "" {
		w.Header().Set(HeaderArtifactLocation, doc.Location)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

// HandleRender handles GET /submissions/{submissionID}/render. It has no side effects.
func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	format, err := filing.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.Render(ctx, subID, format)
	if err != nil {
		h.fail(ctx, w, "render failed", err)
		return
	}
	writeDocument(w, doc, "inline")
}

// HandleValidate handles POST /submissions/{submissionID}/validation.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.Validate(ctx, subID, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "validation failed", err)
		return
	}
	h.logger.InfoContext(ctx, "submission validated",
		"request_id", requestcontext.RequestID(ctx),
		"submission_id", subID.String(),
		"valid", out.Result.Valid,
		"degraded", out.Result.Degraded(),
		"advanced", out.Advanced,
	)
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleExport handles GET /submissions/{submissionID}/export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := r.URL.Query()
	format, err := filing.ParseFormat(q.Get("format"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ack := false
	if raw := q.Get("acknowledge_unvalidated"); raw != "" {
		ack, err = strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "acknowledge_unvalidated must be a boolean"))
			return
		}
	}
	doc, err := h.service.Export(ctx, subID, requestcontext.UserID(ctx), format, ack)
	if err != nil {
		h.fail(ctx, w, "export failed", err)
		return
	}
	writeDocument(w, doc, "attachment")
}

// HandleCompare handles GET /submissions/{submissionID}/comparison.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cmp, err := h.service.Compare(ctx, subID)
	if err != nil {
		h.fail(ctx, w, "comparison failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromComparison(cmp))
}
