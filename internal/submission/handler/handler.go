package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"amsf/internal/submission/models"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/httputil"
	"amsf/pkg/requestcontext"
)

// Service defines the submission operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, orgID id.OrganizationID, year int, user id.UserID) (*models.Submission, error)
	Get(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	List(ctx context.Context, orgID id.OrganizationID) ([]*models.Submission, error)
	Transition(ctx context.Context, submissionID id.SubmissionID, event models.Event, user id.UserID) (*models.Submission, error)
	AcquireLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error)
	ReleaseLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID) error
	Sign(ctx context.Context, submissionID id.SubmissionID, user id.UserID, name, title string) (*models.Submission, error)
	Values(ctx context.Context, submissionID id.SubmissionID) ([]models.SubmissionValue, error)
	MergedAnswers(ctx context.Context, submissionID id.SubmissionID) (models.Merged, error)
	OverrideValue(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code string, value models.Value) (*models.SubmissionValue, error)
	ConfirmValue(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code string) (*models.SubmissionValue, error)
	ReviewValue(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code, note string) (*models.SubmissionValue, error)
	SaveAnswer(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code, value string) (*models.Answer, error)
}

// Handler wires submission endpoints to the submission service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts submission endpoints on the router. The router must run
// identity.RequireUser.
func (h *Handler) Register(r chi.Router) {
	r.Post("/organizations/{orgID}/submissions", h.HandleCreate)
	r.Get("/organizations/{orgID}/submissions", h.HandleList)

	r.Route("/submissions/{submissionID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Post("/transitions", h.HandleTransition)
		r.Post("/lock", h.HandleAcquireLock)
		r.Delete("/lock", h.HandleReleaseLock)
		r.Put("/signatory", h.HandleSign)

		r.Get("/values", h.HandleValues)
		r.Get("/merged", h.HandleMerged)
		r.Put("/values/{code}", h.HandleOverride)
		r.Post("/values/{code}/confirm", h.HandleConfirm)
		r.Post("/values/{code}/review", h.HandleReview)
		r.Put("/answers/{code}", h.HandleAnswer)
	})
}

func submissionID(r *http.Request) (id.SubmissionID, error) {
	return id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
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

// HandleCreate handles POST /organizations/{orgID}/submissions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeAndValidate[CreateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user := requestcontext.UserID(ctx)
	sub, err := h.service.Create(ctx, orgID, req.Year, user)
	if err != nil {
		h.fail(ctx, w, "create submission failed", err)
		return
	}
	h.logger.InfoContext(ctx, "submission created",
		"request_id", requestcontext.RequestID(ctx),
		"submission_id", sub.ID.String(),
		"organization_id", orgID.String(),
		"year", sub.Year,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromSubmission(sub))
}

// HandleList handles GET /organizations/{orgID}/submissions.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subs, err := h.service.List(ctx, orgID)
	if err != nil {
		h.fail(ctx, w, "list submissions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubmissions(subs))
}

// HandleGet handles GET /submissions/{submissionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.Get(ctx, subID)
	if err != nil {
		h.fail(ctx, w, "get submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(sub))
}

// HandleTransition handles POST /submissions/{submissionID}/transitions.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeAndValidate[TransitionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.Transition(ctx, subID, req.ParsedEvent(), requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "submission transition failed", err)
		return
	}
	h.logger.InfoContext(ctx, "submission transitioned",
		"request_id", requestcontext.RequestID(ctx),
		"submission_id", subID.String(),
		"event", req.ParsedEvent(),
		"status", sub.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(sub))
}

// HandleAcquireLock handles POST /submissions/{submissionID}/lock.
func (h *Handler) HandleAcquireLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.AcquireLock(ctx, subID, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "acquire lock failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(sub))
}

// HandleReleaseLock handles DELETE /submissions/{submissionID}/lock.
func (h *Handler) HandleReleaseLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ReleaseLock(ctx, subID, requestcontext.UserID(ctx)); err != nil {
		h.fail(ctx, w, "release lock failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSign handles PUT /submissions/{submissionID}/signatory.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeAndValidate[SignatoryRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.Sign(ctx, subID, requestcontext.UserID(ctx), req.Name, req.Title)
	if err != nil {
		h.fail(ctx, w, "sign submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(sub))
}

// HandleValues handles GET /submissions/{submissionID}/values.
func (h *Handler) HandleValues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	values, err := h.service.Values(ctx, subID)
	if err != nil {
		h.fail(ctx, w, "read submission values failed", err)
		return
	}
	if values == nil {
		values = []models.SubmissionValue{}
	}
	httputil.WriteJSON(w, http.StatusOK, ValuesResponse{Values: values})
}

// HandleMerged handles GET /submissions/{submissionID}/merged.
func (h *Handler) HandleMerged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	merged, err := h.service.MergedAnswers(ctx, subID)
	if err != nil {
		h.fail(ctx, w, "merge submission answers failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MergedResponse{Values: merged})
}

// HandleOverride handles PUT /submissions/{submissionID}/values/{code}.
func (h *Handler) HandleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeAndValidate[OverrideRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.OverrideValue(ctx, subID, requestcontext.UserID(ctx), chi.URLParam(r, "code"), *req.Value)
	if err != nil {
		h.fail(ctx, w, "override value failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// HandleConfirm handles POST /submissions/{submissionID}/values/{code}/confirm.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.ConfirmValue(ctx, subID, requestcontext.UserID(ctx), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(ctx, w, "confirm value failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// HandleReview handles POST /submissions/{submissionID}/values/{code}/review.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeAndValidate[ReviewRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.ReviewValue(ctx, subID, requestcontext.UserID(ctx), chi.URLParam(r, "code"), req.Note)
	if err != nil {
		h.fail(ctx, w, "review value failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// HandleAnswer handles PUT /submissions/{submissionID}/answers/{code}.
func (h *Handler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := submissionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeAndValidate[AnswerRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	answer, err := h.service.SaveAnswer(ctx, subID, requestcontext.UserID(ctx), chi.URLParam(r, "code"), req.Value)
	if err != nil {
		h.fail(ctx, w, "save answer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, answer)
}
