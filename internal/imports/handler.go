package imports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/equinox-erp/equinox/internal/imports/sheet"
	"github.com/equinox-erp/equinox/internal/masterdata/taxes"
	"github.com/equinox-erp/equinox/internal/platform/httpx"
	"github.com/equinox-erp/equinox/internal/shared"
)

// IdempotencyHeader carries the client supplied upload key.
const IdempotencyHeader = "Idempotency-Key"

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes int64 = 10 << 20

// JobEnqueuer schedules commits and rollbacks on the background worker.
type JobEnqueuer interface {
	EnqueueImportCommit(ctx context.Context, batchID uuid.UUID, actor string) (string, error)
	EnqueueImportRollback(ctx context.Context, batchID uuid.UUID, actor string) (string, error)
}

// Handler exposes the import wizard over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	jobs      JobEnqueuer
	validator *validator.Validate
	maxUpload int64
}

// NewHandler builds a Handler. jobs may be nil, in which case async requests
// run inline.
func NewHandler(logger *slog.Logger, service *Service, jobs JobEnqueuer, maxUpload int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{logger: logger, service: service, jobs: jobs, validator: validator.New(), maxUpload: maxUpload}
}

// MountRoutes registers import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listBatches)
	r.Post("/", h.upload)
	r.Get("/template", h.template)
	r.Get("/presets", h.presets)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Post("/resolutions", h.resolve)
		r.Post("/stage", h.stage)
		r.Put("/categories", h.setCategories)
		r.Post("/categories/apply", h.applyCategories)
		r.Post("/review", h.review)
		r.Post("/back", h.back)
		r.Post("/commit", h.commit)
		r.Post("/rollback", h.rollback)
	})
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	batches, pagination, err := h.service.ListBatches(r.Context(), q.Get("division"), page, perPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if batches == nil {
		batches = []ImportBatch{}
	}
	httpx.JSON(w, http.StatusOK, BatchListResponse{Batches: batches, Pagination: pagination})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large",
				fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "multipart form expected")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.FieldProblem(w, map[string]string{"file": "file is required"})
		return
	}
	defer file.Close()

	form := uploadForm{
		Division: strings.TrimSpace(r.FormValue("division")),
		Layout:   strings.ToLower(strings.TrimSpace(r.FormValue("layout"))),
		FileName: header.Filename,
	}
	if fields := h.validate(form); fields != nil {
		httpx.FieldProblem(w, fields)
		return
	}
	if !sheet.Supported(form.FileName) {
		httpx.FieldProblem(w, map[string]string{"file": "only .xlsx, .xls and .csv files are accepted"})
		return
	}

	sess, err := h.service.Upload(r.Context(), UploadInput{
		Division:       form.Division,
		FileName:       form.FileName,
		Layout:         form.Layout,
		Body:           file,
		Actor:          shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	division := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("division")))
	if division == "" {
		division = "APT"
	}
	body, err := h.service.Template(r.Context(), division)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", sheet.ContentTypeXLSX)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_product_import_template.xlsx"`, strings.ToLower(division)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) presets(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Presets())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	sess, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]RowResolution, 0, len(req.Resolutions))
	for _, item := range req.Resolutions {
		items = append(items, RowResolution{Row: item.Row, Resolution: Resolution(item.Resolution)})
	}
	h.respondSession(w, r)(h.service.Resolve(r.Context(), id, items))
}

func (h *Handler) stage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	h.respondSession(w, r)(h.service.Stage(r.Context(), id))
}

func (h *Handler) setCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	var req CategoriesRequest
	if !h.decode(w, r, &req) {
		return
	}
	edits := make([]CategoryTax, 0, len(req.Categories))
	for _, c := range req.Categories {
		edits = append(edits, CategoryTax{Category: c.Category, HSNCode: c.HSNCode, GSTPercent: c.GSTPercent})
	}
	h.respondSession(w, r)(h.service.SetCategories(r.Context(), id, edits))
}

func (h *Handler) applyCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	var req ApplyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Preset == "" && req.HSNCode == "" && req.GSTPercent == nil {
		httpx.FieldProblem(w, map[string]string{"preset": "preset or hsn_code/gst_percent is required"})
		return
	}
	sess, changed, err := h.service.ApplyCategories(r.Context(), id, ApplyInput{
		Preset:     req.Preset,
		HSNCode:    req.HSNCode,
		GSTPercent: req.GSTPercent,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ApplyResponse{Changed: changed, Session: newSessionResponse(sess)})
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	h.respondSession(w, r)(h.service.Review(r.Context(), id))
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	var req BackRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondSession(w, r)(h.service.Back(r.Context(), id, Step(req.Step)))
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if h.async(r) {
		taskID, err := h.jobs.EnqueueImportCommit(r.Context(), id, actor)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, JobResponse{BatchID: id, TaskID: taskID, Queued: true})
		return
	}
	result, err := h.service.Commit(r.Context(), id, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if h.async(r) {
		taskID, err := h.jobs.EnqueueImportRollback(r.Context(), id, actor)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, JobResponse{BatchID: id, TaskID: taskID, Queued: true})
		return
	}
	result, err := h.service.Rollback(r.Context(), id, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) async(r *http.Request) bool {
	if h.jobs == nil {
		return false
	}
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return async
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request) func(*ImportSession, error) {
	return func(sess *ImportSession, err error) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, newSessionResponse(sess))
	}
}

func (h *Handler) batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	if fields := h.validate(target); fields != nil {
		httpx.FieldProblem(w, fields)
		return false
	}
	return true
}

func (h *Handler) validate(target any) map[string]string {
	err := h.validator.Struct(target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return fields
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		parseErr    *ParseError
		conflict    *ConflictError
		incomplete  *IncompleteError
		commitErr   *CommitError
		rollbackErr *RollbackError
	)
	switch {
	case errors.As(err, &parseErr):
		httpx.Problem(w, http.StatusBadRequest, "Unreadable Spreadsheet", parseErr.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrBatchNotFound),
		errors.Is(err, ErrDivisionNotFound), errors.Is(err, ErrRowNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &conflict):
		httpx.JSON(w, http.StatusConflict, conflictProblem{
			ProblemDetail: httpx.ProblemDetail{Title: "Conflict", Status: http.StatusConflict, Detail: conflict.Error()},
			Rows:          conflict.Rows,
			SKUs:          conflict.SKUs,
		})
	case errors.Is(err, ErrAlreadyCommitted), errors.Is(err, ErrDuplicateUpload), errors.Is(err, ErrJobQueued):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &incomplete):
		httpx.JSON(w, http.StatusUnprocessableEntity, incompleteProblem{
			ProblemDetail: httpx.ProblemDetail{Title: "Unprocessable", Status: http.StatusUnprocessableEntity, Detail: incomplete.Error()},
			Categories:    incomplete.Categories,
		})
	case errors.Is(err, ErrInvalidStep), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrRowNotResolvable),
		errors.Is(err, ErrInvalidResolution), errors.Is(err, ErrUnknownCategory), errors.Is(err, ErrNothingToCommit),
		errors.Is(err, ErrCategoriesIncomplete), errors.Is(err, taxes.ErrInvalidHSN), errors.Is(err, taxes.ErrInvalidRate),
		errors.Is(err, taxes.ErrNoPreset):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, ErrImportLocked):
		httpx.Problem(w, http.StatusLocked, "Locked", err.Error())
	case errors.As(err, &commitErr):
		h.logger.Error("import commit", slog.String("step", commitErr.Step), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Commit Failed", "commit failed at step "+commitErr.Step)
	case errors.As(err, &rollbackErr):
		h.logger.Error("import rollback", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Rollback Failed", "rollback failed")
	case errors.Is(err, context.Canceled):
		httpx.Problem(w, http.StatusRequestTimeout, "Request Cancelled", "")
	default:
		h.logger.Error("imports request", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

type conflictProblem struct {
	httpx.ProblemDetail
	Rows []int    `json:"rows,omitempty"`
	SKUs []string `json:"skus,omitempty"`
}

type incompleteProblem struct {
	httpx.ProblemDetail
	Categories []string `json:"categories"`
}
