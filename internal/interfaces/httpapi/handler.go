package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/ahlev/Parlaybot/internal/usecase"
	"github.com/go-playground/validator/v10"
)

// PickReader is the read side of the pick ledger exposed over HTTP.
type PickReader interface {
	ListPicks(ctx context.Context, league string) (usecase.Listing, error)
	FinalizeParlay(ctx context.Context) (usecase.Parlay, error)
	Administrator(ctx context.Context) (string, bool)
}

// WeeklyResetJobRunner executes a reset delivered by the job queue.
type WeeklyResetJobRunner interface {
	RunJob(ctx context.Context, input usecase.WeeklyResetJobInput) (usecase.ResetResult, error)
}

type Handler struct {
	picks     PickReader
	resetJobs WeeklyResetJobRunner
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(picks PickReader, resetJobs WeeklyResetJobRunner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		picks:     picks,
		resetJobs: resetJobs,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListLeaguePicks(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeaguePicks")
	defer span.End()

	listing, err := h.picks.ListPicks(ctx, r.PathValue("league"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toListingDTO(listing))
}

func (h *Handler) GetParlay(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetParlay")
	defer span.End()

	parlay, err := h.picks.FinalizeParlay(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "finalize parlay failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	out := parlayDTO{Empty: parlay.Empty(), Leagues: make([]listingDTO, 0, len(parlay.Leagues))}
	for _, listing := range parlay.Leagues {
		out.Leagues = append(out.Leagues, toListingDTO(listing))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) GetAdministrator(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetAdministrator")
	defer span.End()

	adminID, ok := h.picks.Administrator(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: no weekly reset administrator assigned", usecase.ErrNotFound))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, administratorDTO{UserID: adminID})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
