package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ahlev/Parlaybot/internal/usecase"
	sonic "github.com/bytedance/sonic"
)

const maxJobBodyBytes = 16 << 10

var internalJobDispatchUnsafeRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (h *Handler) RunWeeklyResetJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunWeeklyResetJob")
	defer span.End()

	if h.resetJobs == nil {
		writeError(ctx, w, fmt.Errorf("%w: weekly reset scheduler is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeWeeklyResetJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "manual"
	}
	if strings.TrimSpace(req.DispatchID) == "" {
		req.DispatchID = buildManualDispatchID("weekly-reset", time.Now())
	}

	result, err := h.resetJobs.RunJob(ctx, usecase.WeeklyResetJobInput{
		Reason:     req.Reason,
		DispatchID: req.DispatchID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "run weekly reset job failed", "dispatch_id", req.DispatchID, "reason", req.Reason, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, weeklyResetJobResponse{
		Trigger:       result.Trigger,
		Cleared:       result.Cleared,
		NotifyUserIDs: append([]string{}, result.NotifyUserIDs...),
		ResetAt:       result.ResetAt,
		DispatchID:    req.DispatchID,
	})
}

func decodeWeeklyResetJobRequest(r *http.Request) (weeklyResetJobRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJobBodyBytes))
	if err != nil {
		return weeklyResetJobRequest{}, fmt.Errorf("%w: read body: %v", usecase.ErrInvalidInput, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return weeklyResetJobRequest{}, nil
	}

	decoder := sonic.ConfigDefault.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var req weeklyResetJobRequest
	if err := decoder.Decode(&req); err != nil {
		return weeklyResetJobRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}

func buildManualDispatchID(jobName string, now time.Time) string {
	return "manual-" + sanitizeDispatchPart(jobName) + "-" + now.UTC().Format("20060102T150405.000000000Z")
}

func sanitizeDispatchPart(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return internalJobDispatchUnsafeRegex.ReplaceAllString(value, "-")
}
