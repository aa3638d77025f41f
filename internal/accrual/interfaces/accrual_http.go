package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"solar-billing/internal/accrual/application"
	"solar-billing/internal/audit"
	"solar-billing/internal/auth"
	"solar-billing/internal/observability/metrics"
)

const maxBodyBytes = 1 << 16

// StationRunner runs one station's pipeline.
type StationRunner interface {
	RunDailyAccrual(ctx context.Context, stationCode, tariffType string, dayOffset int) (application.RunResult, error)
}

// FleetRunner runs the pipeline for every assigned station.
type FleetRunner interface {
	RunAll(ctx context.Context, dayOffset int) (application.FleetReport, error)
	RunStation(ctx context.Context, stationCode string, dayOffset int) (application.RunResult, error)
}

// AccrualHandler exposes manual accrual triggers.
type AccrualHandler struct {
	runner      StationRunner
	fleet       FleetRunner
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewAccrualHandler constructs the handler.
func NewAccrualHandler(runner StationRunner, fleet FleetRunner, auditLogger audit.Logger, logger *log.Logger) (*AccrualHandler, error) {
	if runner == nil {
		return nil, errors.New("accrual handler: nil runner")
	}
	if fleet == nil {
		return nil, errors.New("accrual handler: nil fleet runner")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AccrualHandler{runner: runner, fleet: fleet, auditLogger: auditLogger, logger: logger}, nil
}

type runRequest struct {
	StationCode string `json:"station_code"`
	TariffType  string `json:"tariff_type"`
	DayOffset   int    `json:"day_offset"`
}

type runAllRequest struct {
	DayOffset int `json:"day_offset"`
}

// Run handles POST /api/v1/accrual/run.
func (h *AccrualHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req runRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Printf("accrual run: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req.StationCode = strings.TrimSpace(req.StationCode)
	if req.StationCode == "" {
		http.Error(w, "station_code is required", http.StatusBadRequest)
		return
	}
	if req.DayOffset < 0 {
		http.Error(w, "day_offset must be >= 0", http.StatusBadRequest)
		return
	}

	if !auth.StationAllowed(r.Context(), req.StationCode) {
		h.audit(r, audit.ActionScopeDenied, req.StationCode, "", map[string]any{"tariff_type": req.TariffType})
		http.Error(w, "forbidden: station out of scope", http.StatusForbidden)
		return
	}

	var result application.RunResult
	if strings.TrimSpace(req.TariffType) == "" {
		result, _ = h.fleet.RunStation(r.Context(), req.StationCode, req.DayOffset)
	} else {
		result, _ = h.runner.RunDailyAccrual(r.Context(), req.StationCode, req.TariffType, req.DayOffset)
	}
	h.audit(r, audit.ActionAccrualRun, req.StationCode, string(result.Outcome), map[string]any{
		"tariff_type": req.TariffType,
		"day_offset":  req.DayOffset,
		"on_date":     result.OnDate.Format("2006-01-02"),
	})
	writeJSON(w, statusForOutcome(result.Outcome), result)
}

// RunAll handles POST /api/v1/accrual/run-all.
func (h *AccrualHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req runAllRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Printf("accrual run-all: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.DayOffset < 0 {
		http.Error(w, "day_offset must be >= 0", http.StatusBadRequest)
		return
	}

	metrics.IncAccrualFleetRun("http")
	report, err := h.fleet.RunAll(r.Context(), req.DayOffset)
	if err != nil {
		h.logger.Printf("accrual run-all: list assignments error: %v", err)
		http.Error(w, "assignments unavailable", http.StatusServiceUnavailable)
		return
	}
	h.audit(r, audit.ActionAccrualRunAll, "", "", map[string]any{
		"day_offset": req.DayOffset,
		"counts":     report.Counts,
	})
	writeJSON(w, http.StatusOK, report)
}

// audit records a manual accrual action. An empty stationCode marks a fleet run.
func (h *AccrualHandler) audit(r *http.Request, action audit.Action, stationCode, outcome string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	resourceID := stationCode
	if resourceID == "" {
		resourceID = "fleet"
	}
	entry := audit.RequestEntry(r, action, "accrual", resourceID).WithMetadata(meta)
	entry.StationCode = stationCode
	entry.Outcome = outcome
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("accrual audit error: action=%s err=%v", action, err)
	}
}

func statusForOutcome(outcome application.Outcome) int {
	switch outcome {
	case application.OutcomeInserted:
		return http.StatusCreated
	case application.OutcomeAlreadyBilled:
		return http.StatusOK
	case application.OutcomeDataIncomplete,
		application.OutcomeInvalidData,
		application.OutcomeConfigurationMissing,
		application.OutcomeUnknownTariffType:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
