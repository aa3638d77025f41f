package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	accrual "solar-billing/internal/accrual/domain"
	"solar-billing/internal/audit"
	"solar-billing/internal/auth"
	"solar-billing/internal/observability/metrics"
	reporting "solar-billing/internal/reporting/domain"
	tariff "solar-billing/internal/tariff/domain"
)

const (
	monthlyPrefix = "/api/v1/reports/monthly"

	minYear = 1970
	maxYear = 2036
)

// ReportService produces monthly reports.
type ReportService interface {
	GetStationReport(ctx context.Context, periodStart time.Time, stationCode string) (*reporting.StationReport, error)
	GetFleetSummary(ctx context.Context, periodStart time.Time, stationCodes []string) (*reporting.BillingSummary, error)
}

// ReportHandler serves routes under /api/v1/reports/monthly.
type ReportHandler struct {
	service     ReportService
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewReportHandler constructs a handler.
func NewReportHandler(service ReportService, auditLogger audit.Logger, logger *log.Logger) (*ReportHandler, error) {
	if service == nil {
		return nil, errors.New("report handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReportHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP dispatches:
//
//	GET /api/v1/reports/monthly
//	GET /api/v1/reports/monthly/export.xlsx
//	GET /api/v1/reports/monthly/{station}
//	GET /api/v1/reports/monthly/{station}/export.pdf
//	GET /api/v1/reports/monthly/{station}/export.xlsx
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == monthlyPrefix {
		h.handleSummary(w, r)
		return
	}
	rest := strings.TrimPrefix(path, monthlyPrefix+"/")
	if rest == path || rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if rest == "export.xlsx" {
		h.handleSummaryXLSX(w, r)
		return
	}
	parts := strings.Split(rest, "/")
	station := strings.TrimSpace(parts[0])
	switch {
	case len(parts) == 1:
		h.handleStation(w, r, station)
	case len(parts) == 2 && parts[1] == "export.pdf":
		h.handleStationExport(w, r, station, "pdf")
	case len(parts) == 2 && parts[1] == "export.xlsx":
		h.handleStationExport(w, r, station, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ReportHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	codes, ok := scopedStationCodes(r)
	if !ok {
		http.Error(w, "forbidden: station out of scope", http.StatusForbidden)
		return
	}
	summary, err := h.service.GetFleetSummary(r.Context(), period, codes)
	if err != nil {
		h.respondError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ReportHandler) handleSummaryXLSX(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport("xlsx", result, time.Since(start))
	}()

	period, err := parsePeriod(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	codes, ok := scopedStationCodes(r)
	if !ok {
		result = metrics.ResultError
		http.Error(w, "forbidden: station out of scope", http.StatusForbidden)
		return
	}
	summary, err := h.service.GetFleetSummary(r.Context(), period, codes)
	if err != nil {
		result = metrics.ResultError
		h.respondError(w, "summary export", err)
		return
	}
	data, err := BuildSummaryXLSX(summary)
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("report summary export: period=%s err=%v", reporting.PeriodLabel(summary.PeriodStart), err)
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	writeAttachment(w, contentTypeXLSX, "summary_report_"+reporting.PeriodLabel(summary.PeriodStart)+".xlsx", data)
	h.logAudit(r, "", reporting.PeriodLabel(summary.PeriodStart), "xlsx", map[string]any{
		"stations": len(summary.Stations),
	})
}

func (h *ReportHandler) handleStation(w http.ResponseWriter, r *http.Request, station string) {
	period, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if station == "" {
		http.Error(w, "station is required", http.StatusBadRequest)
		return
	}
	if !auth.StationAllowed(r.Context(), station) {
		http.Error(w, "forbidden: station out of scope", http.StatusForbidden)
		return
	}
	report, err := h.service.GetStationReport(r.Context(), period, station)
	if err != nil {
		h.respondError(w, "station "+station, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) handleStationExport(w http.ResponseWriter, r *http.Request, station, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	period, err := parsePeriod(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if station == "" {
		result = metrics.ResultError
		http.Error(w, "station is required", http.StatusBadRequest)
		return
	}
	if !auth.StationAllowed(r.Context(), station) {
		result = metrics.ResultError
		http.Error(w, "forbidden: station out of scope", http.StatusForbidden)
		return
	}
	report, err := h.service.GetStationReport(r.Context(), period, station)
	if err != nil {
		result = metrics.ResultError
		h.respondError(w, "station export "+station, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildStationReportPDF(report)
		contentType = contentTypePDF
	default:
		data, err = BuildStationReportXLSX(report)
		contentType = contentTypeXLSX
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("report export: station=%s format=%s err=%v", station, format, err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	filename := reporting.StationReportKey(report.PeriodStart, report.StationCode) + "." + format
	writeAttachment(w, contentType, filename, data)
	h.logAudit(r, report.StationCode, reporting.PeriodLabel(report.PeriodStart), format, map[string]any{
		"bytes": len(data),
	})
}

func (h *ReportHandler) respondError(w http.ResponseWriter, scope string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("report %s error: %v", scope, err)
	}
	http.Error(w, err.Error(), status)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, reporting.ErrEmptyStationCode), errors.Is(err, reporting.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, accrual.ErrConfigurationMissing), errors.Is(err, reporting.ErrNoLedgerEntries):
		return http.StatusNotFound
	case errors.Is(err, tariff.ErrUnknownTariffType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reporting.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// logAudit records a report export. An empty stationCode marks the fleet summary.
func (h *ReportHandler) logAudit(r *http.Request, stationCode, period, format string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	resourceID := stationCode
	if resourceID == "" {
		resourceID = "fleet"
	}
	entry := audit.RequestEntry(r, audit.ActionReportExport, "report", resourceID).WithMetadata(meta)
	entry.StationCode = stationCode
	entry.Period = period
	entry.Outcome = format
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("report audit error: station=%s period=%s err=%v", resourceID, period, err)
	}
}

func parsePeriod(r *http.Request) (time.Time, error) {
	q := r.URL.Query()
	year, err := strconv.Atoi(strings.TrimSpace(q.Get("year")))
	if err != nil {
		return time.Time{}, errors.New("year is required")
	}
	month, err := strconv.Atoi(strings.TrimSpace(q.Get("month")))
	if err != nil {
		return time.Time{}, errors.New("month is required")
	}
	if month < 1 || month > 12 {
		return time.Time{}, errors.New("month must be between 1 and 12")
	}
	if year < minYear || year > maxYear {
		return time.Time{}, errors.New("year must be between 1970 and 2036")
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// stationCodes accepts repeated station params and comma-separated lists.
func stationCodes(r *http.Request) []string {
	var codes []string
	for _, value := range r.URL.Query()["station"] {
		codes = append(codes, strings.Split(value, ",")...)
	}
	return reporting.NormalizeStationCodes(codes)
}

// scopedStationCodes narrows the requested stations to the caller's scope. A scoped
// caller with no station filter gets their own stations; asking for any other
// station is refused.
func scopedStationCodes(r *http.Request) ([]string, bool) {
	codes := stationCodes(r)
	scope := auth.ScopeFromContext(r.Context())
	if scope.Fleet() {
		return codes, true
	}
	if len(codes) == 0 {
		return scope.Codes(), true
	}
	for _, code := range codes {
		if !scope.Allows(code) {
			return nil, false
		}
	}
	return codes, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
