package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	accrual "solar-billing/internal/accrual/domain"
	"solar-billing/internal/audit"
	"solar-billing/internal/auth"
	reporting "solar-billing/internal/reporting/domain"
	tariff "solar-billing/internal/tariff/domain"
)

type stubReports struct {
	stationErr error
	summaryErr error
	periods    []time.Time
	codes      [][]string
}

func (s *stubReports) GetStationReport(ctx context.Context, periodStart time.Time, stationCode string) (*reporting.StationReport, error) {
	s.periods = append(s.periods, periodStart)
	if s.stationErr != nil {
		return nil, s.stationErr
	}
	return sampleReport(stationCode, periodStart)
}

func (s *stubReports) GetFleetSummary(ctx context.Context, periodStart time.Time, stationCodes []string) (*reporting.BillingSummary, error) {
	s.periods = append(s.periods, periodStart)
	s.codes = append(s.codes, stationCodes)
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	summary := reporting.NewBillingSummary(periodStart, periodStart)
	report, _ := sampleReport("ST1", periodStart)
	summary.Add(report.Summary())
	summary.Fail("ST2", reporting.ErrorConfigurationMissing, accrual.ErrConfigurationMissing)
	return summary, nil
}

func sampleReport(station string, period time.Time) (*reporting.StationReport, error) {
	flat, err := tariff.NewFlatPeriodTariff(tariff.NameFlatPeriodFixed,
		tariff.Adjustment{Discount: decimal.RequireFromString("0.1"), Surcharge: decimal.RequireFromString("0.2")},
		decimal.RequireFromString("4"), decimal.RequireFromString("5"), tariff.DefaultFixedWindows())
	if err != nil {
		return nil, err
	}
	daily := []reporting.DailyLine{{
		OnDate:       period,
		YieldOffPeak: decimal.NewFromInt(100),
		YieldOnPeak:  decimal.NewFromInt(50),
		YieldTotal:   decimal.NewFromInt(150),
		Revenue:      decimal.NewFromInt(615),
	}}
	return reporting.NewStationReport(station, flat, period, daily, period)
}

func newReportHandler(t *testing.T, service ReportService, auditLogger audit.Logger) *ReportHandler {
	t.Helper()
	h, err := NewReportHandler(service, auditLogger, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h
}

func TestReportHandler_Summary(t *testing.T) {
	service := &stubReports{}
	h := newReportHandler(t, service, nil)

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reports/monthly?year=2026&month=3&station=ST2,ST1&station=ST1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var summary reporting.BillingSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summary.Stations) != 1 || len(summary.Errors) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.Revenue.Equal(decimal.NewFromInt(615)) {
		t.Fatalf("revenue: %s", summary.Revenue)
	}
	if got := service.codes[0]; len(got) != 2 || got[0] != "ST1" || got[1] != "ST2" {
		t.Fatalf("station selector: %v", got)
	}
	if !service.periods[0].Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("period: %s", service.periods[0])
	}
}

func TestReportHandler_Validation(t *testing.T) {
	h := newReportHandler(t, &stubReports{}, nil)
	cases := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/v1/reports/monthly?year=2026&month=13", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/reports/monthly?year=2026&month=0", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/reports/monthly?year=1969&month=1", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/reports/monthly?year=2037&month=1", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/reports/monthly?month=1", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/reports/monthly/ST1?year=2026", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/reports/monthly/%20?year=2026&month=1", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/reports/monthly/ST1/other", http.StatusNotFound},
		{http.MethodPost, "/api/v1/reports/monthly?year=2026&month=1", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.target, nil))
		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.want, resp.Code)
		}
	}
}

func TestReportHandler_StationErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: no assignment", accrual.ErrConfigurationMissing), http.StatusNotFound},
		{reporting.ErrNoLedgerEntries, http.StatusNotFound},
		{fmt.Errorf("%w: \"FLAT\"", tariff.ErrUnknownTariffType), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: ledger: timeout", reporting.ErrUpstreamUnavailable), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		h := newReportHandler(t, &stubReports{stationErr: tc.err}, nil)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reports/monthly/ST1?year=2026&month=3", nil))
		if resp.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, resp.Code)
		}
	}
}

func TestReportHandler_StationReport(t *testing.T) {
	h := newReportHandler(t, &stubReports{}, nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reports/monthly/ST1?year=2026&month=3", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var report reporting.StationReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.StationCode != "ST1" || !report.Revenue.Equal(decimal.NewFromInt(615)) {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestReportHandler_Exports(t *testing.T) {
	auditLogger := audit.NewMemoryLogger()
	h := newReportHandler(t, &stubReports{}, auditLogger)
	cases := []struct {
		target      string
		contentType string
		magic       []byte
	}{
		{"/api/v1/reports/monthly/ST1/export.pdf?year=2026&month=3", contentTypePDF, []byte("%PDF")},
		{"/api/v1/reports/monthly/ST1/export.xlsx?year=2026&month=3", contentTypeXLSX, []byte("PK")},
		{"/api/v1/reports/monthly/export.xlsx?year=2026&month=3", contentTypeXLSX, []byte("PK")},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tc.target, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.target, resp.Code)
		}
		if got := resp.Header().Get("Content-Type"); got != tc.contentType {
			t.Fatalf("%s: content type %q", tc.target, got)
		}
		if !bytes.HasPrefix(resp.Body.Bytes(), tc.magic) {
			t.Fatalf("%s: unexpected body prefix %q", tc.target, resp.Body.Bytes()[:4])
		}
	}
	entries := auditLogger.Entries()
	if len(entries) != len(cases) {
		t.Fatalf("expected %d audit entries, got %d", len(cases), len(entries))
	}
	if entries[0].Action != audit.ActionReportExport || entries[0].StationCode != "ST1" || entries[2].ResourceID != "fleet" {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}
	if entries[0].Period != "2026-03" || entries[0].Outcome != "pdf" || entries[1].Outcome != "xlsx" {
		t.Fatalf("unexpected audit period or format: %+v", entries[:2])
	}
}

func TestReportHandler_StationScope(t *testing.T) {
	service := &stubReports{}
	h := newReportHandler(t, service, nil)
	ctx := auth.WithIdentity(context.Background(), auth.RoleViewer, "viewer-1", auth.NewStationScope([]string{"ST1", "ST3"}))

	cases := []struct {
		target string
		want   int
	}{
		{"/api/v1/reports/monthly/ST1?year=2026&month=3", http.StatusOK},
		{"/api/v1/reports/monthly/ST2?year=2026&month=3", http.StatusForbidden},
		{"/api/v1/reports/monthly/ST2/export.pdf?year=2026&month=3", http.StatusForbidden},
		{"/api/v1/reports/monthly?year=2026&month=3&station=ST1,ST2", http.StatusForbidden},
		{"/api/v1/reports/monthly/export.xlsx?year=2026&month=3&station=ST2", http.StatusForbidden},
		{"/api/v1/reports/monthly?year=2026&month=3", http.StatusOK},
		{"/api/v1/reports/monthly?year=2026&month=3&station=ST3", http.StatusOK},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tc.target, nil).WithContext(ctx))
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.target, tc.want, resp.Code)
		}
	}
	if len(service.codes) != 2 {
		t.Fatalf("expected two summary calls, got %v", service.codes)
	}
	if got := service.codes[0]; len(got) != 2 || got[0] != "ST1" || got[1] != "ST3" {
		t.Fatalf("unfiltered summary must use the caller's stations, got %v", got)
	}
	if got := service.codes[1]; len(got) != 1 || got[0] != "ST3" {
		t.Fatalf("unexpected filtered codes: %v", got)
	}
}

func TestBuildExports_RejectNil(t *testing.T) {
	if _, err := BuildStationReportPDF(nil); err == nil {
		t.Fatalf("expected error for nil report")
	}
	if _, err := BuildStationReportXLSX(nil); err == nil {
		t.Fatalf("expected error for nil report")
	}
	if _, err := BuildSummaryXLSX(nil); err == nil {
		t.Fatalf("expected error for nil summary")
	}
}
