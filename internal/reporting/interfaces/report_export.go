package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	reporting "solar-billing/internal/reporting/domain"
	tariff "solar-billing/internal/tariff/domain"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func yieldText(d decimal.Decimal) string  { return d.StringFixed(3) }
func amountText(d decimal.Decimal) string { return d.StringFixed(2) }
func rateText(d decimal.Decimal) string   { return d.StringFixed(4) }

func warrantyText(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02-01-2006")
}

// BuildStationReportPDF renders a station's monthly bill.
func BuildStationReportPDF(report *reporting.StationReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("export pdf: nil report")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Solar Generation Bill")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Station: %s", report.StationCode))
	pdf.Ln(5)
	if report.Station != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Name: %s  Capacity (kWp): %s", report.Station.Name, yieldText(report.Station.Capacity)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Bill period: %s", report.PeriodStart.Format("01/2006")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Summary: %s to %s", report.FirstDate.Format("02-01-2006"), report.LastDate.Format("02-01-2006")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tariff: %s", report.Tariff.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Discount: %s%%  Surcharge: %s", report.Tariff.Discount.Mul(decimal.NewFromInt(100)).StringFixed(0), rateText(report.Tariff.Surcharge)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	if len(report.Devices) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, "Device", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Type", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Warranty until", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, device := range report.Devices {
			pdf.CellFormat(60, 6, device.Name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, device.DeviceType, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, warrantyText(device.WarrantyExpires), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Rate", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Base", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Discounted", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, rate := range report.Tariff.Rates {
		pdf.CellFormat(40, 6, rate.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, rateText(rate.Rate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, rateText(rate.DiscountedRate), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	flat := report.Tariff.Family == tariff.FamilyFlatPeriod
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Day", "1", 0, "C", false, 0, "")
	if flat {
		pdf.CellFormat(32, 6, "Off-peak (kWh)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(32, 6, "On-peak (kWh)", "1", 0, "C", false, 0, "")
	}
	pdf.CellFormat(32, 6, "Total (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Used (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Revenue", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range report.Daily {
		pdf.CellFormat(30, 6, line.OnDate.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		if flat {
			pdf.CellFormat(32, 6, yieldText(line.YieldOffPeak), "1", 0, "R", false, 0, "")
			pdf.CellFormat(32, 6, yieldText(line.YieldOnPeak), "1", 0, "R", false, 0, "")
		}
		pdf.CellFormat(32, 6, yieldText(line.YieldTotal), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, yieldText(line.Consumption), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, amountText(line.Revenue), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	if flat {
		pdf.Cell(0, 6, fmt.Sprintf("Off-peak yield (kWh): %s", yieldText(report.YieldOffPeak)))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("On-peak yield (kWh): %s", yieldText(report.YieldOnPeak)))
		pdf.Ln(5)
	}
	for _, tier := range report.TierVolumes {
		pdf.Cell(0, 6, fmt.Sprintf("Tier %d yield (kWh): %s", tier.Tier, yieldText(tier.Yield)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Total yield (kWh): %s", yieldText(report.YieldTotal)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total consumption (kWh): %s", yieldText(report.Consumption)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Amount: %s", amountText(report.Revenue)))
	pdf.Ln(5)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStationReportXLSX renders a station report workbook with summary and daily sheets.
func BuildStationReportXLSX(report *reporting.StationReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("export xlsx: nil report")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	dailySheet := "daily"
	devicesSheet := "devices"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(dailySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(devicesSheet); err != nil {
		return nil, err
	}

	rows := [][2]any{
		{"Station", report.StationCode},
	}
	if report.Station != nil {
		rows = append(rows,
			[2]any{"Station name", report.Station.Name},
			[2]any{"Capacity (kWp)", report.Station.Capacity.InexactFloat64()},
		)
	}
	rows = append(rows, [][2]any{
		{"Bill period", report.PeriodStart.Format("01/2006")},
		{"First day", report.FirstDate.Format("2006-01-02")},
		{"Last day", report.LastDate.Format("2006-01-02")},
		{"Tariff", string(report.Tariff.Name)},
		{"Discount", report.Tariff.Discount.InexactFloat64()},
		{"Surcharge", report.Tariff.Surcharge.InexactFloat64()},
	}...)
	for _, rate := range report.Tariff.Rates {
		rows = append(rows,
			[2]any{"Rate " + rate.Label, rate.Rate.InexactFloat64()},
			[2]any{"Discounted rate " + rate.Label, rate.DiscountedRate.InexactFloat64()},
		)
	}
	if report.Tariff.Family == tariff.FamilyFlatPeriod {
		rows = append(rows,
			[2]any{"Off-peak yield (kWh)", report.YieldOffPeak.InexactFloat64()},
			[2]any{"On-peak yield (kWh)", report.YieldOnPeak.InexactFloat64()},
		)
	}
	for _, tier := range report.TierVolumes {
		rows = append(rows, [2]any{fmt.Sprintf("Tier %d yield (kWh)", tier.Tier), tier.Yield.InexactFloat64()})
	}
	rows = append(rows,
		[2]any{"Total yield (kWh)", report.YieldTotal.InexactFloat64()},
		[2]any{"Total consumption (kWh)", report.Consumption.InexactFloat64()},
		[2]any{"Amount", report.Revenue.InexactFloat64()},
	)

	_ = f.SetCellValue(summarySheet, "A1", "Solar Generation Bill")
	for i, row := range rows {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}

	_ = f.SetCellValue(dailySheet, "A1", "Day")
	_ = f.SetCellValue(dailySheet, "B1", "Off-peak (kWh)")
	_ = f.SetCellValue(dailySheet, "C1", "On-peak (kWh)")
	_ = f.SetCellValue(dailySheet, "D1", "Total (kWh)")
	_ = f.SetCellValue(dailySheet, "E1", "Revenue")
	_ = f.SetCellValue(dailySheet, "F1", "Consumption (kWh)")
	for i, line := range report.Daily {
		row := i + 2
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("A%d", row), line.OnDate.Format("2006-01-02"))
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("B%d", row), line.YieldOffPeak.InexactFloat64())
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("C%d", row), line.YieldOnPeak.InexactFloat64())
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("D%d", row), line.YieldTotal.InexactFloat64())
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("E%d", row), line.Revenue.InexactFloat64())
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("F%d", row), line.Consumption.InexactFloat64())
	}

	_ = f.SetCellValue(devicesSheet, "A1", "Device")
	_ = f.SetCellValue(devicesSheet, "B1", "Type")
	_ = f.SetCellValue(devicesSheet, "C1", "ESN")
	_ = f.SetCellValue(devicesSheet, "D1", "Warranty until")
	for i, device := range report.Devices {
		row := i + 2
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("A%d", row), device.Name)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("B%d", row), device.DeviceType)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("C%d", row), device.ESN)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("D%d", row), warrantyText(device.WarrantyExpires))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryXLSX renders a fleet summary workbook with stations and errors sheets.
func BuildSummaryXLSX(summary *reporting.BillingSummary) ([]byte, error) {
	if summary == nil {
		return nil, fmt.Errorf("export xlsx: nil summary")
	}
	f := excelize.NewFile()
	defer f.Close()
	stationsSheet := "stations"
	errorsSheet := "errors"
	if err := f.SetSheetName("Sheet1", stationsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(errorsSheet); err != nil {
		return nil, err
	}

	headers := []string{"Station", "Tariff", "Days", "Off-peak (kWh)", "On-peak (kWh)", "Total (kWh)", "Revenue"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(stationsSheet, cell, h)
	}
	row := 2
	for _, s := range summary.Stations {
		values := []any{
			s.StationCode,
			string(s.TariffName),
			s.Days,
			s.YieldOffPeak.InexactFloat64(),
			s.YieldOnPeak.InexactFloat64(),
			s.YieldTotal.InexactFloat64(),
			s.Revenue.InexactFloat64(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(stationsSheet, cell, v)
		}
		row++
	}
	_ = f.SetCellValue(stationsSheet, fmt.Sprintf("A%d", row), "Fleet total")
	_ = f.SetCellValue(stationsSheet, fmt.Sprintf("F%d", row), summary.YieldTotal.InexactFloat64())
	_ = f.SetCellValue(stationsSheet, fmt.Sprintf("G%d", row), summary.Revenue.InexactFloat64())

	_ = f.SetCellValue(errorsSheet, "A1", "Station")
	_ = f.SetCellValue(errorsSheet, "B1", "Kind")
	_ = f.SetCellValue(errorsSheet, "C1", "Message")
	for i, e := range summary.Errors {
		_ = f.SetCellValue(errorsSheet, fmt.Sprintf("A%d", i+2), e.StationCode)
		_ = f.SetCellValue(errorsSheet, fmt.Sprintf("B%d", i+2), string(e.Kind))
		_ = f.SetCellValue(errorsSheet, fmt.Sprintf("C%d", i+2), e.Message)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
