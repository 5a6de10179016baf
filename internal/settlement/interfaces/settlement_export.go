package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	readings "forecourt-cloud/internal/readings/domain"
	settlement "forecourt-cloud/internal/settlement/domain"
)

// BuildSettlementPDF renders a minimal PDF for a settlement.
func BuildSettlementPDF(s *settlement.Settlement, claimed []readings.Reading) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Daily Settlement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Station: %s", s.StationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Business Date: %s", s.BusinessDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", s.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Final: %t", s.IsFinal))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", s.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Litres Total: %.2f", s.LitresTotal))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Expected Cash: %.2f  Actual Cash: %.2f  Variance: %.2f",
		s.Expected.Cash, s.Actual.Cash, s.Variance.Cash))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Expected Online: %.2f  Actual Online: %.2f  Variance: %.2f",
		s.Expected.Online, s.Actual.Online, s.Variance.Online))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Expected Credit: %.2f  Actual Credit: %.2f  Variance: %.2f",
		s.Expected.Credit, s.Actual.Credit, s.Variance.Credit))
	pdf.Ln(8)

	// Readings table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Nozzle", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Meter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Litres", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Cash", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range claimed {
		pdf.CellFormat(45, 6, r.NozzleID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", r.MeterValue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", r.LitresSold), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", r.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", r.CashAmount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSettlementXLSX renders a minimal XLSX for a settlement.
func BuildSettlementXLSX(s *settlement.Settlement, claimed []readings.Reading) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	readingsSheet := "readings"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(readingsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Daily Settlement")
	_ = f.SetCellValue(summarySheet, "A3", "Station")
	_ = f.SetCellValue(summarySheet, "B3", s.StationID)
	_ = f.SetCellValue(summarySheet, "A4", "Business Date")
	_ = f.SetCellValue(summarySheet, "B4", s.BusinessDate.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A5", "Status")
	_ = f.SetCellValue(summarySheet, "B5", s.Status)
	_ = f.SetCellValue(summarySheet, "A6", "Final")
	_ = f.SetCellValue(summarySheet, "B6", s.IsFinal)
	_ = f.SetCellValue(summarySheet, "A7", "Litres Total")
	_ = f.SetCellValue(summarySheet, "B7", s.LitresTotal)
	_ = f.SetCellValue(summarySheet, "A8", "Expected Cash")
	_ = f.SetCellValue(summarySheet, "B8", s.Expected.Cash)
	_ = f.SetCellValue(summarySheet, "A9", "Actual Cash")
	_ = f.SetCellValue(summarySheet, "B9", s.Actual.Cash)
	_ = f.SetCellValue(summarySheet, "A10", "Variance Cash")
	_ = f.SetCellValue(summarySheet, "B10", s.Variance.Cash)
	_ = f.SetCellValue(summarySheet, "A11", "Expected Online")
	_ = f.SetCellValue(summarySheet, "B11", s.Expected.Online)
	_ = f.SetCellValue(summarySheet, "A12", "Actual Online")
	_ = f.SetCellValue(summarySheet, "B12", s.Actual.Online)
	_ = f.SetCellValue(summarySheet, "A13", "Expected Credit")
	_ = f.SetCellValue(summarySheet, "B13", s.Expected.Credit)
	_ = f.SetCellValue(summarySheet, "A14", "Actual Credit")
	_ = f.SetCellValue(summarySheet, "B14", s.Actual.Credit)

	_ = f.SetCellValue(readingsSheet, "A1", "Nozzle")
	_ = f.SetCellValue(readingsSheet, "B1", "Meter")
	_ = f.SetCellValue(readingsSheet, "C1", "Litres")
	_ = f.SetCellValue(readingsSheet, "D1", "Value")
	_ = f.SetCellValue(readingsSheet, "E1", "Cash")
	_ = f.SetCellValue(readingsSheet, "F1", "Online")
	_ = f.SetCellValue(readingsSheet, "G1", "Credit")
	for i, r := range claimed {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), r.NozzleID)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), r.MeterValue)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", row), r.LitresSold)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", row), r.Value)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("E%d", row), r.CashAmount)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("F%d", row), r.OnlineAmount)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("G%d", row), r.CreditAmount)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
