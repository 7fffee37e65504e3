package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	ledger "verdant-cloud/internal/ledger/domain"
)

func formatServerTS(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// BuildEventsCSV renders an event history export as CSV. The zone id rides in
// every record, so the export carries no separate header block.
func BuildEventsCSV(events []ledger.Event) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"event_id", "zone_id", "type", "entity_type", "entity_id", "message", "server_ts"}); err != nil {
		return nil, err
	}
	for _, event := range events {
		record := []string{
			strconv.FormatInt(event.EventID, 10),
			event.ZoneID,
			event.Type,
			event.EntityType,
			event.EntityID,
			event.Message,
			formatServerTS(event.ServerTS),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildEventsXLSX renders an event history export as XLSX.
func BuildEventsXLSX(zoneID string, events []ledger.Event) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "events"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Zone Event History")
	_ = f.SetCellValue(sheet, "A2", "Zone")
	_ = f.SetCellValue(sheet, "B2", zoneID)

	headers := []string{"Event ID", "Type", "Entity Type", "Entity ID", "Message", "Server TS"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c4", 'A'+i)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, event := range events {
		row := i + 5
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), event.EventID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), event.Type)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), event.EntityType)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), event.EntityID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), event.Message)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), formatServerTS(event.ServerTS))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildEventsPDF renders an event history export as a minimal PDF.
func BuildEventsPDF(zoneID string, events []ledger.Event) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Zone Event History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Zone: %s", zoneID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Events: %d", len(events)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(25, 6, "Event ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Entity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(115, 6, "Message", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Server TS", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, event := range events {
		entity := event.EntityType
		if event.EntityID != "" {
			entity += "/" + event.EntityID
		}
		pdf.CellFormat(25, 6, strconv.FormatInt(event.EventID, 10), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, event.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, entity, "1", 0, "L", false, 0, "")
		pdf.CellFormat(115, 6, event.Message, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, formatServerTS(event.ServerTS), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
