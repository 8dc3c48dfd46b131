package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"homeservices/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var headers = []string{
	"ID", "Customer", "Service", "Provider ID", "Date", "Time", "Address",
	"Status", "Payment Status", "Total", "Cancelled By", "Created At",
}

var statusColors = map[string]string{
	models.StatusPending:    "#FFEB9C",
	models.StatusAccepted:   "#DDEBF7",
	models.StatusInProgress: "#DDEBF7",
	models.StatusCompleted:  "#C6EFCE",
	models.StatusRejected:   "#FFC7CE",
	models.StatusCancelled:  "#FFC7CE",
}

// Source lists bookings joined with their display names.
type Source interface {
	ListBookingsForExport(ctx context.Context, filter models.BookingFilter) ([]*models.BookingExportRow, error)
}

// BookingExporter renders booking listings as XLSX workbooks.
type BookingExporter struct {
	source Source
	dir    string
	logger *zerolog.Logger
}

func NewBookingExporter(source Source, dir string, logger *zerolog.Logger) *BookingExporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "export").Logger()
	return &BookingExporter{source: source, dir: dir, logger: &l}
}

// Write renders the bookings matching filter into w.
func (e *BookingExporter) Write(ctx context.Context, filter models.BookingFilter, w io.Writer) (int, error) {
	rows, err := e.source.ListBookingsForExport(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("load bookings: %w", err)
	}

	f, err := buildWorkbook(rows)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(rows), nil
}

// SaveToFile renders the bookings matching filter into the export directory and returns the path.
func (e *BookingExporter) SaveToFile(ctx context.Context, filter models.BookingFilter) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	name := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("20060102_150405"))
	path := filepath.Join(e.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	n, err := e.Write(ctx, filter, file)
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	e.logger.Info().Str("path", path).Int("rows", n).Msg("bookings exported")
	return path, nil
}

// FileName suggests a download name for a filtered export.
func FileName(filter models.BookingFilter) string {
	name := "bookings"
	if filter.Status != "" {
		name += "_" + filter.Status
	}
	if filter.DateFrom != "" {
		name += "_from_" + filter.DateFrom
	}
	if filter.DateTo != "" {
		name += "_to_" + filter.DateTo
	}
	return name + ".xlsx"
}

func buildWorkbook(rows []*models.BookingExportRow) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "D", 20)
	_ = f.SetColWidth(sheetName, "G", "G", 30)
	_ = f.SetColWidth(sheetName, "H", "L", 16)

	styles := make(map[string]int)
	for i, row := range rows {
		r := i + 2
		values := rowValues(row)
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		color, ok := statusColors[row.Status]
		if !ok {
			continue
		}
		style, ok := styles[row.Status]
		if !ok {
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			})
			if err != nil {
				continue
			}
			styles[row.Status] = style
		}
		cell, _ := excelize.CoordinatesToCellName(8, r)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}

	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), len(rows)+1)
		_ = f.AutoFilter(sheetName, "A1:"+last, nil)
	}
	return f, nil
}

func rowValues(row *models.BookingExportRow) []interface{} {
	var provider interface{} = ""
	if row.ProviderID != nil {
		provider = *row.ProviderID
	}
	cancelledBy := ""
	if row.CancelledBy != nil {
		cancelledBy = *row.CancelledBy
	}
	return []interface{}{
		row.ID,
		row.CustomerName,
		row.ServiceName,
		provider,
		row.ScheduledDate,
		row.ScheduledTime,
		row.Address,
		row.Status,
		row.PaymentStatus,
		row.TotalPrice,
		cancelledBy,
		row.CreatedAt.Format("2006-01-02 15:04"),
	}
}
