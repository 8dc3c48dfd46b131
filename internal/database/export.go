package database

import (
	"context"
	"fmt"
	"strings"

	"homeservices/internal/models"
)

var exportColumns = qualify("bookings", bookingColumns) +
	`, COALESCE(s.name, '') AS service_name, COALESCE(u.name, '') AS customer_name`

func qualify(table, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = table + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ListBookingsForExport returns every booking matching filter joined with the
// service and customer names, ordered by scheduled date.
func (db *DB) ListBookingsForExport(ctx context.Context, filter models.BookingFilter) ([]*models.BookingExportRow, error) {
	where, args := bookingWhere(filter)
	query := `SELECT ` + exportColumns + `
	          FROM bookings LEFT JOIN services s ON s.id = bookings.service_id
	          LEFT JOIN users u ON u.id = bookings.customer_id` + where + `
	          ORDER BY bookings.scheduled_date ASC, bookings.scheduled_time ASC, bookings.id ASC`
	rows := []*models.BookingExportRow{}
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings for export: %w", err)
	}
	return rows, nil
}

// GetBookingForExport returns a single booking row in export form.
func (db *DB) GetBookingForExport(ctx context.Context, id int64) (*models.BookingExportRow, error) {
	var row models.BookingExportRow
	query := `SELECT ` + exportColumns + `
	          FROM bookings LEFT JOIN services s ON s.id = bookings.service_id
	          LEFT JOIN users u ON u.id = bookings.customer_id
	          WHERE bookings.id = ?`
	if err := db.GetContext(ctx, &row, query, id); err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}
