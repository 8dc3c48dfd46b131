package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"homeservices/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetName  = "Bookings"
	lastColumn = "K"
	timeLayout = "2006-01-02 15:04:05"
)

var ledgerHeaders = []interface{}{
	"ID", "Customer", "Provider ID", "Service", "Date", "Time",
	"Status", "Payment Status", "Total", "Created At", "Updated At",
}

var errRowNotFound = errors.New("booking row not found")

// LedgerService mirrors bookings into a Google Sheets spreadsheet, one row per booking.
type LedgerService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
	logger        *zerolog.Logger
}

// NewLedgerService authenticates with a service account credentials file.
func NewLedgerService(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*LedgerService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newLedgerService(srv, spreadsheetID, logger), nil
}

func newLedgerService(srv *sheets.Service, spreadsheetID string, logger *zerolog.Logger) *LedgerService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "ledger").Logger()
	return &LedgerService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
		logger:        &l,
	}
}

// TestConnection reads the header cell to confirm access to the spreadsheet.
func (s *LedgerService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles to the first row.
func (s *LedgerService) EnsureHeader(ctx context.Context) error {
	rangeData := fmt.Sprintf("%s!A1:%s1", sheetName, lastColumn)
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{ledgerHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *LedgerService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if id := cellID(row); id > 0 {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	s.logger.Debug().Int("rows", len(cache)).Msg("ledger cache warmed up")
	return nil
}

// UpsertBooking updates the booking's row or appends one when it is not on the sheet yet.
func (s *LedgerService) UpsertBooking(ctx context.Context, row *models.BookingExportRow) error {
	if row == nil {
		return fmt.Errorf("booking is nil")
	}

	rowIdx, err := s.FindBookingRow(ctx, row.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.appendBooking(ctx, row)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", sheetName, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(row)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *LedgerService) appendBooking(ctx context.Context, row *models.BookingExportRow) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, sheetName+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(row)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}

	if resp != nil && resp.Updates != nil {
		if idx, ok := parseRowIndex(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(row.ID, idx)
		}
	}
	return nil
}

// FindBookingRow locates the 1-based row index for bookingID in column A.
func (s *LedgerService) FindBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, fmt.Errorf("booking id is required")
	}

	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if cellID(row) == bookingID {
			s.setCachedRow(bookingID, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

// ClearCache clears the row index cache.
func (s *LedgerService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func (s *LedgerService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *LedgerService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func cellID(row []interface{}) int64 {
	if len(row) == 0 {
		return 0
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v)
	case string:
		id, _ := strconv.ParseInt(v, 10, 64)
		return id
	}
	return 0
}

var updatedRangeRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// parseRowIndex extracts the first row number from a range like "Bookings!A10:K10".
func parseRowIndex(updatedRange string) (int, bool) {
	m := updatedRangeRe.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil || idx <= 0 {
		return 0, false
	}
	return idx, true
}

func bookingRowValues(row *models.BookingExportRow) []interface{} {
	var providerID interface{} = ""
	if row.ProviderID != nil {
		providerID = *row.ProviderID
	}
	return []interface{}{
		row.ID,
		row.CustomerName,
		providerID,
		row.ServiceName,
		row.ScheduledDate,
		row.ScheduledTime,
		row.Status,
		row.PaymentStatus,
		row.TotalPrice,
		row.CreatedAt.Format(timeLayout),
		row.UpdatedAt.Format(timeLayout),
	}
}

// StartCacheRefresh rebuilds the row cache every interval until ctx is done.
func (s *LedgerService) StartCacheRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	refresh := func() {
		c, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.WarmUpCache(c); err != nil {
			s.logger.Warn().Err(err).Msg("ledger cache refresh failed")
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
