package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"clothpos/backend/internal/domain"
)

// DefaultSheetRange is where daily report rows are appended.
const DefaultSheetRange = "DailyReports!A:I"

// Sheets appends one row per daily report to a spreadsheet.
type Sheets struct {
	service       *sheetsapi.Service
	spreadsheetID string
	sheetRange    string
	logger        *zap.Logger
	now           func() time.Time
}

// NewSheets authenticates with a service account credentials file. Extra
// client options are applied after the credentials.
func NewSheets(ctx context.Context, credentialsPath string, spreadsheetID string, logger *zap.Logger, opts ...option.ClientOption) (*Sheets, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if credentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsPath))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize sheets client: %w", err)
	}

	return &Sheets{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetRange:    DefaultSheetRange,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *Sheets) SaveDailyReport(ctx context.Context, report domain.DailyReport) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{toReportDocument(report, s.now()).row()}}

	call := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)
	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append report row into %s: %w", s.sheetRange, err)
	}

	s.logger.Debug("daily report appended to sheet", zap.String("date", report.Date), zap.String("range", s.sheetRange))
	return nil
}
