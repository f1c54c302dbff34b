package archive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"clothpos/backend/internal/domain"
)

func sampleReport() domain.DailyReport {
	return domain.DailyReport{
		Date: "2026-03-14",
		SalesSummary: domain.DailySalesSummary{
			Date:              "2026-03-14",
			TotalSalesAmount:  decimal.NewFromInt(1700),
			TotalProfit:       decimal.RequireFromString("212.5"),
			TotalQuantitySold: decimal.NewFromInt(13),
			SalesCount:        2,
		},
		SupplierSummary: domain.DailySupplierSummary{
			Date:         "2026-03-14",
			TotalSupply:  decimal.NewFromInt(1200),
			TotalReturns: decimal.NewFromInt(240),
			SupplyCount:  1,
			ReturnCount:  1,
		},
		NetInventoryValue: decimal.NewFromInt(960),
	}
}

func TestReportDocumentKeepsExactAmounts(t *testing.T) {
	at := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	doc := toReportDocument(sampleReport(), at)

	assert.Equal(t, "1700.00", doc.TotalSalesAmount)
	assert.Equal(t, "212.50", doc.TotalProfit)
	assert.Equal(t, "13", doc.ItemsSold)
	assert.Equal(t, "960.00", doc.NetInventoryValue)

	row := doc.row()
	require.Len(t, row, 9)
	assert.Equal(t, "2026-03-14", row[0])
	assert.Equal(t, "2026-03-14T22:00:00Z", row[8])
}

type failingArchive struct{ err error }

func (f failingArchive) SaveDailyReport(context.Context, domain.DailyReport) error { return f.err }

type recordingArchive struct {
	mu    sync.Mutex
	dates []string
}

func (r *recordingArchive) SaveDailyReport(_ context.Context, report domain.DailyReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, report.Date)
	return nil
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	boom := errors.New("sheets down")
	rec := &recordingArchive{}

	err := Fanout{failingArchive{err: boom}, rec, Noop{}}.SaveDailyReport(context.Background(), sampleReport())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"2026-03-14"}, rec.dates)
	assert.NoError(t, Fanout{}.SaveDailyReport(context.Background(), sampleReport()))
}

func TestSheetsAppendsReportRow(t *testing.T) {
	var gotPath string
	var gotQuery string
	var body sheetsapi.ValueRange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer server.Close()

	sheets, err := NewSheets(context.Background(), "", "sheet-1", nil,
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	require.NoError(t, sheets.SaveDailyReport(context.Background(), sampleReport()))
	assert.Contains(t, gotPath, "/spreadsheets/sheet-1/values/")
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")
	assert.Contains(t, gotQuery, "insertDataOption=INSERT_ROWS")
	require.Len(t, body.Values, 1)
	assert.Equal(t, "2026-03-14", body.Values[0][0])
	assert.Equal(t, "1700.00", body.Values[0][1])
}

func TestSheetsSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller lacks permission"}}`))
	}))
	defer server.Close()

	sheets, err := NewSheets(context.Background(), "", "sheet-1", nil,
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	err = sheets.SaveDailyReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultSheetRange)
}

func TestNewSheetsRequiresSpreadsheetID(t *testing.T) {
	_, err := NewSheets(context.Background(), "", "", nil, option.WithoutAuthentication())
	assert.Error(t, err)
}

func TestMongoInsertsReportsAndMessages(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("report and message", func(mt *mtest.T) {
		archive := newMongoWithClient(mt.Client, "clothpos")
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, archive.SaveDailyReport(context.Background(), sampleReport()))

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, archive.RecordMessage(context.Background(), MessageRecord{
			Phone:  "919812345678",
			Body:   "hello",
			Status: StatusSent,
		}))
	})

	mt.Run("write error", func(mt *mtest.T) {
		archive := newMongoWithClient(mt.Client, "clothpos")
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		err := archive.SaveDailyReport(context.Background(), sampleReport())
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "2026-03-14")
	})
}
