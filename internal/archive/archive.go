// Package archive stores copies of daily reports and outbound WhatsApp
// messages outside the ledger.
package archive

import (
	"context"
	"errors"
	"time"

	"clothpos/backend/internal/domain"
)

// ReportArchive keeps a copy of each day's corrected report.
type ReportArchive interface {
	SaveDailyReport(ctx context.Context, report domain.DailyReport) error
}

// MessageLog records every send attempt made by the bridge.
type MessageLog interface {
	RecordMessage(ctx context.Context, msg MessageRecord) error
}

type MessageRecord struct {
	Phone     string    `bson:"phone"`
	Body      string    `bson:"body"`
	MessageID string    `bson:"message_id,omitempty"`
	Status    string    `bson:"status"`
	Error     string    `bson:"error,omitempty"`
	SentAt    time.Time `bson:"sent_at"`
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// reportDocument flattens a report into strings so amounts keep their exact
// decimal text in both Mongo and Sheets.
type reportDocument struct {
	Date              string    `bson:"date"`
	TotalSalesAmount  string    `bson:"total_sales_amount"`
	TotalProfit       string    `bson:"total_profit"`
	ItemsSold         string    `bson:"items_sold"`
	SalesCount        int64     `bson:"sales_count"`
	TotalSupply       string    `bson:"total_supply"`
	TotalReturns      string    `bson:"total_returns"`
	SupplyCount       int64     `bson:"supply_count"`
	ReturnCount       int64     `bson:"return_count"`
	NetInventoryValue string    `bson:"net_inventory_value"`
	ArchivedAt        time.Time `bson:"archived_at"`
}

func toReportDocument(report domain.DailyReport, at time.Time) reportDocument {
	return reportDocument{
		Date:              report.Date,
		TotalSalesAmount:  report.SalesSummary.TotalSalesAmount.StringFixed(2),
		TotalProfit:       report.SalesSummary.TotalProfit.StringFixed(2),
		ItemsSold:         report.SalesSummary.TotalQuantitySold.String(),
		SalesCount:        report.SalesSummary.SalesCount,
		TotalSupply:       report.SupplierSummary.TotalSupply.StringFixed(2),
		TotalReturns:      report.SupplierSummary.TotalReturns.StringFixed(2),
		SupplyCount:       report.SupplierSummary.SupplyCount,
		ReturnCount:       report.SupplierSummary.ReturnCount,
		NetInventoryValue: report.NetInventoryValue.StringFixed(2),
		ArchivedAt:        at.UTC(),
	}
}

func (d reportDocument) row() []interface{} {
	return []interface{}{
		d.Date,
		d.TotalSalesAmount,
		d.TotalProfit,
		d.ItemsSold,
		d.SalesCount,
		d.TotalSupply,
		d.TotalReturns,
		d.NetInventoryValue,
		d.ArchivedAt.Format(time.RFC3339),
	}
}

// Noop discards everything. It stands in when no archive is configured.
type Noop struct{}

func (Noop) SaveDailyReport(context.Context, domain.DailyReport) error { return nil }

func (Noop) RecordMessage(context.Context, MessageRecord) error { return nil }

// Fanout saves a report to every archive and joins the failures. One failing
// target does not stop the others.
type Fanout []ReportArchive

func (f Fanout) SaveDailyReport(ctx context.Context, report domain.DailyReport) error {
	var errs []error
	for _, target := range f {
		if err := target.SaveDailyReport(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
