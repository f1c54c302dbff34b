package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
)

// DailySummary renders the end-of-day message from a corrected report.
func DailySummary(report domain.DailyReport) string {
	sales := report.SalesSummary
	supplier := report.SupplierSummary

	var b strings.Builder
	fmt.Fprintf(&b, "*Daily Sales Summary - %s*\n\n", report.Date)
	fmt.Fprintf(&b, "Total Sales: Rs. %s\n", rupees(sales.TotalSalesAmount))
	fmt.Fprintf(&b, "Transactions: %d\n", sales.SalesCount)
	fmt.Fprintf(&b, "Items Sold: %s\n", sales.TotalQuantitySold.String())
	fmt.Fprintf(&b, "Profit: Rs. %s\n\n", rupees(sales.TotalProfit))
	fmt.Fprintf(&b, "Supplier Stock In: Rs. %s (%d lots)\n", rupees(supplier.TotalSupply), supplier.SupplyCount)
	fmt.Fprintf(&b, "Supplier Returns: Rs. %s (%d returns)\n", rupees(supplier.TotalReturns), supplier.ReturnCount)
	fmt.Fprintf(&b, "Net Inventory Value: Rs. %s\n\n", rupees(report.NetInventoryValue))
	b.WriteString("_Sent automatically_")
	return b.String()
}

func LowStockAlert(item domain.LowStockVariety) string {
	unit := string(item.Variety.Unit)

	var b strings.Builder
	b.WriteString("*Low Stock Alert*\n\n")
	fmt.Fprintf(&b, "Product: %s\n", item.Variety.Name)
	fmt.Fprintf(&b, "Current Stock: %s %s\n", item.CurrentStock.String(), unit)
	fmt.Fprintf(&b, "Minimum Level: %s %s\n\n", item.MinStockLevel.String(), unit)
	b.WriteString("Please reorder soon!\n\n")
	b.WriteString("_Automated Stock Alert_")
	return b.String()
}

// rupees formats an amount with two decimals and comma thousands separators.
func rupees(amount decimal.Decimal) string {
	text := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(text, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + grouped.String() + "." + frac
}
