package order

import (
	"context"
	"math"
	"time"

	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/order/db"
)

const (
	DefaultReportDays = 30
	MaxReportDays     = 365
)

// DailySales is one UTC day of a seller's paid orders.
type DailySales struct {
	Date    string  `json:"date"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// SellerReport summarises a seller's orders and recent sales.
type SellerReport struct {
	SellerID         string           `json:"sellerId"`
	Since            time.Time        `json:"since"`
	ByStatus         []db.StatusCount `json:"byStatus"`
	Daily            []DailySales     `json:"dailySales"`
	PaidOrders       int              `json:"paidOrders"`
	GrossSales       float64          `json:"grossSales"`
	AverageSalePrice float64          `json:"averageSalePrice"`
}

// SellerStats builds the seller's report over the last days days. Revenue is
// the hammer price; shipping and verification fees are not the seller's.
func (s *OrderService) SellerStats(ctx context.Context, sellerID string, days int) (*SellerReport, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	if days > MaxReportDays {
		days = MaxReportDays
	}

	counts, err := s.DB.CountOrdersByStatus(ctx, sellerID)
	if err != nil {
		return nil, storageError("count orders", err)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))
	sales, err := s.DB.ListSellerSales(ctx, sellerID, since)
	if err != nil {
		return nil, storageError("list sales", err)
	}

	report := &SellerReport{SellerID: sellerID, Since: since, ByStatus: counts}
	report.Daily, report.PaidOrders, report.GrossSales = dailySales(sales)
	if report.PaidOrders > 0 {
		report.AverageSalePrice = round2(report.GrossSales / float64(report.PaidOrders))
	}
	return report, nil
}

// dailySales buckets paid orders by UTC day. Sales arrive oldest first.
func dailySales(sales []models.Order) ([]DailySales, int, float64) {
	daily := []DailySales{}
	var total float64
	for _, o := range sales {
		if o.PaidAt == nil {
			continue
		}
		day := o.PaidAt.UTC().Format("2006-01-02")
		if n := len(daily); n == 0 || daily[n-1].Date != day {
			daily = append(daily, DailySales{Date: day})
		}
		last := &daily[len(daily)-1]
		last.Orders++
		last.Revenue = round2(last.Revenue + o.FinalPrice)
		total += o.FinalPrice
	}
	count := 0
	for _, d := range daily {
		count += d.Orders
	}
	return daily, count, round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
