// Package stats derives summary figures and chart data from cached products.
// Everything here is read-only over its input.
package stats

import (
	"github.com/abgdnv/producthub/internal/catalog"
	"github.com/shopspring/decimal"
)

// DefaultChartSize is the number of bars in the ratings chart.
const DefaultChartSize = 6

const (
	notAvailable   = "N/A"
	maxRating      = 5
	labelMaxLength = 20
)

// Overall holds the catalog-wide summary.
type Overall struct {
	TotalProducts int     `json:"totalProducts"`
	AvgRating     float64 `json:"avgRating"`
	AvgPrice      float64 `json:"avgPrice"`
	TotalStock    int64   `json:"totalStock"`
	TotalSales    int64   `json:"totalSales"`
}

// MetadataStat is one labelled metadata value with its display color.
type MetadataStat struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Color string `json:"color"`
}

// RatingBar is one bar of the ratings chart.
type RatingBar struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Rating    float64 `json:"rating"`
	Ratio     float64 `json:"ratio"`
	ColorFrom string  `json:"colorFrom"`
	ColorTo   string  `json:"colorTo"`
}

var barGradients = [][2]string{
	{"#667eea", "#764ba2"},
	{"#10b981", "#059669"},
	{"#f59e0b", "#d97706"},
	{"#8b5cf6", "#7c3aed"},
	{"#ec4899", "#db2777"},
	{"#06b6d4", "#0891b2"},
}

// OverallStats sums and averages the products. Means are rounded half away from zero,
// rating to one decimal and price to two. Both means are 0 for an empty input.
func OverallStats(items []catalog.Product) Overall {
	if len(items) == 0 {
		return Overall{}
	}
	ratingSum := decimal.Zero
	priceSum := decimal.Zero
	stockSum := decimal.Zero
	salesSum := decimal.Zero
	for _, p := range items {
		ratingSum = ratingSum.Add(decimal.NewFromFloat(p.Rating.Float64()))
		priceSum = priceSum.Add(decimal.NewFromFloat(p.Price.Float64()))
		stockSum = stockSum.Add(decimal.NewFromFloat(p.Stock.Float64()))
		salesSum = salesSum.Add(decimal.NewFromFloat(p.Sales.Float64()))
	}
	count := decimal.NewFromInt(int64(len(items)))

	return Overall{
		TotalProducts: len(items),
		AvgRating:     ratingSum.Div(count).Round(1).InexactFloat64(),
		AvgPrice:      priceSum.Div(count).Round(2).InexactFloat64(),
		TotalStock:    stockSum.Round(0).IntPart(),
		TotalSales:    salesSum.Round(0).IntPart(),
	}
}

// MetadataView returns RAM, Storage, Color and Screen in that order, "N/A" for missing values.
func MetadataView(p catalog.Product) [4]MetadataStat {
	var meta catalog.Metadata
	if p.Metadata != nil {
		meta = *p.Metadata
	}
	return [4]MetadataStat{
		{Label: "RAM", Value: orNotAvailable(meta.Ram), Color: "#667eea"},
		{Label: "Storage", Value: orNotAvailable(meta.Storage), Color: "#10b981"},
		{Label: "Color", Value: orNotAvailable(meta.Color), Color: "#f59e0b"},
		{Label: "Screen", Value: orNotAvailable(meta.Screen), Color: "#8b5cf6"},
	}
}

// TopRatingsForChart returns the first n products in cache order. It does not rank by rating.
func TopRatingsForChart(items []catalog.Product, n int) []RatingBar {
	n = max(0, min(n, len(items)))
	bars := make([]RatingBar, n)
	for i, p := range items[:n] {
		gradient := barGradients[i%len(barGradients)]
		rating := p.Rating.Float64()
		bars[i] = RatingBar{
			ID:        p.ID,
			Label:     chartLabel(p.Title),
			Rating:    rating,
			Ratio:     rating / maxRating,
			ColorFrom: gradient[0],
			ColorTo:   gradient[1],
		}
	}
	return bars
}

// chartLabel keeps the first 20 characters of the title and marks the cut.
func chartLabel(title string) string {
	runes := []rune(title)
	if len(runes) > labelMaxLength {
		runes = runes[:labelMaxLength]
	}
	return string(runes) + "..."
}

func orNotAvailable(v string) string {
	if v == "" {
		return notAvailable
	}
	return v
}
