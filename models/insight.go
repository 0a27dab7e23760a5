package models

// InsightReport holds dashboard aggregates over normalized records.
type InsightReport struct {
	TotalRecords      int
	PricedRecords     int
	OnMarket          int
	AveragePrice      float64
	MinPrice          float64
	MaxPrice          float64
	MostExpensive     Record
	TopByRevenue      []Record
	RecordsByLocation map[string]int
	RecordsByIndustry map[string]int
	RecordsBySource   map[string]int
}
