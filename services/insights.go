package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(def *schema.Definition, records []models.Record) *models.InsightReport {
	report := &models.InsightReport{
		RecordsByLocation: make(map[string]int),
		RecordsByIndustry: make(map[string]int),
		RecordsBySource:   make(map[string]int),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalRecords = len(records)

	var total float64
	var revenueRecords []models.Record
	for _, r := range records {
		if onMarket(def, r) {
			report.OnMarket++
		}
		if price, ok := number(r[schema.FieldAskingPrice]); ok && price > 0 {
			if report.PricedRecords == 0 || price < report.MinPrice {
				report.MinPrice = price
			}
			if price > report.MaxPrice {
				report.MaxPrice = price
				report.MostExpensive = r
			}
			total += price
			report.PricedRecords++
		}
		if rev, ok := number(r[schema.FieldAnnualRevenue]); ok && rev > 0 {
			revenueRecords = append(revenueRecords, r)
		}
		if loc := r.String(schema.FieldLocation); loc != "" {
			report.RecordsByLocation[loc]++
		}
		if ind := industryOf(r); ind != "" {
			report.RecordsByIndustry[ind]++
		}
		if src := r.String(schema.FieldSource); src != "" {
			report.RecordsBySource[src]++
		}
	}

	if report.PricedRecords > 0 {
		report.AveragePrice = round2(total / float64(report.PricedRecords))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	// Top 5 by annual revenue
	sort.SliceStable(revenueRecords, func(i, j int) bool {
		a, _ := number(revenueRecords[i][schema.FieldAnnualRevenue])
		b, _ := number(revenueRecords[j][schema.FieldAnnualRevenue])
		return a > b
	})
	if len(revenueRecords) > 5 {
		report.TopByRevenue = revenueRecords[:5]
	} else {
		report.TopByRevenue = revenueRecords
	}

	s.logger.Debug("[insights] %d records, %d priced", report.TotalRecords, report.PricedRecords)
	return report
}

func (s *InsightService) Print(w io.Writer, def *schema.Definition, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 %s INSIGHTS\033[0m\n", strings.ToUpper(def.Table))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total records   : \033[1m%d\033[0m\n", r.TotalRecords)
	fmt.Fprintf(w, "  On the market   : \033[1m%d\033[0m\n", r.OnMarket)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Asking Price\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedRecords > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m$%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum : \033[1;32m$%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum : \033[1;32m$%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		price, _ := number(r.MostExpensive[schema.FieldAskingPrice])
		fmt.Fprintf(w, "\033[1;33m  Most Expensive\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.String(def.NameField), 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.String(schema.FieldLocation))
		fmt.Fprintf(w, "  Price    : \033[1;31m$%.0f\033[0m\n", price)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top 5 by Annual Revenue\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopByRevenue) == 0 {
		fmt.Fprintf(w, "  No revenue data\n")
	} else {
		for i, rec := range r.TopByRevenue {
			rev, _ := number(rec[schema.FieldAnnualRevenue])
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-36s \033[1;32m$%.0f\033[0m\n",
				i+1, truncate(rec.String(def.NameField), 34), rev)
		}
	}
	fmt.Fprintln(w)

	printCounts(w, "Records by Location", thin, r.RecordsByLocation)
	printCounts(w, "Records by Industry", thin, r.RecordsByIndustry)
	printCounts(w, "Records by Source", thin, r.RecordsBySource)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintSummary renders an upload result.
func (s *InsightService) PrintSummary(w io.Writer, sum *models.UploadSummary) {
	thin := strings.Repeat("─", 54)
	fmt.Fprintf(w, "\n\033[1;33m  Upload %s → %s\033[0m\n", sum.RunID, sum.Schema)
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rows parsed : \033[1m%d\033[0m\n", sum.Total)
	fmt.Fprintf(w, "  Accepted    : \033[1m%d\033[0m\n", sum.Accepted)
	fmt.Fprintf(w, "  Successful  : \033[1;32m%d\033[0m\n", sum.Successful)
	fmt.Fprintf(w, "  Failed      : \033[1;31m%d\033[0m\n", sum.Failed)
	fmt.Fprintf(w, "  Skipped     : %d\n", sum.Skipped)
	if sum.DryRun {
		fmt.Fprintf(w, "  (dry run: nothing written)\n")
	}
	if sum.Mapping != nil {
		fmt.Fprintf(w, "\n  Column mapping\n  %s\n", thin)
		for _, m := range sum.Mapping.Mappings {
			fmt.Fprintf(w, "  %-24s → %-22s %3d%% %s\n",
				truncate(m.SourceColumn, 24), m.TargetField, m.Confidence, m.Origin)
		}
		if len(sum.Mapping.UnmappedColumns) > 0 {
			fmt.Fprintf(w, "  Unmapped: %s\n", strings.Join(sum.Mapping.UnmappedColumns, ", "))
		}
		for _, sug := range sum.Mapping.Suggestions {
			fmt.Fprintf(w, "  Suggestion: %s\n", sug)
		}
	}
	for _, warn := range sum.Warnings {
		fmt.Fprintf(w, "  \033[33mwarning:\033[0m %s\n", warn)
	}
	for _, e := range sum.Errors {
		fmt.Fprintf(w, "  \033[31merror:\033[0m %s\n", e)
	}
	fmt.Fprintln(w)
}

func printCounts(w io.Writer, title, thin string, counts map[string]int) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}
	type keyCount struct {
		key   string
		count int
	}
	var kcs []keyCount
	for k, c := range counts {
		kcs = append(kcs, keyCount{k, c})
	}
	sort.Slice(kcs, func(i, j int) bool {
		if kcs[i].count != kcs[j].count {
			return kcs[i].count > kcs[j].count
		}
		return kcs[i].key < kcs[j].key
	})
	for _, kc := range kcs {
		bar := strings.Repeat("█", min(kc.count, 40))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(kc.key, 28), bar, kc.count)
	}
	fmt.Fprintln(w)
}

func onMarket(def *schema.Definition, r models.Record) bool {
	v, _ := r[def.MarketFlag].(bool)
	if def.MarketFlag == schema.FieldIsOffMarket {
		return !v
	}
	return v
}

func industryOf(r models.Record) string {
	if ind := r.String(schema.FieldIndustry); ind != "" {
		return ind
	}
	return r.String(schema.FieldNiche)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
