package services

import (
	"bytes"
	"strings"
	"testing"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/utils"
)

func sampleListings() []models.Record {
	return []models.Record{
		{schema.FieldName: "Villa Tools", schema.FieldAskingPrice: int64(200), schema.FieldLocation: "Austin", schema.FieldAnnualRevenue: int64(900), schema.FieldSource: "Flippa", schema.FieldNiche: "Home"},
		{schema.FieldName: "Studio Brands", schema.FieldAskingPrice: int64(50), schema.FieldLocation: "Austin", schema.FieldAnnualRevenue: int64(400), schema.FieldSource: "Flippa", schema.FieldIsOffMarket: true},
		{schema.FieldName: "Loft Supply", schema.FieldAskingPrice: int64(120), schema.FieldLocation: "Denver", schema.FieldAnnualRevenue: int64(1200), schema.FieldSource: "Empire Flippers", schema.FieldIndustry: "Retail", schema.FieldNiche: "Home"},
		{schema.FieldName: "Cabin Gear", schema.FieldAskingPrice: int64(300), schema.FieldLocation: "Boise", schema.FieldSource: "CSV Import"},
		{schema.FieldName: "Flat Co", schema.FieldAskingPrice: int64(0), schema.FieldLocation: "Denver", schema.FieldAnnualRevenue: 50.5, schema.FieldSource: "CSV Import", schema.FieldIsOffMarket: false},
	}
}

func newInsights(t *testing.T) (*InsightService, *schema.Definition) {
	return NewInsightService(utils.NewNopLogger()), mustLookup(t, schema.Listings)
}

func TestInsightCounts(t *testing.T) {
	svc, def := newInsights(t)
	r := svc.Generate(def, sampleListings())
	if r.TotalRecords != 5 {
		t.Errorf("TotalRecords: got %d, want 5", r.TotalRecords)
	}
	if r.OnMarket != 4 {
		t.Errorf("OnMarket: got %d, want 4", r.OnMarket)
	}
	if r.PricedRecords != 4 {
		t.Errorf("PricedRecords: got %d, want 4", r.PricedRecords)
	}
}

func TestInsightPrices(t *testing.T) {
	svc, def := newInsights(t)
	r := svc.Generate(def, sampleListings())
	wantAvg := 167.50
	if r.AveragePrice != wantAvg {
		t.Errorf("AveragePrice: got %.2f, want %.2f", r.AveragePrice, wantAvg)
	}
	if r.MinPrice != 50 {
		t.Errorf("MinPrice: got %.2f, want 50", r.MinPrice)
	}
	if r.MaxPrice != 300 {
		t.Errorf("MaxPrice: got %.2f, want 300", r.MaxPrice)
	}
}

func TestInsightMostExpensive(t *testing.T) {
	svc, def := newInsights(t)
	r := svc.Generate(def, sampleListings())
	if r.MostExpensive == nil {
		t.Fatal("MostExpensive should not be nil")
	}
	if got := r.MostExpensive.String(schema.FieldName); got != "Cabin Gear" {
		t.Errorf("MostExpensive: got %q, want %q", got, "Cabin Gear")
	}
}

func TestInsightTopByRevenue(t *testing.T) {
	svc, def := newInsights(t)
	r := svc.Generate(def, sampleListings())
	if len(r.TopByRevenue) != 4 {
		t.Fatalf("TopByRevenue len: got %d, want 4", len(r.TopByRevenue))
	}
	if got := r.TopByRevenue[0].String(schema.FieldName); got != "Loft Supply" {
		t.Errorf("TopByRevenue[0]: got %q, want Loft Supply", got)
	}
	if got := r.TopByRevenue[3].String(schema.FieldName); got != "Flat Co" {
		t.Errorf("TopByRevenue[3]: got %q, want Flat Co", got)
	}
}

func TestInsightGrouping(t *testing.T) {
	svc, def := newInsights(t)
	r := svc.Generate(def, sampleListings())
	if r.RecordsByLocation["Austin"] != 2 || r.RecordsByLocation["Denver"] != 2 {
		t.Errorf("RecordsByLocation: got %v", r.RecordsByLocation)
	}
	// industry wins over niche when both are present
	if r.RecordsByIndustry["Home"] != 1 || r.RecordsByIndustry["Retail"] != 1 {
		t.Errorf("RecordsByIndustry: got %v", r.RecordsByIndustry)
	}
	if r.RecordsBySource["Flippa"] != 2 {
		t.Errorf("RecordsBySource: got %v", r.RecordsBySource)
	}
}

func TestInsightDealsMarketFlag(t *testing.T) {
	svc := NewInsightService(utils.NewNopLogger())
	def := mustLookup(t, schema.Deals)
	r := svc.Generate(def, []models.Record{
		{schema.FieldBusinessName: "A", schema.FieldIsOnMarket: true},
		{schema.FieldBusinessName: "B", schema.FieldIsOnMarket: false},
		{schema.FieldBusinessName: "C"},
	})
	if r.OnMarket != 1 {
		t.Errorf("OnMarket: got %d, want 1", r.OnMarket)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc, def := newInsights(t)
	r := svc.Generate(def, nil)
	if r.TotalRecords != 0 {
		t.Errorf("TotalRecords: got %d, want 0", r.TotalRecords)
	}
	if r.MostExpensive != nil {
		t.Error("MostExpensive should be nil for empty input")
	}
}

func TestInsightPrint(t *testing.T) {
	svc, def := newInsights(t)
	var buf bytes.Buffer
	svc.Print(&buf, def, svc.Generate(def, sampleListings()))
	out := buf.String()
	for _, want := range []string{"BUSINESS_LISTINGS INSIGHTS", "Cabin Gear", "Loft Supply", "Austin"} {
		if !strings.Contains(out, want) {
			t.Errorf("Print output missing %q", want)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	svc, _ := newInsights(t)
	var buf bytes.Buffer
	svc.PrintSummary(&buf, &models.UploadSummary{
		RunID:  "run-1",
		Schema: schema.Deals,
		Total:  3, Accepted: 2, Successful: 2, Failed: 1,
		Errors: []string{"Row 3: Missing required fields (business_name, source)"},
		Mapping: &models.MappingResult{
			Mappings:        []models.ColumnMapping{{SourceColumn: "Price", TargetField: schema.FieldAskingPrice, Confidence: 80, Origin: models.OriginDictionary}},
			UnmappedColumns: []string{"Colour"},
		},
	})
	out := buf.String()
	for _, want := range []string{"run-1", "asking_price", "Unmapped: Colour", "Row 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintSummary output missing %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short: got %q", got)
	}
	if got := truncate("a very long business name", 10); got != "a very ..." {
		t.Errorf("truncate long: got %q", got)
	}
	if got := truncate("Café Crème Brûlée", 10); got != "Café Cr..." {
		t.Errorf("truncate multibyte: got %q", got)
	}
	if got := truncate("Crème", 5); got != "Crème" {
		t.Errorf("truncate fits in runes: got %q", got)
	}
}
