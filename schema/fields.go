package schema

const (
	FieldBusinessName        Field = "business_name"
	FieldName                Field = "name"
	FieldBusinessDescription Field = "business_description"
	FieldDescription         Field = "description"
	FieldIndustry            Field = "industry"
	FieldNiche               Field = "niche"
	FieldLocation            Field = "location"

	FieldAskingPrice    Field = "asking_price"
	FieldAnnualRevenue  Field = "annual_revenue"
	FieldAnnualProfit   Field = "annual_profit"
	FieldMonthlyRevenue Field = "monthly_revenue"
	FieldMonthlyProfit  Field = "monthly_profit"
	FieldInventoryValue Field = "inventory_value"
	FieldMultiple       Field = "multiple"

	FieldProfitMargin  Field = "profit_margin"
	FieldFBAPercentage Field = "fba_percentage"
	FieldTACoS         Field = "tacos"
	FieldACoS          Field = "acos"

	FieldASINCount       Field = "asin_count"
	FieldEstablishedYear Field = "established_year"
	FieldEmployees       Field = "employees"

	FieldSellerName  Field = "seller_name"
	FieldSellerEmail Field = "seller_email"
	FieldSellerPhone Field = "seller_phone"
	FieldBrokerName  Field = "broker_name"
	FieldBrokerEmail Field = "broker_email"
	FieldStage       Field = "stage"
	FieldPriority    Field = "priority"
	FieldNotes       Field = "notes"

	FieldImageURL     Field = "image_url"
	FieldTags         Field = "tags"
	FieldHighlights   Field = "highlights"
	FieldCustomFields Field = "custom_fields"
	FieldListingDate  Field = "listing_date"
	FieldListingID    Field = "listing_id"
	FieldOriginalURL  Field = "original_url"

	FieldIsOnMarket  Field = "is_on_market"
	FieldIsOffMarket Field = "is_off_market"
	FieldIsFBA       Field = "is_fba"
	FieldIsVerified  Field = "is_verified"

	FieldSource    Field = "source"
	FieldScrapedAt Field = "scraped_at"
	FieldCreatedAt Field = "created_at"
	FieldUpdatedAt Field = "updated_at"
)

// Present on every record of every schema.
var metaColumns = []column{
	{FieldSource, KindText, []string{"source", "platform", "marketplace", "listing_source", "broker_site"}},
	{FieldCreatedAt, KindTimestamp, nil},
	{FieldUpdatedAt, KindTimestamp, nil},
}

// MetaFields are always allowed regardless of schema.
func MetaFields() []Field {
	out := make([]Field, 0, len(metaColumns))
	for _, c := range metaColumns {
		out = append(out, c.field)
	}
	return out
}

// Columns shared by both tables with identical spelling.
var financialColumns = []column{
	{FieldAskingPrice, KindInteger, []string{"price", "asking_price", "original_price", "asking", "list_price", "listing_price"}},
	{FieldAnnualRevenue, KindInteger, []string{"revenue", "annual_revenue", "yearly_revenue", "ttm_revenue", "gross_revenue", "sales"}},
	{FieldAnnualProfit, KindInteger, []string{"profit", "annual_profit", "net_profit", "yearly_profit", "ttm_profit", "sde", "ebitda", "cash_flow"}},
	{FieldMonthlyRevenue, KindNumeric, []string{"monthly_revenue", "avg_monthly_revenue", "mrr"}},
	{FieldMonthlyProfit, KindNumeric, []string{"monthly_profit", "avg_monthly_profit", "monthly_net_profit"}},
	{FieldInventoryValue, KindNumeric, []string{"inventory", "inventory_value", "stock_value"}},
	{FieldMultiple, KindNumeric, []string{"multiple", "valuation_multiple", "profit_multiple"}},
	{FieldProfitMargin, KindPercentage, []string{"margin", "profit_margin", "net_margin"}},
	{FieldFBAPercentage, KindPercentage, []string{"fba", "fba_percentage", "fba_%", "fba_pct", "fba percent"}},
	{FieldTACoS, KindPercentage, []string{"tacos", "tacos_%"}},
	{FieldACoS, KindPercentage, []string{"acos", "acos_%"}},
	{FieldASINCount, KindInteger, []string{"asins", "asin_count", "number_of_asins", "sku_count"}},
	{FieldEstablishedYear, KindInteger, []string{"established", "established_year", "year_established", "founded", "year_founded"}},
	{FieldLocation, KindText, []string{"location", "address", "hq"}},
	{FieldBrokerName, KindText, []string{"broker", "broker_name", "brokerage"}},
	{FieldBrokerEmail, KindText, []string{"broker_email", "brokerage_email"}},
	{FieldImageURL, KindImage, []string{"image", "image_url", "images", "image_urls", "photo", "thumbnail"}},
	{FieldCustomFields, KindJSON, []string{"custom_fields", "metadata", "extra"}},
	{FieldListingDate, KindDate, []string{"listing_date", "date_listed", "listed_on", "listed_date"}},
	{FieldIsFBA, KindBoolean, []string{"is_fba", "fba_business", "amazon_fba"}},
	{FieldIsVerified, KindBoolean, []string{"verified", "is_verified"}},
}

var nameColumns = []string{"business_name", "name", "title"}

var dealsDefinition = newDefinition(Definition{
	ID:                 Deals,
	Table:              "deals",
	NameField:          FieldBusinessName,
	NameColumns:        nameColumns,
	DefaultName:        "Unnamed Business",
	MarketFlag:         FieldIsOnMarket,
	MarketDefault:      true,
	URLSatisfiesSource: false,
	ConflictKeys:       []Field{FieldBusinessName, FieldSource},
	Renames: map[Field]Rename{
		FieldDescription: {To: FieldBusinessDescription},
		FieldNiche:       {To: FieldIndustry},
		FieldIsOffMarket: {To: FieldIsOnMarket, Invert: true},
	},
}, append([]column{
	{FieldBusinessName, KindText, []string{"business_name", "name", "business", "company", "company_name", "title", "listing_name", "business name"}},
	{FieldBusinessDescription, KindText, []string{"description", "business_description", "summary", "overview", "about"}},
	{FieldIndustry, KindText, []string{"industry", "niche", "category", "vertical"}},
	{FieldEmployees, KindInteger, []string{"employees", "employee_count", "team_size"}},
	{FieldSellerName, KindText, []string{"seller", "seller_name", "owner", "owner_name"}},
	{FieldSellerEmail, KindText, []string{"seller_email", "owner_email", "email"}},
	{FieldSellerPhone, KindText, []string{"seller_phone", "owner_phone", "phone"}},
	{FieldStage, KindText, []string{"stage", "status", "pipeline_stage", "deal_stage"}},
	{FieldPriority, KindText, []string{"priority"}},
	{FieldNotes, KindText, []string{"notes", "comments"}},
	{FieldTags, KindArray, []string{"tags", "labels", "keywords"}},
	{FieldIsOnMarket, KindBoolean, []string{"is_on_market", "on_market"}},
}, financialColumns...),
	column{FieldOriginalURL, KindText, []string{"url", "original_url", "link", "listing_url", "href"}},
)

var listingsDefinition = newDefinition(Definition{
	ID:                 Listings,
	Table:              "business_listings",
	NameField:          FieldName,
	NameColumns:        nameColumns,
	DefaultName:        "Unnamed Business",
	MarketFlag:         FieldIsOffMarket,
	MarketDefault:      false,
	URLSatisfiesSource: true,
	ScrapedAt:          true,
	ConflictKeys:       []Field{FieldOriginalURL},
	Renames: map[Field]Rename{
		FieldBusinessDescription: {To: FieldDescription},
		FieldIsOnMarket:          {To: FieldIsOffMarket, Invert: true},
	},
}, append([]column{
	{FieldName, KindText, []string{"name", "business_name", "business", "company", "company_name", "title", "listing_name", "business name"}},
	{FieldDescription, KindText, []string{"description", "business_description", "summary", "overview", "about"}},
	{FieldNiche, KindText, []string{"niche", "category"}},
	{FieldIndustry, KindText, []string{"industry", "vertical"}},
	{FieldListingID, KindText, []string{"listing_id", "listing_number", "id"}},
	{FieldOriginalURL, KindText, []string{"url", "original_url", "link", "listing_url", "href"}},
	{FieldHighlights, KindArray, []string{"highlights", "tags", "features"}},
	{FieldIsOffMarket, KindBoolean, []string{"is_off_market", "off_market"}},
	{FieldScrapedAt, KindTimestamp, []string{"scraped_at", "scrape_timestamp"}},
}, financialColumns...))
