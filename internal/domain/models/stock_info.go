package models

// CompanyProfile is the raw descriptive data a provider returns. Empty
// strings and a nil MarketCap mean the provider had no value.
type CompanyProfile struct {
	Ticker    string
	LongName  string
	Sector    string
	Industry  string
	Currency  string
	MarketCap *int64
	Summary   string
}

// StockInfo is the body returned by GET /api/stock-info/:ticker.
// MarketCap is a number when known and the string "N/A" otherwise.
type StockInfo struct {
	Ticker      string      `json:"ticker"`
	Name        string      `json:"name"`
	Sector      string      `json:"sector"`
	Industry    string      `json:"industry"`
	Currency    string      `json:"currency"`
	MarketCap   interface{} `json:"market_cap"`
	Description string      `json:"description"`
}
