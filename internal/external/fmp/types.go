package fmp

// profileDTO is one element of /profile/{symbol}
type profileDTO struct {
	Symbol            string   `json:"symbol"`
	CompanyName       string   `json:"companyName"`
	Price             float64  `json:"price"`
	Beta              *float64 `json:"beta"`
	MktCap            float64  `json:"mktCap"`
	Currency          string   `json:"currency"`
	Exchange          string   `json:"exchange"`
	ExchangeShortName string   `json:"exchangeShortName"`
	Industry          string   `json:"industry"`
	Sector            string   `json:"sector"`
	Country           string   `json:"country"`
	Image             string   `json:"image"`
	IsEtf             bool     `json:"isEtf"`
	IsFund            bool     `json:"isFund"`
}

// keyMetricDTO is one annual row of /key-metrics/{symbol}
type keyMetricDTO struct {
	Date                      string  `json:"date"`
	NetIncomePerShare         float64 `json:"netIncomePerShare"`
	OperatingCashFlowPerShare float64 `json:"operatingCashFlowPerShare"`
	BookValuePerShare         float64 `json:"bookValuePerShare"`
	RevenuePerShare           float64 `json:"revenuePerShare"`
}

type dividendDTO struct {
	Date        string  `json:"date"`
	Dividend    float64 `json:"dividend"`
	AdjDividend float64 `json:"adjDividend"`
}

type dividendHistoryDTO struct {
	Symbol     string        `json:"symbol"`
	Historical []dividendDTO `json:"historical"`
}

type closeDTO struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type priceHistoryDTO struct {
	Symbol     string     `json:"symbol"`
	Historical []closeDTO `json:"historical"`
}

// errorDTO is the body FMP returns with HTTP 200 on failure
type errorDTO struct {
	ErrorMessage string `json:"Error Message"`
}
