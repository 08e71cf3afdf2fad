package market

import "github.com/shopspring/decimal"

type Stock struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Sector        string          `json:"sector"`
	Price         decimal.Decimal `json:"price"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Delisted      bool            `json:"delisted,omitempty"`
}

func listing(symbol, name, sector string, price int64) Stock {
	p := decimal.NewFromInt(price)
	return Stock{Symbol: symbol, Name: name, Sector: sector, Price: p, BasePrice: p}
}

// DefaultStocks is the practice board of large Indian listings.
func DefaultStocks() []Stock {
	return []Stock{
		listing("RELIANCE", "Reliance Industries", "Energy", 2450),
		listing("TCS", "Tata Consultancy Services", "IT", 3520),
		listing("INFY", "Infosys", "IT", 1480),
		listing("HDFCBANK", "HDFC Bank", "Banking", 1620),
		listing("ICICIBANK", "ICICI Bank", "Banking", 945),
		listing("ITC", "ITC Limited", "FMCG", 430),
		listing("WIPRO", "Wipro", "IT", 410),
		listing("TATAMOTORS", "Tata Motors", "Automobile", 620),
		listing("SBIN", "State Bank of India", "Banking", 575),
		listing("BHARTIARTL", "Bharti Airtel", "Telecom", 870),
	}
}
