package routing

import "strings"

// Exchange is one venue in the fixed routing topology.
type Exchange struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Country       string   `json:"country"`
	TradingFeePct float64  `json:"tradingFeePct"`
	Fiats         []string `json:"fiats"`
	Global        bool     `json:"global"`
	// WithdrawalFees is denominated in coin units per withdrawal.
	WithdrawalFees map[string]float64 `json:"withdrawalFees"`
}

// The topology is four Korean KRW venues plus one global USD venue.
var Exchanges = map[string]Exchange{
	"bithumb": {
		ID: "bithumb", Name: "Bithumb", Country: "KR", TradingFeePct: 0.25,
		Fiats: []string{"KRW"},
		WithdrawalFees: map[string]float64{
			"BTC": 0.001, "ETH": 0.01, "XRP": 1.0, "SOL": 0.01, "ADA": 1.0,
			"DOGE": 20.0, "TRX": 1.0, "LINK": 0.35, "DOT": 0.1, "AVAX": 0.01,
			"MATIC": 0.1,
		},
	},
	"upbit": {
		ID: "upbit", Name: "Upbit", Country: "KR", TradingFeePct: 0.25,
		Fiats: []string{"KRW"},
		WithdrawalFees: map[string]float64{
			"BTC": 0.0009, "ETH": 0.01, "XRP": 1.0, "SOL": 0.01, "ADA": 0.5,
			"DOGE": 20.0, "TRX": 1.0, "LINK": 0.4, "DOT": 0.08, "AVAX": 0.02,
			"MATIC": 0.2,
		},
	},
	"coinone": {
		ID: "coinone", Name: "Coinone", Country: "KR", TradingFeePct: 0.2,
		Fiats: []string{"KRW"},
		WithdrawalFees: map[string]float64{
			"BTC": 0.0015, "ETH": 0.02, "XRP": 1.0, "SOL": 0.02, "ADA": 1.0,
			"DOGE": 30.0, "TRX": 1.0, "LINK": 0.5, "DOT": 0.15, "AVAX": 0.03,
			"MATIC": 0.3,
		},
	},
	"korbit": {
		ID: "korbit", Name: "Korbit", Country: "KR", TradingFeePct: 0.2,
		Fiats: []string{"KRW"},
		WithdrawalFees: map[string]float64{
			"BTC": 0.001, "ETH": 0.01, "XRP": 1.0, "SOL": 0.02, "ADA": 1.0,
			"DOGE": 30.0, "TRX": 1.0, "LINK": 0.5, "DOT": 0.1, "AVAX": 0.02,
			"MATIC": 0.3,
		},
	},
	"binance": {
		ID: "binance", Name: "Binance", Country: "GLOBAL", TradingFeePct: 0.1,
		Fiats: []string{"USD", "USDT", "USDC"}, Global: true,
		WithdrawalFees: map[string]float64{
			"BTC": 0.0002, "ETH": 0.003, "XRP": 0.2, "SOL": 0.01, "ADA": 0.8,
			"DOGE": 4.0, "TRX": 1.0, "LINK": 0.25, "DOT": 0.08, "AVAX": 0.008,
			"MATIC": 0.1,
		},
	},
}

// Lookup resolves a venue id case-insensitively.
func Lookup(id string) (Exchange, bool) {
	ex, ok := Exchanges[strings.ToLower(id)]
	return ex, ok
}

// IsUSDLike reports whether a currency settles in dollars.
func IsUSDLike(currency string) bool {
	switch strings.ToUpper(currency) {
	case "USD", "USDT", "USDC":
		return true
	}
	return false
}
