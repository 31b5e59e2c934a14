package market

// TrackedSymbol is one of the fixed set of coins the gateway aggregates
// and routes through.
type TrackedSymbol struct {
	Coin            string // exchange ticker, e.g. "BTC"
	GlobalSymbol    string // global venue pair, e.g. "BTCUSDT"
	TransferMinutes int    // typical on-chain transfer time
}

// Tracked is the compile-time set of eleven bridge coins.
var Tracked = []TrackedSymbol{
	{Coin: "BTC", GlobalSymbol: "BTCUSDT", TransferMinutes: 40},
	{Coin: "ETH", GlobalSymbol: "ETHUSDT", TransferMinutes: 15},
	{Coin: "XRP", GlobalSymbol: "XRPUSDT", TransferMinutes: 4},
	{Coin: "SOL", GlobalSymbol: "SOLUSDT", TransferMinutes: 5},
	{Coin: "ADA", GlobalSymbol: "ADAUSDT", TransferMinutes: 10},
	{Coin: "DOGE", GlobalSymbol: "DOGEUSDT", TransferMinutes: 20},
	{Coin: "TRX", GlobalSymbol: "TRXUSDT", TransferMinutes: 3},
	{Coin: "LINK", GlobalSymbol: "LINKUSDT", TransferMinutes: 15},
	{Coin: "DOT", GlobalSymbol: "DOTUSDT", TransferMinutes: 8},
	{Coin: "AVAX", GlobalSymbol: "AVAXUSDT", TransferMinutes: 5},
	{Coin: "MATIC", GlobalSymbol: "MATICUSDT", TransferMinutes: 10},
}

// DefaultTransferMinutes is used when a coin has no transfer-time entry.
const DefaultTransferMinutes = 10

var trackedByCoin = func() map[string]TrackedSymbol {
	m := make(map[string]TrackedSymbol, len(Tracked))
	for _, s := range Tracked {
		m[s.Coin] = s
	}
	return m
}()

// LookupCoin returns the tracked symbol for a coin ticker.
func LookupCoin(coin string) (TrackedSymbol, bool) {
	s, ok := trackedByCoin[coin]
	return s, ok
}

// TransferMinutes returns the transfer time for a coin, defaulting when
// the coin is unknown.
func TransferMinutes(coin string) int {
	if s, ok := trackedByCoin[coin]; ok {
		return s.TransferMinutes
	}
	return DefaultTransferMinutes
}

// Coins returns the coin tickers of the tracked set in declaration order.
func Coins() []string {
	out := make([]string, len(Tracked))
	for i, s := range Tracked {
		out[i] = s.Coin
	}
	return out
}
