package registry

import "github.com/crossfin/crossfin/internal/store"

// seedServices is the built-in catalog of the gateway's own endpoints.
// IDs are fixed so reseeding updates in place instead of duplicating.
var seedServices = []store.Service{
	{
		ID:          "kimchi-premium",
		Name:        "Kimchi Premium Table",
		Description: "Live Bithumb vs Binance premium for all tracked coins",
		Endpoint:    "/api/crypto/kimchi-premium",
		Category:    "crypto",
		PriceUSDC:   0.005,
		Paid:        true,
	},
	{
		ID:          "kimchi-history",
		Name:        "Kimchi Premium History",
		Description: "Hourly premium snapshots per coin, up to 7 days",
		Endpoint:    "/api/crypto/kimchi-premium/history",
		Category:    "crypto",
		PriceUSDC:   0.005,
		Paid:        true,
	},
	{
		ID:          "arbitrage-opportunities",
		Name:        "Arbitrage Opportunities",
		Description: "Premium rows scored with execute, wait, or skip decisions",
		Endpoint:    "/api/crypto/opportunities",
		Category:    "crypto",
		PriceUSDC:   0.01,
		Paid:        true,
	},
	{
		ID:          "cross-exchange",
		Name:        "Cross-Exchange Comparison",
		Description: "Per-coin quotes across Korean venues with spread actions",
		Endpoint:    "/api/crypto/cross-exchange",
		Category:    "crypto",
		PriceUSDC:   0.01,
		Paid:        true,
	},
	{
		ID:          "volume-analysis",
		Name:        "Volume Analysis",
		Description: "Bithumb 24h turnover ranking with unusual-volume flags",
		Endpoint:    "/api/crypto/volume-analysis",
		Category:    "crypto",
		PriceUSDC:   0.005,
		Paid:        true,
	},
	{
		ID:          "route-finder",
		Name:        "Cross-Border Route Finder",
		Description: "Optimal bridge-coin route between Korean and global venues",
		Endpoint:    "/api/route/find",
		Category:    "routing",
		PriceUSDC:   0.02,
		Paid:        true,
	},
	{
		ID:          "morning-brief",
		Name:        "Morning Brief",
		Description: "Kimchi table, Korean indices, and headlines in one bundle",
		Endpoint:    "/api/brief/morning",
		Category:    "brief",
		PriceUSDC:   0.01,
		Paid:        true,
	},
	{
		ID:          "crypto-snapshot",
		Name:        "Crypto Snapshot",
		Description: "Fast crypto-only bundle with volume analysis",
		Endpoint:    "/api/brief/crypto",
		Category:    "brief",
		PriceUSDC:   0.005,
		Paid:        true,
	},
	{
		ID:          "stock-brief",
		Name:        "Korean Stock Brief",
		Description: "One KRX equity with indices and headlines",
		Endpoint:    "/api/brief/stock",
		Category:    "stocks",
		PriceUSDC:   0.005,
		Paid:        true,
	},
	{
		ID:          "usdc-receives",
		Name:        "USDC Receive Monitor",
		Description: "Recent on-chain USDC transfers into the payment receiver",
		Endpoint:    "/api/onchain/usdc-transfers",
		Category:    "onchain",
		PriceUSDC:   0,
		Paid:        false,
	},
}
