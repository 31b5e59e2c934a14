package market

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKRW(t *testing.T) {
	assert.Equal(t, 98500000.0, parseKRW("98,500,000"))
	assert.Equal(t, 3000.5, parseKRW("3000.5"))
	assert.Equal(t, 0.0, parseKRW(""))
	assert.Equal(t, 0.0, parseKRW("n/a"))
}

func TestParseBinancePrices(t *testing.T) {
	body := []byte(`[{"symbol":"BTCUSDT","price":"66500.10"},{"symbol":"XRPUSDT","price":"2.05"},{"symbol":"JUNKUSDT","price":"1"}]`)
	prices, err := parseBinancePrices(body)
	require.NoError(t, err)
	assert.Equal(t, 66500.10, prices["BTC"])
	assert.Equal(t, 2.05, prices["XRP"])
	assert.NotContains(t, prices, "JUNK")
}

func TestTopicAddress(t *testing.T) {
	topic := "0x000000000000000000000000AB5801a7D398351b8bE11C439e05C5b3259aeC9B"
	assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", topicAddress(topic))
	assert.Equal(t, "", topicAddress("0x1234"))
}

func TestPaddedAddressTopic(t *testing.T) {
	got := paddedAddressTopic("0xAB5801a7D398351b8bE11C439e05C5b3259aeC9B")
	assert.Len(t, got, 66)
	assert.Equal(t, "0x000000000000000000000000ab5801a7d398351b8be11c439e05c5b3259aec9b", got)

	// Oversized input must not panic the padding.
	assert.Equal(t, "", paddedAddressTopic("0x"+strings.Repeat("ab", 40)))
}

func TestParseHexUint(t *testing.T) {
	n, ok := parseHexUint("0x10")
	require.True(t, ok)
	assert.Equal(t, uint64(16), n)

	_, ok = parseHexUint("0x")
	assert.False(t, ok)

	_, ok = parseHexUint("0xzz")
	assert.False(t, ok)
}

func TestUSDCUnits(t *testing.T) {
	raw, ok := parseUint256("0x0000000000000000000000000000000000000000000000000000000001312d00")
	require.True(t, ok)
	assert.Equal(t, 20.0, usdcUnits(raw)) // 20_000_000 units

	assert.Equal(t, 0.5, usdcUnits(big.NewInt(500_000)))
}
