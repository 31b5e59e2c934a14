package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/netx"
)

// transferTopic is keccak256("Transfer(address,address,uint256)").
const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// receiveScanBlocks bounds the eth_getLogs window. Base produces a block
// every ~2s, so 4000 blocks is roughly the last two hours.
const receiveScanBlocks = 4000

// USDCTransfer is one received transfer to the configured wallet.
type USDCTransfer struct {
	TxHash      string    `json:"txHash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	AmountUSDC  float64   `json:"amountUsdc"`
	BlockNumber uint64    `json:"blockNumber"`
	At          time.Time `json:"at"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type rpcLog struct {
	TxHash      string   `json:"transactionHash"`
	BlockNumber string   `json:"blockNumber"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
}

func (d *Data) fetchUSDCReceives(ctx context.Context) ([]USDCTransfer, error) {
	if d.receiver == "" {
		return nil, apperr.New(apperr.BadInput, "no receiver wallet configured")
	}

	var lastErr error
	for _, endpoint := range d.rpcEndpoints {
		transfers, err := d.scanReceives(ctx, endpoint)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Str("rpc", endpoint).Msg("rpc endpoint failed, trying next")
			continue
		}
		return transfers, nil
	}
	if lastErr == nil {
		lastErr = apperr.New(apperr.UpstreamUnavailable, "no rpc endpoints configured")
	}
	return nil, lastErr
}

func (d *Data) scanReceives(ctx context.Context, endpoint string) ([]USDCTransfer, error) {
	head, err := d.rpcBlockNumber(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	from := uint64(0)
	if head > receiveScanBlocks {
		from = head - receiveScanBlocks
	}

	logs, err := d.rpcGetLogs(ctx, endpoint, from, head)
	if err != nil {
		return nil, err
	}

	transfers := make([]USDCTransfer, 0, len(logs))
	blockTimes := make(map[uint64]time.Time)
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			continue
		}
		// Topic 2 carries the 20-byte recipient, left-padded to 32 bytes.
		to := topicAddress(lg.Topics[2])
		if !strings.EqualFold(to, d.receiver) {
			continue
		}
		amount, ok := parseUint256(lg.Data)
		if !ok {
			continue
		}
		blockNum, ok := parseHexUint(lg.BlockNumber)
		if !ok {
			continue
		}
		at, cached := blockTimes[blockNum]
		if !cached {
			at, err = d.rpcBlockTime(ctx, endpoint, blockNum)
			if err != nil {
				at = time.Time{}
			}
			blockTimes[blockNum] = at
		}
		transfers = append(transfers, USDCTransfer{
			TxHash:      lg.TxHash,
			From:        topicAddress(lg.Topics[1]),
			To:          to,
			AmountUSDC:  usdcUnits(amount),
			BlockNumber: blockNum,
			At:          at,
		})
	}

	sort.Slice(transfers, func(i, j int) bool {
		return transfers[i].BlockNumber > transfers[j].BlockNumber
	})
	return transfers, nil
}

func (d *Data) rpcBlockNumber(ctx context.Context, endpoint string) (uint64, error) {
	raw, err := d.rpcCall(ctx, endpoint, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, apperr.Wrap(apperr.UpstreamUnavailable, "rpc decode failed", err)
	}
	n, ok := parseHexUint(hex)
	if !ok {
		return 0, apperr.New(apperr.UpstreamUnavailable, "bad block number")
	}
	return n, nil
}

func (d *Data) rpcGetLogs(ctx context.Context, endpoint string, from, to uint64) ([]rpcLog, error) {
	receiverTopic := paddedAddressTopic(d.receiver)
	if receiverTopic == "" {
		return nil, apperr.Newf(apperr.Internal, "receiver address %q is not a valid hex address", d.receiver)
	}
	params := map[string]interface{}{
		"address":   d.usdcContract,
		"fromBlock": fmt.Sprintf("0x%x", from),
		"toBlock":   fmt.Sprintf("0x%x", to),
		"topics": []interface{}{
			transferTopic,
			nil,
			receiverTopic,
		},
	}
	raw, err := d.rpcCall(ctx, endpoint, "eth_getLogs", []interface{}{params})
	if err != nil {
		return nil, err
	}
	var logs []rpcLog
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "rpc logs decode failed", err)
	}
	return logs, nil
}

func (d *Data) rpcBlockTime(ctx context.Context, endpoint string, block uint64) (time.Time, error) {
	raw, err := d.rpcCall(ctx, endpoint, "eth_getBlockByNumber", []interface{}{fmt.Sprintf("0x%x", block), false})
	if err != nil {
		return time.Time{}, err
	}
	var parsed struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return time.Time{}, apperr.Wrap(apperr.UpstreamUnavailable, "rpc block decode failed", err)
	}
	ts, ok := parseHexUint(parsed.Timestamp)
	if !ok {
		return time.Time{}, apperr.New(apperr.UpstreamUnavailable, "bad block timestamp")
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

func (d *Data) rpcCall(ctx context.Context, endpoint, method string, params []interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	header := map[string][]string{"Content-Type": {"application/json"}}
	res, err := d.client.Fetch(ctx, "POST", endpoint, header, body, netx.Limits{Timeout: netx.RPCTimeout, MaxBody: 4 << 20})
	if err != nil {
		return nil, err
	}
	var parsed rpcResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "rpc decode failed", err)
	}
	if parsed.Error != nil {
		return nil, apperr.Newf(apperr.UpstreamUnavailable, "rpc error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return parsed.Result, nil
}

// topicAddress extracts the 0x-prefixed 20-byte address from a 32-byte topic.
func topicAddress(topic string) string {
	t := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(t) < 40 {
		return ""
	}
	return "0x" + t[len(t)-40:]
}

func paddedAddressTopic(addr string) string {
	a := strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(a) > 64 {
		return ""
	}
	return "0x" + strings.Repeat("0", 64-len(a)) + a
}

func parseHexUint(s string) (uint64, bool) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, false
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok || !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

func parseUint256(data string) (*big.Int, bool) {
	s := strings.TrimPrefix(strings.ToLower(data), "0x")
	if s == "" {
		return nil, false
	}
	return new(big.Int).SetString(s, 16)
}

// usdcUnits converts raw 6-decimal token units to whole USDC.
func usdcUnits(raw *big.Int) float64 {
	f := new(big.Float).SetInt(raw)
	f.Quo(f, big.NewFloat(1e6))
	out, _ := f.Float64()
	return out
}
