package aggregate

import (
	"sort"

	"github.com/crossfin/crossfin/internal/market"
	"github.com/crossfin/crossfin/internal/num"
)

const unusualVolumeLimit = 50

// VolumeRow is one coin in the Bithumb volume ranking.
type VolumeRow struct {
	Coin         string  `json:"coin"`
	Volume24hKRW float64 `json:"volume24hKrw"`
	Volume24hUSD float64 `json:"volume24hUsd"`
	SharePct     float64 `json:"sharePct"`
	Change24hPct float64 `json:"change24hPct"`
}

// VolumeAnalysis summarizes 24h turnover across the Bithumb KRW market.
type VolumeAnalysis struct {
	TotalVolume24hKRW float64     `json:"totalVolume24hKrw"`
	TotalVolume24hUSD float64     `json:"totalVolume24hUsd"`
	Top5SharePct      float64     `json:"top5SharePct"`
	WeightedChangePct float64     `json:"weightedChangePct"`
	Top               []VolumeRow `json:"top"`
	Unusual           []VolumeRow `json:"unusual"`
}

// AnalyzeVolume ranks coins by 24h KRW volume, computes the top-5 share
// and volume-weighted change, and flags coins trading at more than twice
// the mean volume.
func AnalyzeVolume(bithumb map[string]market.BithumbTicker, fxRate float64, topN int) VolumeAnalysis {
	if topN <= 0 {
		topN = 10
	}

	rows := make([]VolumeRow, 0, len(bithumb))
	total := 0.0
	weighted := 0.0
	for coin, t := range bithumb {
		if t.Volume24hKRW <= 0 {
			continue
		}
		total += t.Volume24hKRW
		weighted += t.Volume24hKRW * t.Change24hPct
		rows = append(rows, VolumeRow{
			Coin:         coin,
			Volume24hKRW: t.Volume24hKRW,
			Change24hPct: num.Round2(t.Change24hPct),
		})
	}

	out := VolumeAnalysis{}
	if total <= 0 || len(rows) == 0 {
		return out
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Volume24hKRW > rows[j].Volume24hKRW
	})

	for i := range rows {
		rows[i].SharePct = num.Round2(rows[i].Volume24hKRW / total * 100)
		if fxRate > 0 {
			rows[i].Volume24hUSD = num.Round2(rows[i].Volume24hKRW / fxRate)
		}
	}

	out.TotalVolume24hKRW = total
	if fxRate > 0 {
		out.TotalVolume24hUSD = num.Round2(total / fxRate)
	}
	out.WeightedChangePct = num.Round2(weighted / total)

	top5 := 0.0
	for i := 0; i < len(rows) && i < 5; i++ {
		top5 += rows[i].Volume24hKRW
	}
	out.Top5SharePct = num.Round2(top5 / total * 100)

	if len(rows) > topN {
		out.Top = rows[:topN]
	} else {
		out.Top = rows
	}

	mean := total / float64(len(rows))
	for _, r := range rows {
		if r.Volume24hKRW > 2*mean {
			out.Unusual = append(out.Unusual, r)
			if len(out.Unusual) >= unusualVolumeLimit {
				break
			}
		}
	}
	return out
}
