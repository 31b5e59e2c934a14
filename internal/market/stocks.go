package market

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/crossfin/crossfin/internal/apperr"
	"github.com/crossfin/crossfin/internal/netx"
)

// IndexQuote is one Korean equity index snapshot.
type IndexQuote struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	ChangePct float64 `json:"changePct"`
	PrevClose float64 `json:"prevClose"`
}

// StockQuote is a single listed Korean equity.
type StockQuote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"changePct"`
	Currency  string  `json:"currency"`
}

// Headline is one news item for the briefs.
type Headline struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				Currency           string  `json:"currency"`
				LongName           string  `json:"longName"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

func (d *Data) yahooQuote(ctx context.Context, symbol string) (*yahooChartResponse, error) {
	url := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&range=1d", symbol)
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 512 * 1024})
	if err != nil {
		return nil, err
	}
	var parsed yahooChartResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "quote decode failed", err)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, apperr.Newf(apperr.NotFound, "no quote for %s", symbol)
	}
	return &parsed, nil
}

// KoreanIndices fetches KOSPI and KOSDAQ levels.
func (d *Data) KoreanIndices(ctx context.Context) ([]IndexQuote, error) {
	symbols := map[string]string{"^KS11": "KOSPI", "^KQ11": "KOSDAQ"}
	var out []IndexQuote
	for sym, name := range symbols {
		q, err := d.yahooQuote(ctx, sym)
		if err != nil {
			continue
		}
		meta := q.Chart.Result[0].Meta
		if meta.RegularMarketPrice <= 0 {
			continue
		}
		change := 0.0
		if meta.PreviousClose > 0 {
			change = (meta.RegularMarketPrice - meta.PreviousClose) / meta.PreviousClose * 100
		}
		out = append(out, IndexQuote{
			Name:      name,
			Value:     meta.RegularMarketPrice,
			ChangePct: change,
			PrevClose: meta.PreviousClose,
		})
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.UpstreamUnavailable, "no index data")
	}
	return out, nil
}

// StockDetail fetches one KRX-listed stock by its 6-digit code.
func (d *Data) StockDetail(ctx context.Context, code string) (*StockQuote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.New(apperr.BadInput, "stock code required")
	}
	q, err := d.yahooQuote(ctx, code+".KS")
	if err != nil {
		// KOSDAQ listings live under the .KQ suffix.
		q, err = d.yahooQuote(ctx, code+".KQ")
		if err != nil {
			return nil, err
		}
	}
	meta := q.Chart.Result[0].Meta
	change := 0.0
	if meta.PreviousClose > 0 {
		change = (meta.RegularMarketPrice - meta.PreviousClose) / meta.PreviousClose * 100
	}
	return &StockQuote{
		Symbol:    meta.Symbol,
		Name:      meta.LongName,
		Price:     meta.RegularMarketPrice,
		ChangePct: change,
		Currency:  meta.Currency,
	}, nil
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
			Link  string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

// NewsHeadlines fetches recent Korean market headlines.
func (d *Data) NewsHeadlines(ctx context.Context, limit int) ([]Headline, error) {
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	url := "https://news.google.com/rss/search?q=%EC%BD%94%EC%8A%A4%ED%94%BC&hl=ko&gl=KR&ceid=KR:ko"
	res, err := d.client.Fetch(ctx, "GET", url, nil, nil, netx.Limits{Timeout: netx.DefaultTimeout, MaxBody: 1 << 20})
	if err != nil {
		return nil, err
	}
	var feed rssFeed
	if err := xml.Unmarshal(res.Body, &feed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "news decode failed", err)
	}
	out := make([]Headline, 0, limit)
	for _, item := range feed.Channel.Items {
		if len(out) >= limit {
			break
		}
		out = append(out, Headline{Title: item.Title, Link: item.Link})
	}
	return out, nil
}
