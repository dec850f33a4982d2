package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/futures"

	"sharkbot/internal/market"
	symbolpkg "sharkbot/internal/pkg/symbol"
	"sharkbot/internal/scheduler"
)

const maxHistoryLimit = 1500

// Source 基于 go-binance SDK 拉取 K 线，只做 REST 轮询，不做下单。
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}
}

// FetchHistory pulls up to limit closed candles for symbol/interval. The
// trailing in-progress candle is dropped so indicator math only ever sees
// closed bars.
func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance requires symbols without slashes (e.g., ETHUSDT)
	cleanSymbol := symbolpkg.ToBinance(symbol)

	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	svc := s.client.NewKlinesService().Symbol(cleanSymbol).Interval(interval).Limit(limit)
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := scheduler.ParseIntervalDuration(interval); ok {
		out = scheduler.DropUnclosedBinanceKline(out, dur)
	}
	return out, nil
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
