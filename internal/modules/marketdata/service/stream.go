package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pricestore "lever_bot/internal/modules/pricestore/service"
	"lever_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
)

type StreamConfig struct {
	Exchange string
	WSURL    string // wss://fstream.binance.com/stream
	RestURL  string // https://fapi.binance.com
	Symbols  []string
}

// Stream — один websocket на все символы: depth-дифы в стаканы, сделки и
// mark price — в прайс-стор. Reconnect с экспоненциальным бэкоффом; после
// каждого коннекта книги пересеваются REST-снапшотом.
type Stream struct {
	cfg    StreamConfig
	books  *Books
	prices *pricestore.Store
	http   *http.Client
}

func NewStream(cfg StreamConfig, books *Books, prices *pricestore.Store) *Stream {
	return &Stream{
		cfg:    cfg,
		books:  books,
		prices: prices,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

type frame struct {
	Stream string `json:"stream"`
	Data   struct {
		Event  string     `json:"e"`
		Symbol string     `json:"s"`
		// depthUpdate
		FirstUpdateID int64      `json:"U"`
		FinalUpdateID int64      `json:"u"`
		Bids          [][]string `json:"b"`
		Asks          [][]string `json:"a"`
		// aggTrade / markPriceUpdate
		Price string `json:"p"`
	} `json:"data"`
}

type depthSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
	} `json:"symbols"`
}

// Run блокируется до отмены ctx.
func (s *Stream) Run(ctx context.Context) {
	s.loadPrecisions(ctx)

	bo := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Jitter: true,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL(), nil)
		if err != nil {
			d := bo.Duration()
			logger.Error("marketdata: dial: %v (retry in %s)", err, d)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}
		bo.Reset()
		logger.Info("marketdata: connected, %d symbols", len(s.cfg.Symbols))

		// снапшоты после коннекта; дифы до них буферизуются книгой
		for _, sym := range s.cfg.Symbols {
			go s.seedSnapshot(ctx, strings.ToUpper(sym))
		}

		s.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

func (s *Stream) streamURL() string {
	streams := make([]string, 0, len(s.cfg.Symbols)*3)
	for _, sym := range s.cfg.Symbols {
		low := strings.ToLower(sym)
		streams = append(streams,
			low+"@depth@100ms",
			low+"@aggTrade",
			low+"@markPrice",
		)
	}
	return s.cfg.WSURL + "?streams=" + strings.Join(streams, "/")
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Error("marketdata: read: %v", err)
			return
		}

		var f frame
		if err := sonic.Unmarshal(msg, &f); err != nil {
			continue
		}

		switch f.Data.Event {
		case "depthUpdate":
			book := s.books.GetOrCreate(f.Data.Symbol)
			book.ApplyDiff(DiffEvent{
				FirstUpdateID: f.Data.FirstUpdateID,
				FinalUpdateID: f.Data.FinalUpdateID,
				Asks:          parseLevels(f.Data.Asks),
				Bids:          parseLevels(f.Data.Bids),
			})
		case "aggTrade":
			if p, err := decimal.NewFromString(f.Data.Price); err == nil {
				px, _ := p.Float64()
				s.prices.SetLastPrice(s.cfg.Exchange, f.Data.Symbol, px)
			}
		case "markPriceUpdate":
			if p, err := decimal.NewFromString(f.Data.Price); err == nil {
				px, _ := p.Float64()
				s.prices.SetMarkPrice(s.cfg.Exchange, f.Data.Symbol, px)
			}
		}
	}
}

func (s *Stream) seedSnapshot(ctx context.Context, symbol string) {
	snap, err := s.fetchSnapshot(ctx, symbol)
	if err != nil {
		logger.Error("marketdata: snapshot %s: %v", symbol, err)
		return
	}

	book := s.books.GetOrCreate(symbol)
	book.ApplySnapshot(parseLevels(snap.Asks), parseLevels(snap.Bids), snap.LastUpdateID)
	logger.Debug("marketdata: snapshot %s lastUpdateId=%d", symbol, snap.LastUpdateID)
}

func (s *Stream) fetchSnapshot(ctx context.Context, symbol string) (*depthSnapshot, error) {
	url := fmt.Sprintf("%s/fapi/v1/depth?symbol=%s&limit=1000", s.cfg.RestURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}

	snap := &depthSnapshot{}
	if err := sonic.Unmarshal(rb, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Stream) loadPrecisions(ctx context.Context) {
	url := s.cfg.RestURL + "/fapi/v1/exchangeInfo"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := s.http.Do(req)
	if err != nil {
		logger.Error("marketdata: exchangeInfo: %v", err)
		return
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	var info exchangeInfo
	if err := sonic.Unmarshal(rb, &info); err != nil {
		logger.Error("marketdata: exchangeInfo decode: %v", err)
		return
	}
	for _, sym := range info.Symbols {
		s.prices.SetPrecision(s.cfg.Exchange, sym.Symbol, sym.PricePrecision, sym.QuantityPrecision)
	}
}

func parseLevels(raw [][]string) []Level {
	out := make([]Level, 0, len(raw))
	for _, row := range raw {
		if len(row) < 2 {
			continue
		}
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			continue
		}
		out = append(out, Level{Price: price, Quantity: qty})
	}
	return out
}
