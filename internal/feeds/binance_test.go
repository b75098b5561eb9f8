package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceFeed_FetchPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","price":"50000.10"},
			{"symbol":"ETHUSDT","price":"3000.5"},
			{"symbol":"BTCEUR","price":"46000"},
			{"symbol":"XRPUSDT","price":"0"}
		]`))
	}))
	defer srv.Close()

	f := NewBinanceFeed(NewClient(time.Second), srv.URL, nil)
	prices, err := f.FetchPrices(context.Background(), map[string]bool{
		"BTCUSDT": true, "ETHUSDT": true, "XRPUSDT": true,
	})
	require.NoError(t, err)

	// 非跟踪交易对与零价被过滤
	assert.Len(t, prices, 2)
	assert.Equal(t, 50000.10, prices["BTCUSDT"])
	assert.Equal(t, 3000.5, prices["ETHUSDT"])
}

func TestBinanceFeed_FetchPrices_NotArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-1003,"msg":"banned"}`))
	}))
	defer srv.Close()

	f := NewBinanceFeed(NewClient(time.Second), srv.URL, nil)
	_, err := f.FetchPrices(context.Background(), map[string]bool{"BTCUSDT": true})
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestBinanceFeed_FetchSymbolPrice_MirrorFallback(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer primary.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XRPUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"XRPUSDT","price":"0.52"}`))
	}))
	defer mirror.Close()

	f := NewBinanceFeed(NewClient(time.Second), primary.URL, []string{mirror.URL})
	price, err := f.FetchSymbolPrice(context.Background(), "xrpusdt")
	require.NoError(t, err)
	assert.Equal(t, 0.52, price)
}

func TestBinanceFeed_FetchSymbolPrice_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"XRPUSDT"}`))
	}))
	defer srv.Close()

	f := NewBinanceFeed(NewClient(time.Second), srv.URL, nil)
	_, err := f.FetchSymbolPrice(context.Background(), "XRPUSDT")
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestBinanceFeed_FetchOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"bids":[["49990","1.5"],["49980","2"]],
			"asks":[["50010","0.8"],["50020","3"]]
		}`))
	}))
	defer srv.Close()

	f := NewBinanceFeed(NewClient(time.Second), srv.URL, nil)

	asks, err := f.FetchOrderBook(context.Background(), "BTCUSDT", "buy")
	require.NoError(t, err)
	require.Len(t, asks, 2)
	assert.Equal(t, 50010.0, asks[0].Price)
	assert.Equal(t, 0.8, asks[0].Quantity)

	bids, err := f.FetchOrderBook(context.Background(), "BTCUSDT", "sell")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, 49990.0, bids[0].Price)
}

func TestBinanceFeed_FetchOrderBook_MissingSide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lastUpdateId":1}`))
	}))
	defer srv.Close()

	f := NewBinanceFeed(NewClient(time.Second), srv.URL, nil)
	_, err := f.FetchOrderBook(context.Background(), "BTCUSDT", "buy")
	assert.ErrorIs(t, err, ErrInvalidShape)
}
