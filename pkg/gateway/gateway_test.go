package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxbook/matchcore/pkg/matchcore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestServer_BroadcastsTradeToConnectedClient(t *testing.T) {
	srv := New("DEMO")
	httpSrv := httptest.NewServer(http.HandlerFunc(srv.ServeHTTP))
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give the server goroutine a moment to register the client before
	// the hook fires, since ServeHTTP registers asynchronously relative
	// to the dial completing.
	time.Sleep(20 * time.Millisecond)

	ex := matchcore.NewExchange("DEMO", matchcore.WithTradeHook(srv.TradeHook()))
	seller := ex.RegisterTrader()
	buyer := ex.RegisterTrader()

	sell, err := seller.CreateLimit(d("100"), d("5"), matchcore.Sell)
	require.NoError(t, err)
	_, err = ex.Submit(sell)
	require.NoError(t, err)

	buy, err := buyer.CreateLimit(d("100"), d("5"), matchcore.Buy)
	require.NoError(t, err)
	_, err = ex.Submit(buy)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"type":"trade"`)
	assert.Contains(t, string(msg), `"symbol":"DEMO"`)
}
