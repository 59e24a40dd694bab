// Package binance implements the exchange port against the Binance REST API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	exchangeDomain "github.com/fd1az/arb-engine/business/exchange/domain"
	orderbookDomain "github.com/fd1az/arb-engine/business/orderbook/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/cache"
	"github.com/fd1az/arb-engine/internal/httpclient"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/ratelimit"
)

const (
	tracerName = "exchange.binance"

	BaseAPIURL = "https://api.binance.com"

	depthEndpoint   = "/api/v3/depth"
	orderEndpoint   = "/api/v3/order"
	accountEndpoint = "/api/v3/account"
	feeEndpoint     = "/sapi/v1/asset/tradeFee"
	pingEndpoint    = "/api/v3/ping"

	httpTimeout = 10 * time.Second
	feeCacheTTL = 10 * time.Minute
)

// ClientConfig holds Binance REST configuration.
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	RecvWindow   time.Duration
	WeightPerSec int
}

// Client is the Binance implementation of the exchange port.
type Client struct {
	http     httpclient.Client
	config   ClientConfig
	limiter  *ratelimit.Limiter
	feeCache *cache.Cache[string, *exchangeDomain.TradingFees]
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

// NewClient creates a Binance REST client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseAPIURL
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5 * time.Second
	}
	if cfg.WeightPerSec <= 0 {
		cfg.WeightPerSec = 20
	}

	tracer := otel.Tracer(tracerName)

	httpClient, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(httpTimeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept":       "application/json",
			"X-MBX-APIKEY": cfg.APIKey,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		http:     httpClient,
		config:   cfg,
		limiter:  ratelimit.NewWithBurst(float64(cfg.WeightPerSec), cfg.WeightPerSec),
		feeCache: cache.New[string, *exchangeDomain.TradingFees](feeCacheTTL),
		logger:   log,
		tracer:   tracer,
	}, nil
}

// sign appends timestamp/recvWindow and an HMAC-SHA256 signature over the
// query string, as Binance requires for account and order endpoints.
func (c *Client) sign(params url.Values) url.Values {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.config.RecvWindow.Milliseconds(), 10))

	mac := hmac.New(sha256.New, []byte(c.config.APISecret))
	mac.Write([]byte(params.Encode()))
	params.Set("signature", hex.EncodeToString(mac.Sum(nil)))
	return params
}

func (c *Client) wait(ctx context.Context, weight int) error {
	if err := c.limiter.WaitN(ctx, weight); err != nil {
		return apperror.New(apperror.CodeExchangeRateLimited, apperror.WithCause(err))
	}
	return nil
}

// Init pings the REST API to verify connectivity.
func (c *Client) Init(ctx context.Context) error {
	if err := c.wait(ctx, 1); err != nil {
		return err
	}
	resp, err := c.http.NewRequest().Get(ctx, pingEndpoint)
	if err != nil {
		return apperror.External(apperror.CodeExchangeConnectionFailed, "ping", err)
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeExchangeConnectionFailed,
			apperror.WithContext(fmt.Sprintf("ping returned %d", resp.StatusCode)))
	}
	return nil
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// FetchOrderBook returns a validated depth snapshot.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (*orderbookDomain.OrderBook, error) {
	ctx, span := c.tracer.Start(ctx, "binance.fetch_order_book",
		trace.WithAttributes(attribute.String("symbol", symbol), attribute.Int("depth", depth)))
	defer span.End()

	if err := c.wait(ctx, depthWeight(depth)); err != nil {
		return nil, err
	}

	resp, err := c.http.NewRequest().
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", strconv.Itoa(depth)).
		Get(ctx, depthEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodeOrderbookFetchFailed, symbol, err)
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeOrderbookFetchFailed,
			apperror.WithContext(fmt.Sprintf("%s: status %d: %s", symbol, resp.StatusCode, resp.String())))
	}

	var dr depthResponse
	if err := json.Unmarshal(resp.Body(), &dr); err != nil {
		return nil, apperror.Internal(apperror.CodeInvalidOrderbook, symbol, err)
	}

	bids, err := parseLevels(dr.Bids)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInvalidOrderbook, symbol, err)
	}
	asks, err := parseLevels(dr.Asks)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInvalidOrderbook, symbol, err)
	}

	return orderbookDomain.NewOrderBook(symbol, time.Now().UTC(), bids, asks)
}

func parseLevels(raw [][]string) ([]orderbookDomain.Level, error) {
	levels := make([]orderbookDomain.Level, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("malformed depth level %v", entry)
		}
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", entry[0], err)
		}
		size, err := decimal.NewFromString(entry[1])
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", entry[1], err)
		}
		if size.IsZero() {
			continue
		}
		levels = append(levels, orderbookDomain.Level{Price: price, Size: size})
	}
	return levels, nil
}

// depthWeight mirrors Binance's request weight schedule for /depth.
func depthWeight(limit int) int {
	switch {
	case limit <= 100:
		return 1
	case limit <= 500:
		return 5
	case limit <= 1000:
		return 10
	default:
		return 50
	}
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// FetchBalance returns every non-zero balance at the venue.
func (c *Client) FetchBalance(ctx context.Context) (map[string]exchangeDomain.AssetBalance, error) {
	ctx, span := c.tracer.Start(ctx, "binance.fetch_balance")
	defer span.End()

	if err := c.wait(ctx, 10); err != nil {
		return nil, err
	}

	params := c.sign(url.Values{})
	resp, err := c.http.NewRequest().
		SetQueryParams(flatten(params)).
		Get(ctx, accountEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodeExchangeAPIError, "account", err)
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(fmt.Sprintf("account: status %d: %s", resp.StatusCode, resp.String())))
	}

	var ar accountResponse
	if err := json.Unmarshal(resp.Body(), &ar); err != nil {
		return nil, apperror.Internal(apperror.CodeExchangeAPIError, "account decode", err)
	}

	balances := make(map[string]exchangeDomain.AssetBalance, len(ar.Balances))
	for _, b := range ar.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			continue
		}
		if free.IsZero() && locked.IsZero() {
			continue
		}
		balances[b.Asset] = exchangeDomain.AssetBalance{Free: free, Locked: locked}
	}
	return balances, nil
}

type orderResponse struct {
	OrderID             int64  `json:"orderId"`
	Symbol              string `json:"symbol"`
	Status              string `json:"status"`
	Side                string `json:"side"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	TransactTime        int64  `json:"transactTime"`
}

// CreateLimitIOCOrder places an immediate-or-cancel limit order.
func (c *Client) CreateLimitIOCOrder(ctx context.Context, symbol string, side exchangeDomain.OrderSide, amount, price decimal.Decimal) (*exchangeDomain.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "IOC")
	params.Set("quantity", amount.String())
	params.Set("price", price.String())
	return c.placeOrder(ctx, "binance.create_limit_ioc", params)
}

// CreateMarketOrder places a market order.
func (c *Client) CreateMarketOrder(ctx context.Context, symbol string, side exchangeDomain.OrderSide, amount decimal.Decimal) (*exchangeDomain.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "MARKET")
	params.Set("quantity", amount.String())
	return c.placeOrder(ctx, "binance.create_market", params)
}

func (c *Client) placeOrder(ctx context.Context, spanName string, params url.Values) (*exchangeDomain.Order, error) {
	ctx, span := c.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("symbol", params.Get("symbol")),
			attribute.String("side", params.Get("side")),
		))
	defer span.End()

	if err := c.wait(ctx, 1); err != nil {
		return nil, err
	}

	resp, err := c.http.NewRequest().
		SetQueryParams(flatten(c.sign(params))).
		Post(ctx, orderEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodeExchangeAPIError, "create order", err)
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeOrderRejected,
			apperror.WithContext(fmt.Sprintf("status %d: %s", resp.StatusCode, resp.String())))
	}

	var or orderResponse
	if err := json.Unmarshal(resp.Body(), &or); err != nil {
		return nil, apperror.Internal(apperror.CodeExchangeAPIError, "order decode", err)
	}
	return normalizeOrder(&or), nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) error {
	ctx, span := c.tracer.Start(ctx, "binance.cancel_order",
		trace.WithAttributes(attribute.String("order_id", id)))
	defer span.End()

	if err := c.wait(ctx, 1); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)

	resp, err := c.http.NewRequest().
		SetQueryParams(flatten(c.sign(params))).
		Delete(ctx, orderEndpoint)
	if err != nil {
		return apperror.External(apperror.CodeExchangeAPIError, "cancel order", err)
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(fmt.Sprintf("cancel: status %d: %s", resp.StatusCode, resp.String())))
	}
	return nil
}

// FetchOrderStatus queries an order's current state.
func (c *Client) FetchOrderStatus(ctx context.Context, id, symbol string) (*exchangeDomain.Order, error) {
	ctx, span := c.tracer.Start(ctx, "binance.fetch_order_status",
		trace.WithAttributes(attribute.String("order_id", id)))
	defer span.End()

	if err := c.wait(ctx, 2); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)

	resp, err := c.http.NewRequest().
		SetQueryParams(flatten(c.sign(params))).
		Get(ctx, orderEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodeExchangeAPIError, "order status", err)
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(fmt.Sprintf("order status: %d: %s", resp.StatusCode, resp.String())))
	}

	var or orderResponse
	if err := json.Unmarshal(resp.Body(), &or); err != nil {
		return nil, apperror.Internal(apperror.CodeExchangeAPIError, "order decode", err)
	}
	return normalizeOrder(&or), nil
}

type feeResponse []struct {
	Symbol          string `json:"symbol"`
	MakerCommission string `json:"makerCommission"`
	TakerCommission string `json:"takerCommission"`
}

// GetTradingFees returns maker/taker rates, cached for a few minutes.
func (c *Client) GetTradingFees(ctx context.Context, symbol string) (*exchangeDomain.TradingFees, error) {
	if fees, ok := c.feeCache.Get(symbol); ok {
		return fees, nil
	}

	ctx, span := c.tracer.Start(ctx, "binance.get_trading_fees",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	if err := c.wait(ctx, 1); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	resp, err := c.http.NewRequest().
		SetQueryParams(flatten(c.sign(params))).
		Get(ctx, feeEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodeExchangeAPIError, "trading fees", err)
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(fmt.Sprintf("fees: status %d: %s", resp.StatusCode, resp.String())))
	}

	var fr feeResponse
	if err := json.Unmarshal(resp.Body(), &fr); err != nil {
		return nil, apperror.Internal(apperror.CodeExchangeAPIError, "fee decode", err)
	}
	if len(fr) == 0 {
		return nil, apperror.New(apperror.CodeNotFound,
			apperror.WithContext(fmt.Sprintf("no fee entry for %s", symbol)))
	}

	maker, err := decimal.NewFromString(fr[0].MakerCommission)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInvalidFormat, "maker fee", err)
	}
	taker, err := decimal.NewFromString(fr[0].TakerCommission)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInvalidFormat, "taker fee", err)
	}

	fees := &exchangeDomain.TradingFees{Maker: maker, Taker: taker}
	c.feeCache.Set(symbol, fees)
	return fees, nil
}

func normalizeOrder(or *orderResponse) *exchangeDomain.Order {
	price, _ := decimal.NewFromString(or.Price)
	orig, _ := decimal.NewFromString(or.OrigQty)
	executed, _ := decimal.NewFromString(or.ExecutedQty)
	quote, _ := decimal.NewFromString(or.CummulativeQuoteQty)

	avg := decimal.Zero
	if executed.IsPositive() {
		avg = quote.Div(executed)
	}

	side := exchangeDomain.SideBuy
	if or.Side == "SELL" {
		side = exchangeDomain.SideSell
	}

	return &exchangeDomain.Order{
		ID:           strconv.FormatInt(or.OrderID, 10),
		Symbol:       or.Symbol,
		Side:         side,
		Status:       normalizeStatus(or.Status),
		Price:        price,
		Amount:       orig,
		FilledAmount: executed,
		AvgFillPrice: avg,
		CreatedAt:    time.UnixMilli(or.TransactTime),
	}
}

func normalizeStatus(s string) exchangeDomain.OrderStatus {
	switch s {
	case "FILLED":
		return exchangeDomain.StatusFilled
	case "PARTIALLY_FILLED":
		return exchangeDomain.StatusPartiallyFilled
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return exchangeDomain.StatusExpired
	case "CANCELED":
		return exchangeDomain.StatusCanceled
	case "REJECTED":
		return exchangeDomain.StatusRejected
	default:
		return exchangeDomain.StatusNew
	}
}

func binanceSide(side exchangeDomain.OrderSide) string {
	if side == exchangeDomain.SideBuy {
		return "BUY"
	}
	return "SELL"
}

func flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k := range params {
		out[k] = params.Get(k)
	}
	return out
}
