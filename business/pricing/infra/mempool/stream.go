// Package mempool watches pending router transactions over websocket.
package mempool

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arb-engine/business/pricing/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/wsconn"
)

const meterName = "pricing.mempool"

// swapABI declares the six V2 router swap entry points so pending calldata
// can be decoded into token paths.
const swapABI = `[
	{"name": "swapExactTokensForTokens", "type": "function", "inputs": [
		{"name": "amountIn", "type": "uint256"},
		{"name": "amountOutMin", "type": "uint256"},
		{"name": "path", "type": "address[]"},
		{"name": "to", "type": "address"},
		{"name": "deadline", "type": "uint256"}]},
	{"name": "swapTokensForExactTokens", "type": "function", "inputs": [
		{"name": "amountOut", "type": "uint256"},
		{"name": "amountInMax", "type": "uint256"},
		{"name": "path", "type": "address[]"},
		{"name": "to", "type": "address"},
		{"name": "deadline", "type": "uint256"}]},
	{"name": "swapExactETHForTokens", "type": "function", "inputs": [
		{"name": "amountOutMin", "type": "uint256"},
		{"name": "path", "type": "address[]"},
		{"name": "to", "type": "address"},
		{"name": "deadline", "type": "uint256"}]},
	{"name": "swapTokensForExactETH", "type": "function", "inputs": [
		{"name": "amountOut", "type": "uint256"},
		{"name": "amountInMax", "type": "uint256"},
		{"name": "path", "type": "address[]"},
		{"name": "to", "type": "address"},
		{"name": "deadline", "type": "uint256"}]},
	{"name": "swapExactTokensForETH", "type": "function", "inputs": [
		{"name": "amountIn", "type": "uint256"},
		{"name": "amountOutMin", "type": "uint256"},
		{"name": "path", "type": "address[]"},
		{"name": "to", "type": "address"},
		{"name": "deadline", "type": "uint256"}]},
	{"name": "swapETHForExactTokens", "type": "function", "inputs": [
		{"name": "amountOut", "type": "uint256"},
		{"name": "path", "type": "address[]"},
		{"name": "to", "type": "address"},
		{"name": "deadline", "type": "uint256"}]}
]`

// Config holds mempool stream settings.
type Config struct {
	WSURL  string
	Router common.Address
}

// Stream subscribes to pending transactions and emits parsed router swaps.
type Stream struct {
	conn    *wsconn.Client
	config  Config
	swapABI abi.ABI
	logger  logger.LoggerInterface

	mu     sync.Mutex
	out    chan domain.ParsedSwap
	closed bool

	parsedCounter  metric.Int64Counter
	droppedCounter metric.Int64Counter
}

// NewStream builds a stream; Subscribe performs the actual connection.
func NewStream(cfg Config, log logger.LoggerInterface) (*Stream, error) {
	parsed, err := abi.JSON(strings.NewReader(swapABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse swap ABI: %w", err)
	}

	meter := otel.Meter(meterName)
	parsedCounter, err := meter.Int64Counter("mempool_swaps_parsed_total",
		metric.WithDescription("Pending router swaps decoded, by method"))
	if err != nil {
		return nil, err
	}
	droppedCounter, err := meter.Int64Counter("mempool_swaps_dropped_total",
		metric.WithDescription("Parsed swaps dropped because the consumer lagged"))
	if err != nil {
		return nil, err
	}

	wsCfg := wsconn.DefaultConfig(cfg.WSURL, "mempool")
	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	return &Stream{
		conn:           conn,
		config:         cfg,
		swapABI:        parsed,
		logger:         log,
		out:            make(chan domain.ParsedSwap, 256),
		parsedCounter:  parsedCounter,
		droppedCounter: droppedCounter,
	}, nil
}

type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type notification struct {
	Method string `json:"method"`
	Params struct {
		Result json.RawMessage `json:"result"`
	} `json:"params"`
}

type pendingTx struct {
	Hash  common.Hash     `json:"hash"`
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Value *hexutil.Big    `json:"value"`
}

// Subscribe connects, requests full pending transactions, and returns the
// channel of parsed swaps. Reconnects resubscribe automatically.
func (s *Stream) Subscribe(ctx context.Context) (<-chan domain.ParsedSwap, error) {
	s.conn.OnMessage(func(msgCtx context.Context, msg []byte) {
		s.handleMessage(msgCtx, msg)
	})
	s.conn.OnStateChange(func(state wsconn.State, err error) {
		if state == wsconn.StateConnected {
			if subErr := s.subscribe(ctx); subErr != nil {
				s.logger.Error(ctx, "mempool resubscribe failed", "error", subErr)
			}
		}
	})

	// The state hook covers the first connect as well as reconnects, so
	// each session carries exactly one subscription.
	if err := s.conn.ConnectWithRetry(ctx); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeWebSocketConnectionError, s.config.WSURL)
	}
	return s.out, nil
}

func (s *Stream) subscribe(ctx context.Context) error {
	req := subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newPendingTransactions", true},
	}
	return s.conn.SendJSON(ctx, req)
}

func (s *Stream) handleMessage(ctx context.Context, data []byte) {
	var note notification
	if err := json.Unmarshal(data, &note); err != nil || note.Method != "eth_subscription" {
		return
	}

	var tx pendingTx
	if err := json.Unmarshal(note.Params.Result, &tx); err != nil {
		return
	}
	if tx.To == nil || *tx.To != s.config.Router || len(tx.Input) < 4 {
		return
	}

	swap, ok := s.parseSwap(tx)
	if !ok {
		return
	}
	s.parsedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("method", swap.Selector)))

	select {
	case s.out <- swap:
	default:
		s.droppedCounter.Add(ctx, 1)
	}
}

// parseSwap decodes calldata for the known swap selectors. The input token
// for exact-output variants is still path[0]; the amount is the stated
// maximum, or the tx value for ETH-in variants.
func (s *Stream) parseSwap(tx pendingTx) (domain.ParsedSwap, bool) {
	method, err := s.swapABI.MethodById(tx.Input[:4])
	if err != nil {
		return domain.ParsedSwap{}, false
	}

	values, err := method.Inputs.Unpack(tx.Input[4:])
	if err != nil {
		return domain.ParsedSwap{}, false
	}

	args := make(map[string]interface{}, len(values))
	for i, input := range method.Inputs {
		args[input.Name] = values[i]
	}

	path, ok := args["path"].([]common.Address)
	if !ok || len(path) < 2 {
		return domain.ParsedSwap{}, false
	}

	var amountIn *big.Int
	switch method.Name {
	case "swapExactTokensForTokens", "swapExactTokensForETH":
		amountIn, _ = args["amountIn"].(*big.Int)
	case "swapTokensForExactTokens", "swapTokensForExactETH":
		amountIn, _ = args["amountInMax"].(*big.Int)
	case "swapExactETHForTokens", "swapETHForExactTokens":
		if tx.Value != nil {
			amountIn = tx.Value.ToInt()
		}
	}
	if amountIn == nil {
		amountIn = big.NewInt(0)
	}

	return domain.ParsedSwap{
		TxHash:   tx.Hash.Hex(),
		TokenIn:  path[0].Hex(),
		TokenOut: path[len(path)-1].Hex(),
		AmountIn: amountIn,
		Selector: method.Name,
	}, true
}

// Close stops the websocket and the output channel.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.conn.Close()
	close(s.out)
	return nil
}
