// Package simulator executes routes against an anvil-style forked chain.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ammDomain "github.com/fd1az/arb-engine/business/amm/domain"
	"github.com/fd1az/arb-engine/business/pricing/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/logger"
)

const tracerName = "pricing.simulator"

// ten ETH, enough gas money for any simulated route
var senderGasBudget = new(big.Int).Mul(big.NewInt(10), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// Config holds fork-simulator connection settings.
type Config struct {
	RPCURL        string
	Router        common.Address
	FunderJSONEnv string // env var holding {"tokenAddress": "funderAddress"} JSON
}

// Client drives swaps on a forked node using impersonated accounts.
type Client struct {
	rpc       *rpc.Client
	routerABI abi.ABI
	tokenABI  abi.ABI
	config    Config
	funders   map[common.Address]common.Address
	logger    logger.LoggerInterface
	tracer    trace.Tracer
}

// NewClient dials the fork RPC and loads the funder map from the configured
// environment variable (optional).
func NewClient(ctx context.Context, cfg Config, log logger.LoggerInterface) (*Client, error) {
	routerABI, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, apperror.External(apperror.CodeEthereumConnectionFailed, cfg.RPCURL, err)
	}

	funders, err := loadFunders(cfg.FunderJSONEnv)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpc:       rpcClient,
		routerABI: routerABI,
		tokenABI:  tokenABI,
		config:    cfg,
		funders:   funders,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

func loadFunders(envVar string) (map[common.Address]common.Address, error) {
	funders := make(map[common.Address]common.Address)
	if envVar == "" {
		return funders, nil
	}
	raw := os.Getenv(envVar)
	if raw == "" {
		return funders, nil
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("invalid funder JSON in $%s", envVar)), apperror.WithCause(err))
	}
	for token, funder := range m {
		if !common.IsHexAddress(token) || !common.IsHexAddress(funder) {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext(fmt.Sprintf("invalid address in funder JSON: %s -> %s", token, funder)))
		}
		funders[common.HexToAddress(token)] = common.HexToAddress(funder)
	}
	return funders, nil
}

// txArgs is the JSON-RPC transaction object for impersonated sends/calls.
type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

// SimulateRoute swaps amountIn through the route from sender and reports the
// realized output and gas. Reverts surface as a failed result, not an error.
func (c *Client) SimulateRoute(ctx context.Context, route *ammDomain.Route, amountIn *big.Int, sender common.Address) (*domain.SimulationResult, error) {
	ctx, span := c.tracer.Start(ctx, "simulator.simulate_route",
		trace.WithAttributes(
			attribute.String("route", route.String()),
			attribute.String("amount_in", amountIn.String()),
		))
	defer span.End()

	path := make([]common.Address, 0, len(route.Path()))
	for _, a := range route.Path() {
		path = append(path, a.Address())
	}

	deadline := big.NewInt(time.Now().Add(5 * time.Minute).Unix())
	data, err := c.routerABI.Pack("swapExactTokensForTokens", amountIn, big.NewInt(0), path, sender, deadline)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "pack swap", err)
	}

	args := txArgs{From: sender, To: &c.config.Router, Data: data}

	var gas hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &gas, "eth_estimateGas", args); err != nil {
		// Estimation reverts when the swap would; report as failure.
		return &domain.SimulationResult{Success: false, Error: err.Error()}, nil
	}

	var out hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &out, "eth_call", args, "latest"); err != nil {
		return &domain.SimulationResult{Success: false, Error: err.Error()}, nil
	}

	values, err := c.routerABI.Unpack("swapExactTokensForTokens", out)
	if err != nil || len(values) != 1 {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "decode swap result", err)
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("swap returned no amounts"))
	}

	return &domain.SimulationResult{
		Success:   true,
		AmountOut: amounts[len(amounts)-1],
		GasUsed:   uint64(gas),
	}, nil
}

// EnsureSenderReady gives the sender gas money, input-token balance, and
// router allowance on the fork.
func (c *Client) EnsureSenderReady(ctx context.Context, route *ammDomain.Route, amountIn *big.Int, sender common.Address) error {
	ctx, span := c.tracer.Start(ctx, "simulator.ensure_sender_ready",
		trace.WithAttributes(attribute.String("sender", sender.Hex())))
	defer span.End()

	tokenIn := route.TokenIn().Address()

	if err := c.rpc.CallContext(ctx, nil, "anvil_setBalance", sender, hexutil.EncodeBig(senderGasBudget)); err != nil {
		return apperror.External(apperror.CodeEthereumRPCError, "anvil_setBalance", err)
	}

	balance, err := c.tokenBalance(ctx, tokenIn, sender)
	if err != nil {
		return err
	}
	if balance.Cmp(amountIn) < 0 {
		if err := c.fundToken(ctx, tokenIn, sender, new(big.Int).Sub(amountIn, balance)); err != nil {
			return err
		}
	}

	allowance, err := c.tokenAllowance(ctx, tokenIn, sender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amountIn) < 0 {
		if err := c.approveRouter(ctx, tokenIn, sender); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) fundToken(ctx context.Context, token, to common.Address, amount *big.Int) error {
	funder, ok := c.funders[token]
	if !ok {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("no funder configured for token %s", token.Hex())))
	}

	if err := c.impersonate(ctx, funder); err != nil {
		return err
	}
	if err := c.rpc.CallContext(ctx, nil, "anvil_setBalance", funder, hexutil.EncodeBig(senderGasBudget)); err != nil {
		return apperror.External(apperror.CodeEthereumRPCError, "anvil_setBalance funder", err)
	}

	data, err := c.tokenABI.Pack("transfer", to, amount)
	if err != nil {
		return apperror.Internal(apperror.CodeContractCallFailed, "pack transfer", err)
	}
	return c.sendImpersonated(ctx, funder, token, data)
}

func (c *Client) approveRouter(ctx context.Context, token, sender common.Address) error {
	if err := c.impersonate(ctx, sender); err != nil {
		return err
	}

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	data, err := c.tokenABI.Pack("approve", c.config.Router, maxUint256)
	if err != nil {
		return apperror.Internal(apperror.CodeContractCallFailed, "pack approve", err)
	}
	return c.sendImpersonated(ctx, sender, token, data)
}

func (c *Client) impersonate(ctx context.Context, account common.Address) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_impersonateAccount", account); err != nil {
		return apperror.External(apperror.CodeEthereumRPCError, "anvil_impersonateAccount", err)
	}
	return nil
}

func (c *Client) sendImpersonated(ctx context.Context, from, to common.Address, data []byte) error {
	var txHash common.Hash
	err := c.rpc.CallContext(ctx, &txHash, "eth_sendTransaction", txArgs{From: from, To: &to, Data: data})
	if err != nil {
		return apperror.External(apperror.CodeEthereumRPCError, "eth_sendTransaction", err)
	}
	return nil
}

func (c *Client) tokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return c.tokenView(ctx, token, "balanceOf", account)
}

func (c *Client) tokenAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.tokenView(ctx, token, "allowance", owner, c.config.Router)
}

func (c *Client) tokenView(ctx context.Context, token common.Address, method string, params ...interface{}) (*big.Int, error) {
	data, err := c.tokenABI.Pack(method, params...)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "pack "+method, err)
	}

	var out hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &out, "eth_call", txArgs{To: &token, Data: data}, "latest"); err != nil {
		return nil, apperror.External(apperror.CodeEthereumRPCError, method, err)
	}

	values, err := c.tokenABI.Unpack(method, out)
	if err != nil || len(values) != 1 {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "decode "+method, err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(method+" returned a non-integer value"))
	}
	return value, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}
