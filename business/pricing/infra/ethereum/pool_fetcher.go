// Package ethereum fetches constant-product pool state over JSON-RPC.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	gethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ammDomain "github.com/fd1az/arb-engine/business/amm/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/circuitbreaker"
	"github.com/fd1az/arb-engine/internal/logger"
)

const tracerName = "pricing.pool_fetcher"

// PoolFetcher reads pair reserves and token metadata via eth_call.
type PoolFetcher struct {
	client   *ethclient.Client
	pairABI  abi.ABI
	erc20ABI abi.ABI
	chainID  uint64
	feeBps   uint64
	registry *asset.Registry
	logger   logger.LoggerInterface
	cb       *circuitbreaker.CircuitBreaker[[]byte]
	tracer   trace.Tracer
}

// NewPoolFetcher creates a fetcher. feeBps is applied to every fetched pool;
// V2-style pairs do not expose their fee on-chain.
func NewPoolFetcher(client *ethclient.Client, registry *asset.Registry, chainID, feeBps uint64, log logger.LoggerInterface) (*PoolFetcher, error) {
	pairABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	return &PoolFetcher{
		client:   client,
		pairABI:  pairABI,
		erc20ABI: erc20ABI,
		chainID:  chainID,
		feeBps:   feeBps,
		registry: registry,
		logger:   log,
		cb:       circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("pool-fetcher")),
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// FetchPool reads token0/token1/getReserves and resolves token metadata.
func (f *PoolFetcher) FetchPool(ctx context.Context, address common.Address) (*ammDomain.Pair, error) {
	ctx, span := f.tracer.Start(ctx, "pool_fetcher.fetch_pool",
		trace.WithAttributes(attribute.String("pool", address.Hex())))
	defer span.End()

	token0Addr, err := f.callAddress(ctx, address, "token0")
	if err != nil {
		return nil, err
	}
	token1Addr, err := f.callAddress(ctx, address, "token1")
	if err != nil {
		return nil, err
	}

	reserve0, reserve1, err := f.callReserves(ctx, address)
	if err != nil {
		return nil, err
	}

	token0, err := f.resolveToken(ctx, token0Addr)
	if err != nil {
		return nil, err
	}
	token1, err := f.resolveToken(ctx, token1Addr)
	if err != nil {
		return nil, err
	}

	return ammDomain.NewPair(address, token0, token1, reserve0, reserve1, f.feeBps)
}

// resolveToken prefers the registry and falls back to on-chain metadata,
// registering the result for later lookups.
func (f *PoolFetcher) resolveToken(ctx context.Context, addr common.Address) (*asset.Asset, error) {
	if a, ok := f.registry.GetToken(f.chainID, addr); ok {
		return a, nil
	}

	symbol, err := f.callSymbol(ctx, addr)
	if err != nil {
		return nil, err
	}
	decimals, err := f.callDecimals(ctx, addr)
	if err != nil {
		return nil, err
	}

	a := asset.MustNewToken(f.chainID, addr, symbol, symbol, decimals)
	f.registry.Register(a)
	f.logger.Debug(ctx, "registered token from chain", "symbol", symbol, "address", addr.Hex())
	return a, nil
}

func (f *PoolFetcher) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string) ([]byte, error) {
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, method, err)
	}

	out, err := f.cb.Execute(func() ([]byte, error) {
		return f.client.CallContract(ctx, gethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		if err == circuitbreaker.ErrOpen {
			return nil, apperror.New(apperror.CodeCircuitOpen, apperror.WithContext("pool-fetcher"))
		}
		return nil, apperror.External(apperror.CodeEthereumRPCError, method, err)
	}
	return out, nil
}

func (f *PoolFetcher) callAddress(ctx context.Context, pool common.Address, method string) (common.Address, error) {
	out, err := f.call(ctx, pool, f.pairABI, method)
	if err != nil {
		return common.Address{}, err
	}
	values, err := f.pairABI.Unpack(method, out)
	if err != nil || len(values) != 1 {
		return common.Address{}, apperror.Internal(apperror.CodeContractCallFailed, method+" decode", err)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(method+" returned a non-address value"))
	}
	return addr, nil
}

func (f *PoolFetcher) callReserves(ctx context.Context, pool common.Address) (*big.Int, *big.Int, error) {
	out, err := f.call(ctx, pool, f.pairABI, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	values, err := f.pairABI.Unpack("getReserves", out)
	if err != nil || len(values) < 2 {
		return nil, nil, apperror.Internal(apperror.CodeContractCallFailed, "getReserves decode", err)
	}
	reserve0, ok0 := values[0].(*big.Int)
	reserve1, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("getReserves returned non-integer reserves"))
	}
	return reserve0, reserve1, nil
}

func (f *PoolFetcher) callSymbol(ctx context.Context, token common.Address) (string, error) {
	out, err := f.call(ctx, token, f.erc20ABI, "symbol")
	if err != nil {
		return "", err
	}
	values, err := f.erc20ABI.Unpack("symbol", out)
	if err != nil || len(values) != 1 {
		return "", apperror.Internal(apperror.CodeContractCallFailed, "symbol decode", err)
	}
	symbol, ok := values[0].(string)
	if !ok {
		return "", apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("symbol returned a non-string value"))
	}
	return symbol, nil
}

func (f *PoolFetcher) callDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := f.call(ctx, token, f.erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	values, err := f.erc20ABI.Unpack("decimals", out)
	if err != nil || len(values) != 1 {
		return 0, apperror.Internal(apperror.CodeContractCallFailed, "decimals decode", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("decimals returned a non-uint8 value"))
	}
	return decimals, nil
}
