// Package wallet reads on-chain token balances for the trading wallet.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	gethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/logger"
)

// BalanceOfABI is the minimal ERC20 fragment needed for balance reads.
const BalanceOfABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// BalanceFetcher reads ERC20 balances for a fixed set of tokens via eth_call.
type BalanceFetcher struct {
	client   *ethclient.Client
	erc20ABI abi.ABI
	owner    common.Address
	tokens   []*asset.Asset
	logger   logger.LoggerInterface
}

// NewBalanceFetcher creates a fetcher for the given wallet and token set.
func NewBalanceFetcher(client *ethclient.Client, owner common.Address, tokens []*asset.Asset, log logger.LoggerInterface) (*BalanceFetcher, error) {
	erc20ABI, err := abi.JSON(strings.NewReader(BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}
	return &BalanceFetcher{
		client:   client,
		erc20ABI: erc20ABI,
		owner:    owner,
		tokens:   tokens,
		logger:   log,
	}, nil
}

// FetchBalances returns the wallet's balance per token symbol in human units.
func (f *BalanceFetcher) FetchBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(f.tokens))
	for _, token := range f.tokens {
		raw, err := f.callBalanceOf(ctx, token.Address())
		if err != nil {
			return nil, err
		}
		balances[token.Symbol()] = decimal.NewFromBigInt(raw, -int32(token.Decimals()))
	}
	f.logger.Debug(ctx, "fetched wallet balances", "owner", f.owner.Hex(), "tokens", len(balances))
	return balances, nil
}

func (f *BalanceFetcher) callBalanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	data, err := f.erc20ABI.Pack("balanceOf", f.owner)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "balanceOf", err)
	}

	out, err := f.client.CallContract(ctx, gethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, apperror.External(apperror.CodeEthereumRPCError, "balanceOf", err)
	}

	values, err := f.erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(values) != 1 {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "balanceOf decode", err)
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("balanceOf returned a non-integer value"))
	}
	return raw, nil
}
