// Package domain contains the constant-product AMM core: pairs, routes, and
// the route finder.
package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
)

const bpsDenominator = 10000

var (
	big10  = big.NewInt(10)
	bigBps = big.NewInt(bpsDenominator)
	q18    = new(big.Int).Exp(big10, big.NewInt(18), nil)
)

// Pair is an immutable constant-product pool snapshot. Swap simulation
// returns a new Pair; the receiver is never mutated.
type Pair struct {
	address  common.Address
	token0   *asset.Asset
	token1   *asset.Asset
	reserve0 *big.Int
	reserve1 *big.Int
	feeBps   uint64
}

// NewPair validates and creates a Pair. Reserves are raw on-chain units.
func NewPair(address common.Address, token0, token1 *asset.Asset, reserve0, reserve1 *big.Int, feeBps uint64) (*Pair, error) {
	if token0 == nil || token1 == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("pair tokens must be non-nil"))
	}
	if token0.Address() == token1.Address() {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("pair tokens must differ"))
	}
	if feeBps >= bpsDenominator {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("fee %d bps out of range [0, 10000)", feeBps)))
	}
	if reserve0 == nil || reserve1 == nil || reserve0.Sign() < 0 || reserve1.Sign() < 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("reserves must be non-negative"))
	}

	return &Pair{
		address:  address,
		token0:   token0,
		token1:   token1,
		reserve0: new(big.Int).Set(reserve0),
		reserve1: new(big.Int).Set(reserve1),
		feeBps:   feeBps,
	}, nil
}

// Address returns the pool contract address.
func (p *Pair) Address() common.Address { return p.address }

// Token0 returns the first token.
func (p *Pair) Token0() *asset.Asset { return p.token0 }

// Token1 returns the second token.
func (p *Pair) Token1() *asset.Asset { return p.token1 }

// Reserve0 returns a copy of reserve0.
func (p *Pair) Reserve0() *big.Int { return new(big.Int).Set(p.reserve0) }

// Reserve1 returns a copy of reserve1.
func (p *Pair) Reserve1() *big.Int { return new(big.Int).Set(p.reserve1) }

// FeeBps returns the swap fee in basis points.
func (p *Pair) FeeBps() uint64 { return p.feeBps }

// Has reports whether addr is one of the pair's tokens.
func (p *Pair) Has(addr common.Address) bool {
	return p.token0.Address() == addr || p.token1.Address() == addr
}

// Other returns the counterparty token for addr.
func (p *Pair) Other(addr common.Address) (*asset.Asset, error) {
	switch addr {
	case p.token0.Address():
		return p.token1, nil
	case p.token1.Address():
		return p.token0, nil
	default:
		return nil, apperror.New(apperror.CodeNotFound,
			apperror.WithContext(fmt.Sprintf("token %s not in pair %s", addr.Hex(), p.address.Hex())))
	}
}

// orient returns (reserveIn, reserveOut, tokenOut) for a swap selling tokenIn.
func (p *Pair) orient(tokenIn common.Address) (*big.Int, *big.Int, *asset.Asset, error) {
	switch tokenIn {
	case p.token0.Address():
		return p.reserve0, p.reserve1, p.token1, nil
	case p.token1.Address():
		return p.reserve1, p.reserve0, p.token0, nil
	default:
		return nil, nil, nil, apperror.New(apperror.CodeNotFound,
			apperror.WithContext(fmt.Sprintf("token %s not in pair %s", tokenIn.Hex(), p.address.Hex())))
	}
}

// AmountOut computes the exact output for selling amountIn of tokenIn.
// All-integer Uniswap V2 semantics with the fee charged on the input side:
//
//	aif = in * (10000 - fee); out = aif*reserveOut / (reserveIn*10000 + aif)
func (p *Pair) AmountOut(amountIn *big.Int, tokenIn common.Address) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("amountIn must be positive"))
	}
	reserveIn, reserveOut, _, err := p.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("pool %s has an empty reserve", p.address.Hex())))
	}

	aif := new(big.Int).Mul(amountIn, big.NewInt(int64(bpsDenominator-p.feeBps)))
	num := new(big.Int).Mul(aif, reserveOut)
	den := new(big.Int).Mul(reserveIn, bigBps)
	den.Add(den, aif)
	return num.Div(num, den), nil
}

// AmountIn computes the minimal input of tokenIn to receive amountOut of the
// counterparty token. Rounds up so the caller never under-pays.
func (p *Pair) AmountIn(amountOut *big.Int, tokenOut common.Address) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("amountOut must be positive"))
	}
	tokenInAsset, err := p.Other(tokenOut)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, _, err := p.orient(tokenInAsset.Address())
	if err != nil {
		return nil, err
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("requested output exceeds reserve of pool %s", p.address.Hex())))
	}

	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, bigBps)
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(int64(bpsDenominator-p.feeBps)))
	num.Div(num, den)
	return num.Add(num, big.NewInt(1)), nil
}

// SpotPrice returns the marginal price of tokenIn in units of the
// counterparty token, decimals-adjusted and scaled by 1e18 (Q18).
func (p *Pair) SpotPrice(tokenIn common.Address) (*big.Int, error) {
	reserveIn, reserveOut, tokenOut, err := p.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	if reserveIn.Sign() == 0 {
		return nil, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("pool %s has an empty reserve", p.address.Hex())))
	}

	tokenInAsset, err := p.Other(tokenOut.Address())
	if err != nil {
		return nil, err
	}

	// price = reserveOut/reserveIn * 10^decIn / 10^decOut * 1e18
	num := new(big.Int).Mul(reserveOut, q18)
	num.Mul(num, new(big.Int).Exp(big10, big.NewInt(int64(tokenInAsset.Decimals())), nil))
	den := new(big.Int).Mul(reserveIn, new(big.Int).Exp(big10, big.NewInt(int64(tokenOut.Decimals())), nil))
	return num.Div(num, den), nil
}

// SimulateSwap returns a new Pair whose reserves reflect selling amountIn of
// tokenIn into the pool. The receiver is unchanged.
func (p *Pair) SimulateSwap(amountIn *big.Int, tokenIn common.Address) (*Pair, error) {
	out, err := p.AmountOut(amountIn, tokenIn)
	if err != nil {
		return nil, err
	}

	r0 := new(big.Int).Set(p.reserve0)
	r1 := new(big.Int).Set(p.reserve1)
	if tokenIn == p.token0.Address() {
		r0.Add(r0, amountIn)
		r1.Sub(r1, out)
	} else {
		r1.Add(r1, amountIn)
		r0.Sub(r0, out)
	}
	if r0.Sign() < 0 || r1.Sign() < 0 {
		return nil, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("swap would drain pool %s", p.address.Hex())))
	}

	return &Pair{
		address:  p.address,
		token0:   p.token0,
		token1:   p.token1,
		reserve0: r0,
		reserve1: r1,
		feeBps:   p.feeBps,
	}, nil
}
