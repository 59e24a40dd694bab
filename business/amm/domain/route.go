package domain

import (
	"math/big"
	"strings"

	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
)

// Route is an ordered sequence of pools and the token path through them.
// len(Path) == len(Pools)+1 and every consecutive (pool, in, out) hop is
// well-formed.
type Route struct {
	pools []*Pair
	path  []*asset.Asset
}

// NewRoute validates the hop structure and creates a Route.
func NewRoute(pools []*Pair, path []*asset.Asset) (*Route, error) {
	if len(pools) == 0 || len(path) != len(pools)+1 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("route path length must be pools+1"))
	}
	for i, pool := range pools {
		if !pool.Has(path[i].Address()) || !pool.Has(path[i+1].Address()) {
			return nil, apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext("route hop does not match pool tokens"))
		}
	}
	return &Route{pools: pools, path: path}, nil
}

// Pools returns the pools in hop order.
func (r *Route) Pools() []*Pair { return r.pools }

// Path returns the token path, input first.
func (r *Route) Path() []*asset.Asset { return r.path }

// Hops returns the number of pools traversed.
func (r *Route) Hops() int { return len(r.pools) }

// TokenIn returns the route's input token.
func (r *Route) TokenIn() *asset.Asset { return r.path[0] }

// TokenOut returns the route's output token.
func (r *Route) TokenOut() *asset.Asset { return r.path[len(r.path)-1] }

// Output chains AmountOut across every hop and returns the final output in
// raw units of TokenOut.
func (r *Route) Output(amountIn *big.Int) (*big.Int, error) {
	amount := amountIn
	for i, pool := range r.pools {
		out, err := pool.AmountOut(amount, r.path[i].Address())
		if err != nil {
			return nil, err
		}
		amount = out
	}
	return amount, nil
}

// String renders the route as SYMBOL -> SYMBOL -> ...
func (r *Route) String() string {
	var sb strings.Builder
	for i, a := range r.path {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(a.Symbol())
	}
	return sb.String()
}
