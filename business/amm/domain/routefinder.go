package domain

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arb-engine/internal/asset"
)

// Gas model for a multi-hop swap: base cost plus a per-hop increment.
const (
	gasBase   = 150000
	gasPerHop = 100000
)

var gweiToWei = big.NewInt(1_000_000_000)

// RouteQuote is a route ranked by gas-adjusted output.
type RouteQuote struct {
	Route       *Route
	GrossOutput *big.Int // raw units of the output token, before gas
	GasEstimate uint64
	GasCostWei  *big.Int
	GasCostOut  *big.Int // gas converted into output-token units
	NetOutput   *big.Int // gross minus gas, floored at zero
}

type edge struct {
	pair *Pair
	to   *asset.Asset
}

// RouteFinder enumerates swap routes over a fixed snapshot of pools. It is
// immutable after construction; pool refreshes build a new finder.
type RouteFinder struct {
	pairs   []*Pair
	graph   map[common.Address][]edge
	weth    common.Address
	maxHops int
}

// NewRouteFinder builds the token graph from a snapshot of pairs. weth is
// used to convert gas costs into output-token units.
func NewRouteFinder(pairs []*Pair, weth common.Address, maxHops int) *RouteFinder {
	if maxHops <= 0 {
		maxHops = 3
	}
	graph := make(map[common.Address][]edge)
	for _, p := range pairs {
		a0 := p.Token0().Address()
		a1 := p.Token1().Address()
		graph[a0] = append(graph[a0], edge{pair: p, to: p.Token1()})
		graph[a1] = append(graph[a1], edge{pair: p, to: p.Token0()})
	}
	return &RouteFinder{pairs: pairs, graph: graph, weth: weth, maxHops: maxHops}
}

// Pairs returns the snapshot the finder was built from.
func (f *RouteFinder) Pairs() []*Pair { return f.pairs }

// FindAllRoutes enumerates simple paths from tokenIn to tokenOut visiting at
// most maxHops pools. Output order is DFS discovery order and is stable for
// a given snapshot.
func (f *RouteFinder) FindAllRoutes(tokenIn, tokenOut *asset.Asset, maxHops int) []*Route {
	if maxHops <= 0 || maxHops > f.maxHops {
		maxHops = f.maxHops
	}

	var routes []*Route
	visited := map[common.Address]bool{tokenIn.Address(): true}
	var pools []*Pair
	path := []*asset.Asset{tokenIn}

	var dfs func(current *asset.Asset)
	dfs = func(current *asset.Asset) {
		if current.Address() == tokenOut.Address() && len(pools) > 0 {
			route, err := NewRoute(append([]*Pair(nil), pools...), append([]*asset.Asset(nil), path...))
			if err == nil {
				routes = append(routes, route)
			}
			return
		}
		if len(pools) >= maxHops {
			return
		}
		for _, e := range f.graph[current.Address()] {
			if visited[e.to.Address()] {
				continue
			}
			visited[e.to.Address()] = true
			pools = append(pools, e.pair)
			path = append(path, e.to)
			dfs(e.to)
			pools = pools[:len(pools)-1]
			path = path[:len(path)-1]
			visited[e.to.Address()] = false
		}
	}
	dfs(tokenIn)
	return routes
}

// CompareRoutes computes gross output, a hop-count gas estimate, and the
// net output after converting gas into the output token, then ranks routes
// by net output descending. Ties keep DFS discovery order.
func (f *RouteFinder) CompareRoutes(routes []*Route, amountIn *big.Int, gasPriceGwei uint64) []RouteQuote {
	quotes := make([]RouteQuote, 0, len(routes))
	for _, r := range routes {
		gross, err := r.Output(amountIn)
		if err != nil {
			continue
		}

		gasEstimate := uint64(gasBase + gasPerHop*r.Hops())
		gasCostWei := new(big.Int).SetUint64(gasEstimate)
		gasCostWei.Mul(gasCostWei, new(big.Int).SetUint64(gasPriceGwei))
		gasCostWei.Mul(gasCostWei, gweiToWei)

		gasCostOut := f.gasCostInToken(gasCostWei, r.TokenOut())

		net := new(big.Int).Sub(gross, gasCostOut)
		if net.Sign() < 0 {
			net = big.NewInt(0)
		}

		quotes = append(quotes, RouteQuote{
			Route:       r,
			GrossOutput: gross,
			GasEstimate: gasEstimate,
			GasCostWei:  gasCostWei,
			GasCostOut:  gasCostOut,
			NetOutput:   net,
		})
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].NetOutput.Cmp(quotes[j].NetOutput) > 0
	})
	return quotes
}

// FindBestRoute returns the full quote for the route with the highest
// gas-adjusted output, or nil when no route connects the tokens. Ranking
// uses NetOutput; GrossOutput is what the route actually pays out.
func (f *RouteFinder) FindBestRoute(tokenIn, tokenOut *asset.Asset, amountIn *big.Int, gasPriceGwei uint64, maxHops int) *RouteQuote {
	routes := f.FindAllRoutes(tokenIn, tokenOut, maxHops)
	quotes := f.CompareRoutes(routes, amountIn, gasPriceGwei)
	if len(quotes) == 0 {
		return nil
	}
	return &quotes[0]
}

// gasCostInToken converts a wei gas cost into units of tokenOut. When
// tokenOut is WETH the cost passes through unchanged. Otherwise the
// neighbor pool of tokenOut holding the most WETH provides the spot rate;
// the conversion rounds up so gas is never under-charged. Without any WETH
// neighbor the cost is zero.
func (f *RouteFinder) gasCostInToken(gasCostWei *big.Int, tokenOut *asset.Asset) *big.Int {
	if tokenOut.Address() == f.weth {
		return new(big.Int).Set(gasCostWei)
	}

	var best *Pair
	var bestWETHReserve *big.Int
	for _, e := range f.graph[tokenOut.Address()] {
		if e.to.Address() != f.weth {
			continue
		}
		var wethReserve *big.Int
		if e.pair.Token0().Address() == f.weth {
			wethReserve = e.pair.Reserve0()
		} else {
			wethReserve = e.pair.Reserve1()
		}
		if best == nil || wethReserve.Cmp(bestWETHReserve) > 0 {
			best = e.pair
			bestWETHReserve = wethReserve
		}
	}
	if best == nil {
		return big.NewInt(0)
	}

	// WETH -> tokenOut spot price in Q18 of human units. gasCostWei is raw
	// WETH (18 decimals); scale back to tokenOut raw units and ceil-divide
	// so gas is never under-charged.
	spot, err := best.SpotPrice(f.weth)
	if err != nil {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(gasCostWei, spot)
	num.Mul(num, new(big.Int).Exp(big10, big.NewInt(int64(tokenOut.Decimals())), nil))
	den := new(big.Int).Mul(q18, q18)
	num.Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return num.Div(num, den)
}
