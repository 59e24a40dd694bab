package app

import (
	"math"
	"sync"

	"github.com/fd1az/arb-engine/business/signal/domain"
)

const (
	historyWindow     = 20
	historyMinSamples = 3

	liquidityPlaceholder = 80.0 // until a depth-derived score replaces it
	historyNeutral       = 50.0
	inventorySkewed      = 20.0
	inventoryBalanced    = 60.0
)

// ScorerConfig holds composite score weights and spread thresholds. Weights
// must sum to 1.
type ScorerConfig struct {
	WeightSpread    float64
	WeightLiquidity float64
	WeightInventory float64
	WeightHistory   float64

	MinSpreadBps       float64
	ExcellentSpreadBps float64
}

// Scorer ranks signals on a [0,100] composite of spread quality, liquidity,
// inventory balance, and per-pair execution history.
type Scorer struct {
	config ScorerConfig
	skew   SkewView

	mu      sync.Mutex
	history map[string][]bool
}

// NewScorer creates a scorer with empty history.
func NewScorer(cfg ScorerConfig, skew SkewView) *Scorer {
	return &Scorer{
		config:  cfg,
		skew:    skew,
		history: make(map[string][]bool),
	}
}

// Score computes the composite for a signal and stores it on the signal.
func (s *Scorer) Score(sig *domain.Signal) float64 {
	spread := s.spreadScore(sig)
	inventory := s.inventoryScore(sig)
	history := s.historyScore(sig.Pair.Symbol)

	score := s.config.WeightSpread*spread +
		s.config.WeightLiquidity*liquidityPlaceholder +
		s.config.WeightInventory*inventory +
		s.config.WeightHistory*history

	score = clamp(score, 0, 100)
	score = math.Round(score*10) / 10
	sig.Score = score
	return score
}

// ApplyDecay shrinks the score linearly with age: at full TTL the score has
// lost half its value, past TTL it keeps decaying toward zero.
func (s *Scorer) ApplyDecay(sig *domain.Signal) float64 {
	ttl := sig.Expiry.Sub(sig.Timestamp)
	if ttl <= 0 {
		sig.Score = 0
		return 0
	}
	factor := 1 - sig.Age().Seconds()/ttl.Seconds()*0.5
	if factor < 0 {
		factor = 0
	}
	sig.Score = math.Round(sig.Score*factor*10) / 10
	return sig.Score
}

// RecordResult appends an execution outcome to the pair's rolling window.
func (s *Scorer) RecordResult(symbol string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := append(s.history[symbol], success)
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	s.history[symbol] = window
}

func (s *Scorer) spreadScore(sig *domain.Signal) float64 {
	span := s.config.ExcellentSpreadBps - s.config.MinSpreadBps
	if span <= 0 {
		return 100
	}
	spread, _ := sig.SpreadBps.Float64()
	return clamp((spread-s.config.MinSpreadBps)/span*100, 0, 100)
}

func (s *Scorer) inventoryScore(sig *domain.Signal) float64 {
	if s.skew != nil && s.skew.NeedsRebalance(sig.Pair.Base.Symbol()) {
		return inventorySkewed
	}
	return inventoryBalanced
}

func (s *Scorer) historyScore(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := s.history[symbol]
	if len(window) < historyMinSamples {
		return historyNeutral
	}
	wins := 0
	for _, ok := range window {
		if ok {
			wins++
		}
	}
	return float64(wins) / float64(len(window)) * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
