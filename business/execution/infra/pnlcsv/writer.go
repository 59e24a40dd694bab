// Package pnlcsv persists completed arbitrage round trips to a CSV file.
package pnlcsv

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fd1az/arb-engine/business/execution/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
)

var header = []string{
	"id", "timestamp", "buy_venue", "sell_venue", "symbol",
	"buy_price", "sell_price", "amount",
	"gross_pnl", "net_pnl", "net_pnl_bps", "fees", "gas_cost",
}

// Writer appends ArbRecords to a CSV file, writing the header once. Rows
// keep insertion order.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter ensures the directory exists and the header is present.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "create pnl directory", err)
	}

	w := &Writer{path: path}
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return w, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "create pnl file", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "write pnl header", err)
	}
	cw.Flush()
	return w, cw.Error()
}

// Append writes one record as a CSV row.
func (w *Writer) Append(r *domain.ArbRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return apperror.Internal(apperror.CodeInternalError, "open pnl file", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	row := []string{
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.BuyVenue,
		r.SellVenue,
		r.Symbol,
		r.BuyPrice.String(),
		r.SellPrice.String(),
		r.Amount.String(),
		r.GrossPnL().String(),
		r.NetPnL().String(),
		r.NetPnLBps().StringFixed(2),
		r.TotalFees().String(),
		r.GasCost.String(),
	}
	if err := cw.Write(row); err != nil {
		return apperror.Internal(apperror.CodeInternalError, "write pnl row", err)
	}
	cw.Flush()
	return cw.Error()
}

// Path returns the CSV location.
func (w *Writer) Path() string { return w.path }
