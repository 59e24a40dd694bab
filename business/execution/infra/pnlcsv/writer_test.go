package pnlcsv_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/execution/domain"
	"github.com/fd1az/arb-engine/business/execution/infra/pnlcsv"
)

func sampleRecord(id string) *domain.ArbRecord {
	return &domain.ArbRecord{
		ID:        id,
		Timestamp: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
		BuyVenue:  domain.VenueCex,
		SellVenue: domain.VenueDex,
		Symbol:    "ETHUSDC",
		BuyPrice:  decimal.NewFromInt(2000),
		SellPrice: decimal.NewFromInt(2020),
		Amount:    decimal.RequireFromString("0.01"),
		FeeBuy:    decimal.RequireFromString("0.04"),
		FeeSell:   decimal.RequireFromString("0.04"),
		GasCost:   decimal.Zero,
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestWriter_HeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pnl", "trades.csv")

	w, err := pnlcsv.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append(sampleRecord("trade-1")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one record", len(rows))
	}
	if rows[0][0] != "id" || rows[0][len(rows[0])-1] != "gas_cost" {
		t.Errorf("unexpected header: %v", rows[0])
	}

	row := rows[1]
	if row[0] != "trade-1" {
		t.Errorf("id = %q, want trade-1", row[0])
	}
	if row[1] != "2026-08-24T12:00:00Z" {
		t.Errorf("timestamp = %q, want RFC3339 UTC", row[1])
	}
	if row[8] != "0.2" || row[9] != "0.12" {
		t.Errorf("gross/net = %q/%q, want 0.2/0.12", row[8], row[9])
	}
	// 0.12 over the 20 USDC buy notional, fixed to two decimals.
	if row[10] != "60.00" {
		t.Errorf("net bps = %q, want 60.00", row[10])
	}
}

func TestWriter_ReopenDoesNotDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	w, err := pnlcsv.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append(sampleRecord("trade-1")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A restart reopens the same file and keeps appending.
	w2, err := pnlcsv.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter reopen: %v", err)
	}
	if err := w2.Append(sampleRecord("trade-2")); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus two records", len(rows))
	}
	if rows[1][0] != "trade-1" || rows[2][0] != "trade-2" {
		t.Errorf("record order = %q, %q", rows[1][0], rows[2][0])
	}
}
