package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/cashflow"
	"github.com/dvloznov/wealth-tracker/internal/config"
	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/holdings"
	"github.com/dvloznov/wealth-tracker/internal/infra/sqlite"
	"github.com/dvloznov/wealth-tracker/internal/logger"
	"github.com/dvloznov/wealth-tracker/internal/prices"
	"github.com/dvloznov/wealth-tracker/internal/repair"
	"github.com/dvloznov/wealth-tracker/internal/stats"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Globals are the flags shared by every command. Flags win over the
// environment and the env file.
type Globals struct {
	EnvFile  string `name:"env-file" help:"Env file with settings." default:".env"`
	DB       string `name:"db" help:"SQLite database path (overrides WEALTH_DB_PATH)."`
	LogLevel string `name:"log-level" help:"Log level (overrides LOG_LEVEL)."`
	JSON     bool   `help:"Print JSON instead of tables."`

	Out io.Writer `kong:"-"`
}

// app is what a command runs against.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	db   *sqlite.DB
	out  io.Writer
	json bool
}

func (g *Globals) open() (*app, error) {
	cfg, err := config.Load(g.EnvFile)
	if err != nil {
		return nil, err
	}
	if g.DB != "" {
		cfg.DBPath = g.DB
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.New(level)

	db, err := sqlite.Open(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	out := g.Out
	if out == nil {
		out = os.Stdout
	}
	return &app{cfg: cfg, log: log, db: db, out: out, json: g.JSON}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing database")
	}
}

func (a *app) context() context.Context {
	return logger.WithContext(context.Background(), a.log)
}

func (a *app) ledger() *holdings.Ledger {
	client := prices.NewClient(prices.Options{
		BaseURL:    a.cfg.PriceAPIURL,
		Timeout:    a.cfg.PriceTimeout,
		RatePerSec: a.cfg.PriceRatePerSec,
	}, a.log)
	return holdings.NewLedger(a.db, client, a.log).WithPriceTimeout(a.cfg.PriceTimeout)
}

func (a *app) cashflow() *cashflow.Service {
	return cashflow.NewService(a.db, a.log)
}

func (a *app) repair() *repair.Service {
	return repair.NewService(a.db, a.log)
}

func (a *app) stats() *stats.Service {
	return stats.NewService(a.db, a.log)
}

// emit prints v as JSON in --json mode and calls table otherwise.
func (a *app) emit(v any, table func(io.Writer) error) error {
	if a.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return table(a.out)
}

// emitf prints v as JSON in --json mode and a formatted line otherwise.
func (a *app) emitf(v any, format string, args ...any) error {
	return a.emit(v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, format+"\n", args...)
		return err
	})
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// parseDate accepts RFC 3339, a date with hours and minutes, a bare date or
// "today". An empty string yields nil. Times without a zone are UTC.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.EqualFold(s, "today") {
		now := time.Now().UTC()
		return &now, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
}

func parseAmount(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

// parseOptionalAmount returns nil for an empty string.
func parseOptionalAmount(name, s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := parseAmount(name, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseAllocations turns category=amount pairs, and goal=amount pairs
// allocated to savings, into allocation inputs.
func parseAllocations(allocs, goalAllocs []string) ([]cashflow.AllocationInput, error) {
	out := make([]cashflow.AllocationInput, 0, len(allocs)+len(goalAllocs))
	for _, kv := range allocs {
		key, amount, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("--alloc: %w", err)
		}
		out = append(out, cashflow.AllocationInput{Category: domain.CategoryID(key), Amount: amount})
	}
	for _, kv := range goalAllocs {
		key, amount, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("--goal-alloc: %w", err)
		}
		out = append(out, cashflow.AllocationInput{Category: domain.CategorySavings, Amount: amount, SavingsGoalID: key})
	}
	return out, nil
}

func splitPair(kv string) (string, decimal.Decimal, error) {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", decimal.Zero, fmt.Errorf("invalid pair %q: want name=amount", kv)
	}
	amount, err := parseAmount("amount", value)
	if err != nil {
		return "", decimal.Zero, err
	}
	return key, amount, nil
}

// parseAssetTypes upper-cases and validates asset type names.
func parseAssetTypes(names []string) ([]domain.AssetType, error) {
	var out []domain.AssetType
	for _, n := range names {
		t := domain.AssetType(strings.ToUpper(strings.TrimSpace(n)))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown asset type %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// parseRisk upper-cases and validates a risk level. Empty stays empty.
func parseRisk(name string) (domain.RiskLevel, error) {
	r := domain.RiskLevel(strings.ToUpper(strings.TrimSpace(name)))
	if r == "" || r.Normalize() == r {
		return r, nil
	}
	return "", fmt.Errorf("unknown risk level %q", name)
}

// viewTypes maps a holdings view to the asset types it shows.
func viewTypes(view string) []domain.AssetType {
	switch view {
	case "stocks":
		return domain.StockAssetTypes
	case "future":
		return domain.FutureAssetTypes
	}
	return nil
}
