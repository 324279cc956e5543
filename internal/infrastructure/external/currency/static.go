// Package currency converts expense amounts into a company's currency.
package currency

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// Rounding applied to converted amounts and derived rates
const (
	AmountPlaces = 2
	RatePlaces   = 8
)

// Config describes a rate table quoted against Base: one unit of a currency
// is worth Rates[code] units of Base.
type Config struct {
	Base  string
	Rates map[string]string
}

// StaticRateConverter converts through a fixed rate table. Cross rates go via the base currency.
type StaticRateConverter struct {
	mu     sync.RWMutex
	base   string
	rates  map[string]decimal.Decimal
	logger *zap.Logger
	now    func() time.Time
}

// NewStaticRateConverter parses the configured rate table
func NewStaticRateConverter(cfg Config, logger *zap.Logger) (*StaticRateConverter, error) {
	base := strings.ToUpper(strings.TrimSpace(cfg.Base))
	if base == "" {
		return nil, fmt.Errorf("currency base is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &StaticRateConverter{
		base:   base,
		rates:  map[string]decimal.Decimal{base: decimal.NewFromInt(1)},
		logger: logger,
		now:    time.Now,
	}
	for code, raw := range cfg.Rates {
		if err := c.SetRate(code, raw); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetRate installs or replaces the rate of code against the base currency
func (c *StaticRateConverter) SetRate(code, raw string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid rate for %s: %w", code, err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate for %s must be positive", code)
	}
	if code == c.base && !rate.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("base currency %s must have rate 1", code)
	}

	c.mu.Lock()
	c.rates[code] = rate
	c.mu.Unlock()
	return nil
}

// Convert turns amount in from into to
func (c *StaticRateConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*port.Conversion, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domainwf.ErrConversionUnavailable, err)
	}
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	rate, err := c.rate(from, to)
	if err != nil {
		c.logger.Warn("Currency conversion unavailable",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
		return nil, err
	}

	return &port.Conversion{
		Amount:    amount.Mul(rate).Round(AmountPlaces),
		Rate:      rate,
		Timestamp: c.now().UTC(),
	}, nil
}

func (c *StaticRateConverter) rate(from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	c.mu.RLock()
	fromRate, okFrom := c.rates[from]
	toRate, okTo := c.rates[to]
	c.mu.RUnlock()

	if !okFrom {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", domainwf.ErrConversionUnavailable, from)
	}
	if !okTo {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", domainwf.ErrConversionUnavailable, to)
	}
	return fromRate.DivRound(toRate, RatePlaces), nil
}

var _ port.CurrencyConverter = (*StaticRateConverter)(nil)
