package rate

import (
	"context"
	"fxconverter/internal/domain"
	"fxconverter/internal/metrics"
	"time"

	"github.com/sirupsen/logrus"
)

type HistoryRecorder interface {
	Record(ctx context.Context, from, to string, amount, result float64) (bool, error)
}

type RateSource interface {
	Table() domain.RateTable
	UpdatedAt() time.Time
	WorkingBase() string
}

type Conversion struct {
	From           string
	To             string
	Amount         float64
	Result         float64
	Base           string
	AmountInBase   float64
	RatesUpdatedAt time.Time
}

// Converter computes conversions against the current rate table and logs
// them to history.
type Converter struct {
	rates    RateSource
	recorder HistoryRecorder
	metrics  *metrics.Metrics
}

func NewConverter(rates RateSource, recorder HistoryRecorder, m *metrics.Metrics) *Converter {
	return &Converter{rates: rates, recorder: recorder, metrics: m}
}

// Convert returns domain.ErrNotConvertible when either currency has no usable
// rate. A failed history write is logged and does not fail the conversion.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (Conversion, error) {
	table := c.rates.Table()

	result, err := Convert(amount, from, to, table)
	c.metrics.ObserveConversion(err)
	if err != nil {
		return Conversion{}, err
	}
	// table is quoted against the working base
	inBase := amount / table[from]

	if c.recorder != nil {
		if _, recErr := c.recorder.Record(ctx, from, to, amount, result); recErr != nil {
			logrus.WithError(recErr).WithFields(logrus.Fields{"from": from, "to": to}).Warn("Conversion not recorded")
		}
	}

	return Conversion{
		From:           from,
		To:             to,
		Amount:         amount,
		Result:         result,
		Base:           c.rates.WorkingBase(),
		AmountInBase:   inBase,
		RatesUpdatedAt: c.rates.UpdatedAt(),
	}, nil
}
