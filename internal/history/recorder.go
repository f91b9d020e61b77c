package history

import (
	"context"
	"fmt"
	"fxconverter/internal/adapters"
	"fxconverter/internal/domain"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the precision amounts and results are shown with.
const DisplayPlaces = 2

const DefaultLimit = 20

// signature identifies a conversion as the user sees it, so recomputations
// triggered by repeated keystrokes are not logged twice.
type signature struct {
	from   string
	to     string
	amount decimal.Decimal
	result decimal.Decimal
}

func newSignature(from, to string, amount, result float64) signature {
	return signature{
		from:   from,
		to:     to,
		amount: decimal.NewFromFloat(amount).Round(DisplayPlaces),
		result: decimal.NewFromFloat(result).Round(DisplayPlaces),
	}
}

func (s signature) equal(o signature) bool {
	return s.from == o.from && s.to == o.to && s.amount.Equal(o.amount) && s.result.Equal(o.result)
}

// Recorder appends distinct conversions to the history log.
type Recorder struct {
	repo  adapters.HistoryRepository
	limit int
	now   func() time.Time

	mu   sync.Mutex
	last *signature
}

func NewRecorder(repo adapters.HistoryRepository, limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{repo: repo, limit: limit, now: time.Now}
}

// Record stores the conversion unless it matches the last one written in this
// session. It reports whether a record was written.
func (r *Recorder) Record(ctx context.Context, from, to string, amount, result float64) (bool, error) {
	sig := newSignature(from, to, amount, result)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last != nil && r.last.equal(sig) {
		return false, nil
	}

	_, err := r.repo.Insert(ctx, domain.ConversionRecord{
		FromCurrency: from,
		ToCurrency:   to,
		Amount:       amount,
		Result:       result,
		CreatedAt:    r.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to record conversion: %w", err)
	}
	r.last = &sig
	return true, nil
}

// Latest returns the most recent conversions, newest first.
func (r *Recorder) Latest(ctx context.Context) ([]domain.ConversionRecord, error) {
	return r.repo.GetLatest(ctx, r.limit)
}
