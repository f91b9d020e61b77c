package domain

import (
	"maps"
	"time"
)

// RateEntry is one cached quote: Rate units of Code equal one unit of Base.
type RateEntry struct {
	Code      string
	Rate      float64
	Base      string
	UpdatedAt time.Time
}

// RateTable maps currency codes to rates quoted against a single base.
type RateTable map[string]float64

func (t RateTable) Clone() RateTable {
	if t == nil {
		return RateTable{}
	}
	return maps.Clone(t)
}

func (t RateTable) Has(code string) bool {
	_, ok := t[code]
	return ok
}

// TableFromEntries builds a table from cached entries, later entries win.
func TableFromEntries(entries []RateEntry) RateTable {
	table := make(RateTable, len(entries))
	for _, e := range entries {
		table[e.Code] = e.Rate
	}
	return table
}

// FetchResult is the raw remote payload, quoted against the requested base.
type FetchResult struct {
	Rates     map[string]float64
	UpdatedAt time.Time
}
