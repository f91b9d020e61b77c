package rate

import (
	"errors"
	"maps"
	"slices"
)

var (
	ErrFromRequired    = errors.New("from currency is required")
	ErrToRequired      = errors.New("to currency is required")
	ErrFromUnsupported = errors.New("from currency not supported")
	ErrToUnsupported   = errors.New("to currency not supported")
)

// CurrencyValidator checks codes against the currencies a user can select.
type CurrencyValidator struct {
	supportedCodesSet map[string]struct{} // read only copy
	supportedCodesLst []string            // read only copy
}

func (v *CurrencyValidator) ValidateCodes(from, to string) error {
	if from == "" {
		return ErrFromRequired
	}
	if to == "" {
		return ErrToRequired
	}
	if _, ok := v.supportedCodesSet[from]; !ok {
		return ErrFromUnsupported
	}
	if _, ok := v.supportedCodesSet[to]; !ok {
		return ErrToUnsupported
	}
	return nil
}

func (v *CurrencyValidator) SupportedCodes() []string {
	return slices.Clone(v.supportedCodesLst)
}

// Missing lists the supported codes absent from rates.
func (v *CurrencyValidator) Missing(rates map[string]float64) []string {
	var missing []string
	for _, code := range v.supportedCodesLst {
		if _, ok := rates[code]; !ok {
			missing = append(missing, code)
		}
	}
	return missing
}

func NewValidator(supportedCurrencies []string) *CurrencyValidator {
	codesSet := make(map[string]struct{}, len(supportedCurrencies))
	for _, c := range supportedCurrencies {
		codesSet[c] = struct{}{}
	}
	codesLst := slices.Collect(maps.Keys(codesSet))
	slices.Sort(codesLst)

	return &CurrencyValidator{
		supportedCodesSet: codesSet,
		supportedCodesLst: codesLst,
	}
}
