package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fxconverter/internal/domain"
	"fxconverter/internal/history"
	"fxconverter/internal/rate"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ConvertResponse struct {
	From           string    `json:"from"`
	To             string    `json:"to"`
	Amount         float64   `json:"amount"`
	Result         float64   `json:"result"`
	ResultDisplay  string    `json:"result_display"`
	Base           string    `json:"base"`
	AmountInBase   string    `json:"amount_in_base"`
	RatesUpdatedAt time.Time `json:"rates_updated_at"`
}

// Convert godoc
// @Summary Convert an amount
// @Tags Conversion
// @Produce json
// @Param from query string true "Source currency code"
// @Param to query string true "Target currency code"
// @Param amount query string true "Amount, comma or dot decimal separator"
// @Success 200 {object} ConvertResponse
// @Failure 400 {object} errorResponse
// @Failure 422 {object} errorResponse "pair not convertible"
// @Router /convert [get]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := strings.ToUpper(strings.TrimSpace(q.Get("from")))
	to := strings.ToUpper(strings.TrimSpace(q.Get("to")))

	if err := h.validator.ValidateCodes(from, to); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := rate.ParseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}

	conv, err := h.converter.Convert(r.Context(), amount, from, to)
	if err != nil {
		if errors.Is(err, domain.ErrNotConvertible) {
			writeError(w, http.StatusUnprocessableEntity, domain.ErrNotConvertible.Error())
			return
		}
		msg := "ups, couldn't convert this time"
		logrus.WithError(err).WithFields(logrus.Fields{"handler": "Convert", "from": from, "to": to}).Error(msg)
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		From:           conv.From,
		To:             conv.To,
		Amount:         conv.Amount,
		Result:         conv.Result,
		ResultDisplay:  decimal.NewFromFloat(conv.Result).StringFixed(history.DisplayPlaces),
		Base:           conv.Base,
		AmountInBase:   decimal.NewFromFloat(conv.AmountInBase).StringFixed(history.DisplayPlaces),
		RatesUpdatedAt: conv.RatesUpdatedAt,
	})
}
