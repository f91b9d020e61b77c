package handler

import (
	"net/http"
	"strconv"
	"time"

	"fxconverter/internal/rate"

	"github.com/sirupsen/logrus"
)

type GetRatesResponse struct {
	Base      string             `json:"base"`
	State     string             `json:"state"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
	Rates     map[string]float64 `json:"rates"`
}

// GetRates godoc
// @Summary Current rate table
// @Description Rates of every cached currency against the working base
// @Tags Rates
// @Produce json
// @Success 200 {object} GetRatesResponse
// @Router /rates [get]
func (h *Handler) GetRates(w http.ResponseWriter, _ *http.Request) {
	res := GetRatesResponse{
		Base:  h.controller.WorkingBase(),
		State: string(h.controller.State()),
		Rates: h.controller.Table(),
	}
	if updatedAt := h.controller.UpdatedAt(); !updatedAt.IsZero() {
		res.UpdatedAt = &updatedAt
	}
	writeJSON(w, http.StatusOK, res)
}

type RefreshResponse struct {
	Status     string     `json:"status"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	RatesCount int        `json:"rates_count"`
}

// Refresh godoc
// @Summary Refresh rates
// @Description Runs one sync attempt. too_soon and kept_cache are advisory and answered with 200
// @Tags Rates
// @Produce json
// @Param force query bool false "Fetch even when cached rates are fresh"
// @Success 200 {object} RefreshResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Failure 503 {object} RefreshResponse "no rates available"
// @Router /rates/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}

	outcome, err := h.controller.Sync(r.Context(), force, h.controller.HasRates())
	if err != nil {
		msg := "ups, couldn't refresh rates this time"
		logrus.WithError(err).WithFields(logrus.Fields{"handler": "Refresh", "force": force}).Error(msg)
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	res := RefreshResponse{Status: string(outcome.Status), RatesCount: len(outcome.Table)}
	if !outcome.UpdatedAt.IsZero() {
		res.UpdatedAt = &outcome.UpdatedAt
	}

	status := http.StatusOK
	if outcome.Status == rate.StatusRefreshFailed {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}
