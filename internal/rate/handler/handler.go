package handler

import (
	"context"
	"encoding/json"
	"fxconverter/internal/domain"
	"fxconverter/internal/rate"
	"net/http"
	"time"
)

type Validator interface {
	ValidateCodes(from, to string) error
	SupportedCodes() []string
}

type Controller interface {
	Sync(ctx context.Context, force bool, hadCachedRates bool) (rate.SyncOutcome, error)
	Table() domain.RateTable
	UpdatedAt() time.Time
	HasRates() bool
	State() rate.State
	WorkingBase() string
}

type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (rate.Conversion, error)
}

type HistoryReader interface {
	Latest(ctx context.Context) ([]domain.ConversionRecord, error)
}

type Handler struct {
	validator  Validator
	controller Controller
	converter  Converter
	history    HistoryReader
}

func NewRateHandler(validator Validator, controller Controller, converter Converter, history HistoryReader) *Handler {
	return &Handler{validator: validator, controller: controller, converter: converter, history: history}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, statusCode int, errorMsg string) {
	writeJSON(w, statusCode, errorResponse{Error: errorMsg})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
