package handler

import (
	"net/http"

	"fxconverter/internal/domain"

	"github.com/sirupsen/logrus"
)

type GetHistoryResponse struct {
	Items []domain.ConversionRecord `json:"items"`
}

// GetHistory godoc
// @Summary Latest conversions
// @Tags Conversion
// @Produce json
// @Success 200 {object} GetHistoryResponse
// @Failure 500 {object} errorResponse
// @Router /history [get]
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.Latest(r.Context())
	if err != nil {
		msg := "ups, couldn't load history this time"
		logrus.WithError(err).WithField("handler", "GetHistory").Error(msg)
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	if records == nil {
		records = []domain.ConversionRecord{}
	}
	writeJSON(w, http.StatusOK, GetHistoryResponse{Items: records})
}
