package domain

import "time"

type ConversionRecord struct {
	ID           int64     `json:"id"`
	FromCurrency string    `json:"from_currency"`
	ToCurrency   string    `json:"to_currency"`
	Amount       float64   `json:"amount"`
	Result       float64   `json:"result"`
	CreatedAt    time.Time `json:"created_at"`
}
