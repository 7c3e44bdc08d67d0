// Package pricing exposes the store's monetary configuration: the canonical
// price rounding routine and the configured flat payment fee.
package pricing

import "math"

// Config is the capability the reconcilers need from the store configuration.
type Config interface {
	// PaymentFee returns the configured flat payment fee in currency units.
	// Zero or negative means no fee line is added.
	PaymentFee() float64

	// RoundPrice is the store's canonical monetary rounding function.
	RoundPrice(v float64) float64
}

// Store is the default Config: half-away-from-zero rounding to two decimals
// and a flat fee taken from configuration.
type Store struct {
	Fee float64
}

// NewStore creates a Config with the given flat payment fee.
func NewStore(fee float64) *Store {
	return &Store{Fee: fee}
}

func (s *Store) PaymentFee() float64 {
	return s.Fee
}

func (s *Store) RoundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}
