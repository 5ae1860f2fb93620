package services

import (
	"example.com/retailpos/terminal/internal/models"
)

// CalculateTotals recomputes the sale's derived amounts from its items,
// payments and discount. It is pure: the input is not mutated and a new
// aggregate is returned.
//
// The discount fields are explicitly re-asserted on the result; they are
// part of the sale's always-copied attribute set and must survive every
// recomposition between draft and sync.
func CalculateTotals(sale models.OfflineSale) models.OfflineSale {
	var gross float64
	for _, item := range sale.Items {
		gross += item.UnitPrice * item.Quantity
	}

	total := gross
	switch sale.DiscountType {
	case models.DiscountPercentage:
		total = gross - gross*(sale.DiscountAmount/100)
	case models.DiscountFixed:
		total = gross - sale.DiscountAmount
	}
	if total < 0 {
		total = 0
	}

	var paid float64
	for _, p := range sale.Payments {
		paid += p.Amount
	}

	result := sale
	result.TotalAmount = total
	result.PaidAmount = paid
	result.DiscountAmount = sale.DiscountAmount
	result.DiscountType = sale.DiscountType
	return result
}
