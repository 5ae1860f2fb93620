package services

import (
	"time"

	"example.com/retailpos/terminal/internal/models"
)

// defaultPaymentMethod is used when neither the server nor the offline
// record carries a payment method.
const defaultPaymentMethod = "cash"

// MergeServerSale reconciles the backend's authoritative response with the
// locally held sale. The server wins for id, invoice number, sale order
// number and paid amount; items, discount and tempId are preserved from
// the offline record. The merged sale is marked synced.
func MergeServerSale(local *models.OfflineSale, server *models.ServerSale) *models.OfflineSale {
	merged := *local
	merged.Items = append([]models.OfflineSaleItem(nil), local.Items...)
	merged.ID = server.ID
	merged.InvoiceNumber = server.InvoiceNumber
	merged.SaleOrderNumber = server.SaleOrderNumber
	merged.PaidAmount = server.PaidAmount
	merged.Payments = mergePayments(local.Payments, server.Payments)
	merged.IsSynced = true
	merged.UpdatedAt = time.Now()
	return &merged
}

// mergePayments combines the server's payment list with the offline one.
// The backend is known to omit the payment method on returned records, so
// each server payment is matched against an offline record (by client
// reference first, then by amount and date) and missing fields are
// backfilled from the match. If the server returned no payments at all
// the offline list is kept verbatim rather than discarding recorded
// tenders.
func mergePayments(local []models.Payment, server []models.ServerPayment) []models.Payment {
	if len(server) == 0 {
		merged := make([]models.Payment, len(local))
		for i, p := range local {
			if p.Method == "" {
				p.Method = defaultPaymentMethod
			}
			merged[i] = p
		}
		return merged
	}

	used := make([]bool, len(local))
	merged := make([]models.Payment, 0, len(server))
	for _, sp := range server {
		p := models.Payment{
			ID:              sp.ID,
			ClientRef:       sp.ClientRef,
			Method:          sp.Method,
			Amount:          sp.Amount,
			ReferenceNumber: sp.ReferenceNumber,
			Notes:           sp.Notes,
		}
		if t, err := time.Parse(models.DateLayout, sp.PaymentDate); err == nil {
			p.PaymentDate = t
		}

		if match := matchOfflinePayment(local, used, sp); match != nil {
			if p.ClientRef == "" {
				p.ClientRef = match.ClientRef
			}
			if p.Method == "" {
				p.Method = match.Method
			}
			if p.PaymentDate.IsZero() {
				p.PaymentDate = match.PaymentDate
			}
			if p.ReferenceNumber == "" {
				p.ReferenceNumber = match.ReferenceNumber
			}
			if p.Notes == "" {
				p.Notes = match.Notes
			}
		}
		if p.Method == "" {
			p.Method = defaultPaymentMethod
		}
		merged = append(merged, p)
	}
	return merged
}

// matchOfflinePayment finds the offline record for a server payment. Each
// offline record matches at most once, so two equal tenders on the same
// day cannot both resolve to the same record.
func matchOfflinePayment(local []models.Payment, used []bool, sp models.ServerPayment) *models.Payment {
	if sp.ClientRef != "" {
		for i := range local {
			if !used[i] && local[i].ClientRef == sp.ClientRef {
				used[i] = true
				return &local[i]
			}
		}
	}
	for i := range local {
		if !used[i] && local[i].Amount == sp.Amount && local[i].DateKey() == sp.PaymentDate {
			used[i] = true
			return &local[i]
		}
	}
	return nil
}
