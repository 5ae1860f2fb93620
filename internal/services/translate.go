package services

import (
	"example.com/retailpos/terminal/internal/models"
)

// TranslateSale converts an offline sale into the backend's create-sale
// wire shape. Items recorded in stocking units are converted to sellable
// units using the product's units-per-stocking-unit factor, which keeps
// the line value unchanged (qty × factor at price ÷ factor). Only
// payments with a positive amount are included and all dates are
// normalized to YYYY-MM-DD.
func TranslateSale(sale *models.OfflineSale, factorFor func(productID int64) float64) *models.SaleCreateRequest {
	req := &models.SaleCreateRequest{
		TempID:         sale.TempID,
		ClientID:       sale.ClientID,
		ShiftID:        sale.ShiftID,
		UserID:         sale.UserID,
		SaleDate:       sale.SaleDate.Format(models.DateLayout),
		Status:         string(sale.Status),
		DiscountAmount: sale.DiscountAmount,
		DiscountType:   string(sale.DiscountType),
		Items:          make([]models.SaleCreateItem, 0, len(sale.Items)),
		Payments:       make([]models.SaleCreatePayment, 0, len(sale.Payments)),
	}

	for _, item := range sale.Items {
		quantity := item.Quantity
		unitPrice := item.UnitPrice
		if item.UnitType == models.UnitStocking {
			factor := factorFor(item.ProductID)
			if factor <= 0 {
				factor = 1
			}
			quantity = item.Quantity * factor
			unitPrice = item.UnitPrice / factor
		}
		req.Items = append(req.Items, models.SaleCreateItem{
			ProductID:      item.ProductID,
			PurchaseItemID: item.PurchaseItemID,
			Quantity:       quantity,
			UnitPrice:      unitPrice,
		})
	}

	for _, p := range sale.Payments {
		if p.Amount <= 0 {
			continue
		}
		req.Payments = append(req.Payments, models.SaleCreatePayment{
			ClientRef:       p.ClientRef,
			Method:          p.Method,
			Amount:          p.Amount,
			PaymentDate:     p.PaymentDate.Format(models.DateLayout),
			ReferenceNumber: p.ReferenceNumber,
			Notes:           p.Notes,
		})
	}

	return req
}
