package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for all dates exchanged with the backend.
const DateLayout = "2006-01-02"

// SaleStatus represents the lifecycle state of an offline sale
type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "draft"
	SaleStatusCompleted SaleStatus = "completed"
)

// DiscountType represents how a sale discount is applied
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// UnitType represents the measurement granularity of a sale item
type UnitType string

const (
	UnitSellable UnitType = "sellable"
	UnitStocking UnitType = "stocking"
)

// OfflineSale is the client-side sale aggregate, synced or not.
// TempID is generated locally and permanently identifies the sale;
// ID stays zero until the backend assigns one during sync.
type OfflineSale struct {
	TempID          string            `json:"temp_id"`
	ID              int64             `json:"id"`
	IsSynced        bool              `json:"is_synced"`
	Status          SaleStatus        `json:"status"`
	ShiftID         int64             `json:"shift_id"`
	UserID          int64             `json:"user_id"`
	ClientID        *int64            `json:"client_id"`
	SaleDate        time.Time         `json:"sale_date"`
	InvoiceNumber   string            `json:"invoice_number"`
	SaleOrderNumber string            `json:"sale_order_number"`
	Items           []OfflineSaleItem `json:"items"`
	Payments        []Payment         `json:"payments"`
	TotalAmount     float64           `json:"total_amount"`
	PaidAmount      float64           `json:"paid_amount"`
	DiscountAmount  float64           `json:"discount_amount"`
	DiscountType    DiscountType      `json:"discount_type"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// AddItem appends a line item to the sale
func (s *OfflineSale) AddItem(item OfflineSaleItem) {
	if item.UnitType == "" {
		item.UnitType = UnitSellable
	}
	s.Items = append(s.Items, item)
}

// AddPayment appends a tender to the sale, assigning a client-side
// reference so the record can be matched exactly after sync.
func (s *OfflineSale) AddPayment(p Payment) {
	if p.ClientRef == "" {
		p.ClientRef = uuid.New().String()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	s.Payments = append(s.Payments, p)
}

// SetDiscount sets the sale discount
func (s *OfflineSale) SetDiscount(amount float64, discountType DiscountType) {
	s.DiscountAmount = amount
	s.DiscountType = discountType
}

// ProductIDs returns the distinct product ids referenced by the sale's items
func (s *OfflineSale) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(s.Items))
	ids := make([]int64, 0, len(s.Items))
	for _, item := range s.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// OfflineSaleItem is one line item of an offline sale. Quantity and
// UnitPrice are expressed in the item's UnitType; conversion to sellable
// units happens only when the sale is translated for the backend.
type OfflineSaleItem struct {
	ProductID      int64    `json:"product_id"`
	ProductName    string   `json:"product_name"`
	Quantity       float64  `json:"quantity"`
	UnitPrice      float64  `json:"unit_price"`
	PurchaseItemID *int64   `json:"purchase_item_id"`
	UnitType       UnitType `json:"unit_type"`
}

// Payment is one tender applied to a sale. ClientRef is assigned on the
// terminal and carried end-to-end so the merge step can match the server's
// payment records exactly instead of guessing by amount and date.
type Payment struct {
	ID              int64     `json:"id"`
	ClientRef       string    `json:"client_ref"`
	Method          string    `json:"method"`
	Amount          float64   `json:"amount"`
	PaymentDate     time.Time `json:"payment_date"`
	ReferenceNumber string    `json:"reference_number"`
	Notes           string    `json:"notes"`
}

// DateKey returns the payment date in wire format, used for the
// fallback payment match during merge.
func (p Payment) DateKey() string {
	return p.PaymentDate.Format(DateLayout)
}

// SyncActionType identifies the kind of queued work item
type SyncActionType string

const (
	// SyncActionCreateSale creates a completed offline sale on the backend
	SyncActionCreateSale SyncActionType = "CREATE_SALE"
)

// SyncAction is a durable queued unit of work representing one pending
// server mutation. It is a tagged variant: Type selects which payload
// field is populated, and the processor switches on it exhaustively.
type SyncAction struct {
	ID         uint64         `json:"id"`
	Type       SyncActionType `json:"type"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	CreateSale *OfflineSale   `json:"create_sale,omitempty"`
}

// NewCreateSaleAction builds a CREATE_SALE action holding a snapshot of
// the completed sale
func NewCreateSaleAction(sale *OfflineSale) *SyncAction {
	snapshot := *sale
	snapshot.Items = append([]OfflineSaleItem(nil), sale.Items...)
	snapshot.Payments = append([]Payment(nil), sale.Payments...)
	return &SyncAction{
		Type:       SyncActionCreateSale,
		EnqueuedAt: time.Now(),
		CreateSale: &snapshot,
	}
}

// SaleTempID returns the tempId of the sale this action refers to,
// or an empty string for action types that carry no sale.
func (a *SyncAction) SaleTempID() string {
	switch a.Type {
	case SyncActionCreateSale:
		if a.CreateSale != nil {
			return a.CreateSale.TempID
		}
	}
	return ""
}

// Product is the locally cached copy of a catalog product, used for
// offline search and pricing
type Product struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	SKU                  string    `json:"sku"`
	StockQuantity        float64   `json:"stock_quantity"`
	SalePrice            float64   `json:"sale_price"`
	UnitsPerStockingUnit float64   `json:"units_per_stocking_unit"`
	SellableUnitName     string    `json:"sellable_unit_name"`
	StockingUnitName     string    `json:"stocking_unit_name"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Client is the locally cached copy of a customer record
type Client struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// SaleCreateRequest is the backend's create-sale wire shape
type SaleCreateRequest struct {
	TempID         string              `json:"temp_id"`
	ClientID       *int64              `json:"client_id"`
	ShiftID        int64               `json:"shift_id"`
	UserID         int64               `json:"user_id"`
	SaleDate       string              `json:"sale_date"`
	Status         string              `json:"status"`
	DiscountAmount float64             `json:"discount_amount"`
	DiscountType   string              `json:"discount_type"`
	Items          []SaleCreateItem    `json:"items"`
	Payments       []SaleCreatePayment `json:"payments"`
}

// SaleCreateItem is one line item in the create-sale payload, always
// expressed in sellable units
type SaleCreateItem struct {
	ProductID      int64   `json:"product_id"`
	PurchaseItemID *int64  `json:"purchase_item_id"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
}

// SaleCreatePayment is one tender in the create-sale payload
type SaleCreatePayment struct {
	ClientRef       string  `json:"client_ref"`
	Method          string  `json:"method"`
	Amount          float64 `json:"amount"`
	PaymentDate     string  `json:"payment_date"`
	ReferenceNumber string  `json:"reference_number"`
	Notes           string  `json:"notes"`
}

// ServerSale is the canonical sale returned by the backend after creation
type ServerSale struct {
	ID              int64           `json:"id"`
	InvoiceNumber   string          `json:"invoice_number"`
	SaleOrderNumber string          `json:"sale_order_number"`
	PaidAmount      float64         `json:"paid_amount"`
	Payments        []ServerPayment `json:"payments"`
}

// ServerPayment is a payment record as returned by the backend. Method
// and ClientRef may be empty; the merge step backfills them from the
// offline records.
type ServerPayment struct {
	ID              int64   `json:"id"`
	ClientRef       string  `json:"client_ref"`
	Method          string  `json:"method"`
	Amount          float64 `json:"amount"`
	PaymentDate     string  `json:"payment_date"`
	ReferenceNumber string  `json:"reference_number"`
	Notes           string  `json:"notes"`
}

// ActionResult is the outcome of processing one sync action
type ActionResult struct {
	ActionID uint64 `json:"action_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// SyncReport is the outcome of one full queue processing pass
type SyncReport struct {
	Results         []ActionResult `json:"results"`
	UpdatedProducts []Product      `json:"updated_products"`
}
