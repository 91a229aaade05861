package domain

import "time"

type Metal string

const (
	MetalGold     Metal = "gold"
	MetalSilver   Metal = "silver"
	MetalDiamond  Metal = "diamond"
	MetalPlatinum Metal = "platinum"
	MetalOther    Metal = "other"
)

func (m Metal) Valid() bool {
	switch m {
	case MetalGold, MetalSilver, MetalDiamond, MetalPlatinum, MetalOther:
		return true
	default:
		return false
	}
}

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
	PaymentStatusPending = "pending"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodUPI    = "upi"
	PaymentMethodMixed  = "mixed"
	PaymentMethodCredit = "credit"
)

const (
	CreditEntryCredit  = "credit"
	CreditEntryPayment = "payment"
)

// All monetary amounts are in paise (int64 minor units). Metal rates are
// paise per gram; item weights are grams.

type InventoryItem struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Metal          Metal     `json:"metal"`
	Quantity       int       `json:"quantity"`
	WeightPerPiece float64   `json:"weight_per_piece_grams"`
	TotalWeight    float64   `json:"total_weight_grams"`
	MinStockLevel  int       `json:"min_stock_level"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type InventoryItemCreateRequest struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Metal          Metal   `json:"metal"`
	Quantity       int     `json:"quantity"`
	WeightPerPiece float64 `json:"weight_per_piece_grams"`
	MinStockLevel  int     `json:"min_stock_level"`
}

type InventoryAdjustRequest struct {
	Quantity *int `json:"quantity,omitempty"`
	// DeltaQuantity applies a relative adjustment when Quantity is absent.
	DeltaQuantity *int `json:"delta_quantity,omitempty"`
}

type DailyPrice struct {
	Metal        Metal     `json:"metal"`
	Date         time.Time `json:"date"`
	PricePerGram int64     `json:"price_per_gram_paise"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SetPriceRequest struct {
	Metal        Metal  `json:"metal"`
	PricePerGram int64  `json:"price_per_gram_paise"`
	Date         string `json:"date,omitempty"`
}

type Customer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address,omitempty"`
	TotalPurchases int64     `json:"total_purchases_paise"`
	TotalCredit    int64     `json:"total_credit_paise"`
	CreditLimit    int64     `json:"credit_limit_paise"`
	CreatedAt      time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	CreditLimit int64  `json:"credit_limit_paise"`
}

type CreditTransaction struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Type       string `json:"type"`
	Amount     int64  `json:"amount_paise"`
	// BalanceAfter is an informational snapshot; the authoritative balance
	// is always recomputed from the full ledger.
	BalanceAfter int64      `json:"balance_after_paise"`
	SaleID       string     `json:"sale_id,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type CreditPaymentRequest struct {
	Amount int64  `json:"amount_paise"`
	Method string `json:"method"`
	Note   string `json:"note"`
}

type SaleItem struct {
	InventoryItemID string  `json:"inventory_item_id,omitempty"`
	Custom          bool    `json:"custom"`
	Name            string  `json:"name"`
	Metal           Metal   `json:"metal"`
	Quantity        int     `json:"quantity"`
	WeightGrams     float64 `json:"weight_grams"`
	PricePerGram    int64   `json:"price_per_gram_paise"`
	MetalValue      int64   `json:"metal_value_paise"`
	MakingCharges   int64   `json:"making_charges_paise"`
	Wastage         int64   `json:"wastage_paise"`
	LineTotal       int64   `json:"line_total_paise"`
}

type Sale struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customer_id,omitempty"`
	CustomerDetached  bool       `json:"customer_detached,omitempty"`
	Items             []SaleItem `json:"items"`
	Subtotal          int64      `json:"subtotal_paise"`
	TaxAmount         int64      `json:"tax_amount_paise"`
	GrandTotal        int64      `json:"grand_total_paise"`
	PaymentMethod     string     `json:"payment_method"`
	PaymentStatus     string     `json:"payment_status"`
	CashReceived      int64      `json:"cash_received_paise"`
	CardOrUPIReceived int64      `json:"card_upi_received_paise"`
	CreditAmount      int64      `json:"credit_amount_paise"`
	ChangeDue         int64      `json:"change_due_paise"`
	ReceiptNumber     string     `json:"receipt_number"`
	CreatedAt         time.Time  `json:"created_at"`
}

// SaleLineRequest is one requested line item: either a stock-backed line
// referencing an inventory item, or a custom/commission piece priced by
// weight alone.
type SaleLineRequest struct {
	InventoryItemID string  `json:"inventory_item_id,omitempty"`
	Quantity        int     `json:"quantity,omitempty"`
	Custom          bool    `json:"custom,omitempty"`
	Name            string  `json:"name,omitempty"`
	Metal           Metal   `json:"metal,omitempty"`
	WeightGrams     float64 `json:"weight_grams,omitempty"`
}

type SaleRequest struct {
	CustomerID        string            `json:"customer_id,omitempty"`
	Lines             []SaleLineRequest `json:"lines"`
	MakingChargePct   float64           `json:"making_charge_pct"`
	WastagePct        float64           `json:"wastage_pct"`
	TaxPct            float64           `json:"tax_pct"`
	AdditionalCharges int64             `json:"additional_charges_paise"`
	PaymentMethod     string            `json:"payment_method"`
	CashReceived      int64             `json:"cash_received_paise"`
	CardOrUPIReceived int64             `json:"card_upi_received_paise"`
	CreditDueDate     string            `json:"credit_due_date,omitempty"`
}

type CustomerStatement struct {
	Customer Customer            `json:"customer"`
	Entries  []CreditTransaction `json:"entries"`
	Balance  int64               `json:"balance_paise"`
}

type DailySalesSummary struct {
	Date              string `json:"date"`
	Sales             int64  `json:"sales"`
	Revenue           int64  `json:"revenue_paise"`
	TaxCollected      int64  `json:"tax_collected_paise"`
	CreditBooked      int64  `json:"credit_booked_paise"`
	CashReceived      int64  `json:"cash_received_paise"`
	CardOrUPIReceived int64  `json:"card_upi_received_paise"`
}

type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}
