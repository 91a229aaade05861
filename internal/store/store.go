package store

import (
	"context"
	"errors"
	"time"

	"sonara/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidLineItem    = errors.New("invalid line item")
	ErrEmptySale          = errors.New("empty sale")
	ErrTxConflict         = errors.New("transaction conflict")
	ErrTimeout            = errors.New("operation timed out")
	ErrPricingUnavailable = errors.New("pricing unavailable")
)

// Tx is the transactional view a single sale (or ledger mutation) runs
// against. All reads must be issued before the first write; both backends
// validate the read set at commit time and fail the whole unit with
// ErrTxConflict when another transaction touched it first.
type Tx interface {
	// Reads.
	GetDailyPriceOnOrBefore(ctx context.Context, metal domain.Metal, date time.Time) (*domain.DailyPrice, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	AllocateReceiptNumber(ctx context.Context, day time.Time) (string, error)

	// Writes. DecrementInventory re-checks quantity against the requested
	// amount inside the transaction and fails with ErrInsufficientStock
	// rather than clamping.
	InsertSale(ctx context.Context, sale domain.Sale) error
	DecrementInventory(ctx context.Context, itemID string, qty int) error
	AppendCreditEntry(ctx context.Context, entry domain.CreditTransaction) error
	// RefreshCustomerAggregate recomputes totalPurchases and totalCredit
	// from the sale history and credit ledger (including writes buffered in
	// this transaction) and stores both in one update.
	RefreshCustomerAggregate(ctx context.Context, customerID string) (*domain.Customer, error)
}

type Repository interface {
	// Inventory catalog.
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error)
	SetInventoryQuantity(ctx context.Context, id string, qty int) (*domain.InventoryItem, error)
	ListLowStock(ctx context.Context) ([]domain.InventoryItem, error)

	// Daily metal prices.
	UpsertDailyPrice(ctx context.Context, price domain.DailyPrice) error
	GetDailyPriceOnOrBefore(ctx context.Context, metal domain.Metal, date time.Time) (*domain.DailyPrice, error)

	// Customers.
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	// DeleteCustomer detaches the customer's sales (preserving the sale
	// history with customer_detached set) before removing the customer.
	DeleteCustomer(ctx context.Context, id string) error
	RecomputeCustomerAggregate(ctx context.Context, customerID string) (*domain.Customer, error)

	// Credit ledger (append-only; appends go through RunTx).
	ListCreditEntries(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error)

	// RunTx executes fn inside one atomic transaction. A conflict detected
	// at commit surfaces as ErrTxConflict; the caller owns retries.
	RunTx(ctx context.Context, fn func(tx Tx) error) error

	// Sales.
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	GetSaleByReceipt(ctx context.Context, receiptNumber string) (*domain.Sale, error)
	ListSalesByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Sale, error)
	GetDailySalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesSummary, error)
}
