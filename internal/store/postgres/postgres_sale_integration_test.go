package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"sonara/backend/internal/domain"
	"sonara/backend/internal/store"
)

func TestSaleTransactionCommitsAtomically(t *testing.T) {
	databaseURL := os.Getenv("SONARA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SONARA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	itemID := fmt.Sprintf("item-sale-it-%d", stamp)
	customerID := fmt.Sprintf("cust-sale-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM credit_transactions WHERE customer_id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, itemID)
	})

	if _, err := s.CreateInventoryItem(ctx, domain.InventoryItem{
		ID: itemID, Name: "IT Gold Ring", Category: "ring",
		Metal: domain.MetalGold, Quantity: 5, WeightPerPiece: 10,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if _, err := s.CreateCustomer(ctx, domain.Customer{ID: customerID, Name: "IT Customer"}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	now := time.Now().UTC()
	err = s.RunTx(ctx, func(tx store.Tx) error {
		item, err := tx.GetInventoryItem(ctx, itemID)
		if err != nil {
			return err
		}
		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		receipt, err := tx.AllocateReceiptNumber(ctx, now)
		if err != nil {
			return err
		}

		sale := domain.Sale{
			ID:            saleID,
			CustomerID:    customer.ID,
			Subtotal:      9200000,
			GrandTotal:    9200000,
			PaymentMethod: domain.PaymentMethodCash,
			PaymentStatus: domain.PaymentStatusPartial,
			CashReceived:  5000000,
			CreditAmount:  4200000,
			ReceiptNumber: receipt,
			CreatedAt:     now,
			Items: []domain.SaleItem{
				{InventoryItemID: item.ID, Name: item.Name, Metal: item.Metal,
					Quantity: 1, WeightGrams: 10, PricePerGram: 920000,
					MetalValue: 9200000, LineTotal: 9200000},
			},
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.DecrementInventory(ctx, item.ID, 1); err != nil {
			return err
		}
		if err := tx.AppendCreditEntry(ctx, domain.CreditTransaction{
			CustomerID: customer.ID, Type: domain.CreditEntryCredit,
			Amount: 4200000, SaleID: sale.ID, CreatedAt: now,
		}); err != nil {
			return err
		}
		_, err = tx.RefreshCustomerAggregate(ctx, customer.ID)
		return err
	})
	if err != nil {
		t.Fatalf("sale tx: %v", err)
	}

	item, err := s.GetInventoryItem(ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", item.Quantity)
	}
	if item.TotalWeight != 40 {
		t.Fatalf("total weight = %v, want 40", item.TotalWeight)
	}

	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TotalPurchases != 9200000 {
		t.Fatalf("total purchases = %d, want 9200000", customer.TotalPurchases)
	}
	if customer.TotalCredit != 4200000 {
		t.Fatalf("total credit = %d, want 4200000", customer.TotalCredit)
	}

	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("sale items = %d, want 1", len(sale.Items))
	}
}

func TestDecrementPastZeroFailsTransaction(t *testing.T) {
	databaseURL := os.Getenv("SONARA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SONARA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	itemID := fmt.Sprintf("item-oversell-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, itemID)
	})

	if _, err := s.CreateInventoryItem(ctx, domain.InventoryItem{
		ID: itemID, Name: "IT Oversell Ring", Category: "ring",
		Metal: domain.MetalGold, Quantity: 1, WeightPerPiece: 5,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	err = s.RunTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetInventoryItem(ctx, itemID); err != nil {
			return err
		}
		return tx.DecrementInventory(ctx, itemID, 2)
	})
	if err == nil {
		t.Fatalf("expected oversell to fail")
	}

	item, err := s.GetInventoryItem(ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1 (untouched)", item.Quantity)
	}
}
