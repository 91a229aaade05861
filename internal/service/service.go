package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"sonara/backend/internal/cache"
	"sonara/backend/internal/domain"
	"sonara/backend/internal/pricing"
	"sonara/backend/internal/store"
	"sonara/backend/internal/xid"
)

// maxSaleAttempts bounds automatic retries of a sale transaction that lost
// an optimistic-conflict race. Exhausting the bound surfaces
// store.ErrTxConflict to the caller, who may resubmit.
const maxSaleAttempts = 5

const retryBaseBackoff = 10 * time.Millisecond

type Service struct {
	repo       store.Repository
	priceCache cache.PriceCache
	priceTTL   time.Duration
}

func New(repo store.Repository, priceCache cache.PriceCache, priceTTL time.Duration) *Service {
	if priceCache == nil {
		priceCache = cache.NoopPriceCache{}
	}
	if priceTTL <= 0 {
		priceTTL = 5 * time.Minute
	}
	return &Service{
		repo:       repo,
		priceCache: priceCache,
		priceTTL:   priceTTL,
	}
}

// SetDailyPrice upserts the per-gram rate for one metal and day. Repeated
// calls for the same day overwrite in place; the next day's record
// supersedes it for later lookups.
func (s *Service) SetDailyPrice(ctx context.Context, req domain.SetPriceRequest) (domain.DailyPrice, error) {
	if !req.Metal.Valid() {
		return domain.DailyPrice{}, fmt.Errorf("%w: unknown metal %q", store.ErrInvalidInput, req.Metal)
	}
	if req.PricePerGram < 1 {
		return domain.DailyPrice{}, fmt.Errorf("%w: price per gram must be positive", store.ErrInvalidInput)
	}

	day, err := parseDay(req.Date, time.Now().UTC())
	if err != nil {
		return domain.DailyPrice{}, err
	}

	price := domain.DailyPrice{Metal: req.Metal, Date: day, PricePerGram: req.PricePerGram}
	if err := s.repo.UpsertDailyPrice(ctx, price); err != nil {
		return domain.DailyPrice{}, err
	}

	if err := s.priceCache.Delete(ctx, priceCacheKey(req.Metal, day)); err != nil {
		log.Printf("[service] WARN: failed to invalidate price cache metal=%s: %v", req.Metal, err)
	}

	return price, nil
}

// GetDailyPrice resolves the rate for a metal as of a date: the record for
// that day, else the most recent earlier record, else the built-in default.
// Absence of data is never an error.
func (s *Service) GetDailyPrice(ctx context.Context, metal domain.Metal, date string) (domain.DailyPrice, error) {
	if !metal.Valid() {
		return domain.DailyPrice{}, fmt.Errorf("%w: unknown metal %q", store.ErrInvalidInput, metal)
	}
	day, err := parseDay(date, time.Now().UTC())
	if err != nil {
		return domain.DailyPrice{}, err
	}

	key := priceCacheKey(metal, day)
	if cached, ok, err := s.priceCache.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: price cache read failed metal=%s: %v", metal, err)
	} else if ok {
		return *cached, nil
	}

	price, err := s.repo.GetDailyPriceOnOrBefore(ctx, metal, day)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.DailyPrice{}, err
		}
		price = &domain.DailyPrice{Metal: metal, Date: day, PricePerGram: pricing.DefaultRate(metal)}
	}

	if err := s.priceCache.Set(ctx, key, price, s.priceTTL); err != nil {
		log.Printf("[service] WARN: price cache write failed metal=%s: %v", metal, err)
	}

	return *price, nil
}

// SubmitSale runs one sale as a single atomic unit: price the lines against
// current rates, decrement stock, book any unpaid balance on the credit
// ledger, and refresh the customer's running totals. Either everything
// commits or nothing does. Conflicting concurrent sales are retried from
// the read phase up to maxSaleAttempts times.
func (s *Service) SubmitSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	if err := validateSaleRequest(&req); err != nil {
		return nil, err
	}

	var sale *domain.Sale
	for attempt := 1; attempt <= maxSaleAttempts; attempt++ {
		var err error
		sale, err = s.trySale(ctx, req)
		if err == nil {
			return sale, nil
		}
		if !errors.Is(err, store.ErrTxConflict) {
			return nil, mapContextError(ctx, err)
		}
		if attempt == maxSaleAttempts {
			break
		}
		if err := sleepWithJitter(ctx, attempt); err != nil {
			return nil, mapContextError(ctx, err)
		}
	}
	return nil, fmt.Errorf("%w: sale aborted after %d attempts", store.ErrTxConflict, maxSaleAttempts)
}

// trySale is one attempt at the three-phase protocol: reads, pure
// computation, writes. Strictly in that order, inside one transaction.
func (s *Service) trySale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	now := time.Now().UTC()
	var result *domain.Sale

	err := s.repo.RunTx(ctx, func(tx store.Tx) error {
		// Phase 1: reads. Inventory state first (it carries the metal for
		// stock-backed lines), then the rates those metals need, then the
		// customer snapshot. No writes may happen yet.
		type resolvedStock struct {
			item *domain.InventoryItem
			qty  int
		}
		stockLines := make([]resolvedStock, 0, len(req.Lines))
		metals := make(map[domain.Metal]struct{}, 2)
		lines := make([]pricing.ResolvedLine, 0, len(req.Lines))

		for _, line := range req.Lines {
			if line.Custom {
				metals[line.Metal] = struct{}{}
				continue
			}
			item, err := tx.GetInventoryItem(ctx, line.InventoryItemID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: inventory item %s", store.ErrNotFound, line.InventoryItemID)
				}
				return err
			}
			if item.Quantity < line.Quantity {
				return fmt.Errorf("%w: item %s has %d, requested %d",
					store.ErrInsufficientStock, item.ID, item.Quantity, line.Quantity)
			}
			stockLines = append(stockLines, resolvedStock{item: item, qty: line.Quantity})
			metals[item.Metal] = struct{}{}
		}

		rates := make(map[domain.Metal]int64, len(metals))
		for metal := range metals {
			price, err := tx.GetDailyPriceOnOrBefore(ctx, metal, now)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					return err
				}
				rates[metal] = pricing.DefaultRate(metal)
				continue
			}
			rates[metal] = price.PricePerGram
		}

		var customer *domain.Customer
		if req.CustomerID != "" {
			var err error
			customer, err = tx.GetCustomer(ctx, req.CustomerID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: customer %s", store.ErrNotFound, req.CustomerID)
				}
				return err
			}
		}

		receiptNumber, err := tx.AllocateReceiptNumber(ctx, now)
		if err != nil {
			return err
		}

		// Phase 2: pure computation, no I/O.
		stockIdx := 0
		for _, line := range req.Lines {
			if line.Custom {
				lines = append(lines, pricing.ResolvedLine{
					Custom:       true,
					Name:         line.Name,
					Metal:        line.Metal,
					Quantity:     1,
					WeightGrams:  line.WeightGrams,
					PricePerGram: rates[line.Metal],
				})
				continue
			}
			stock := stockLines[stockIdx]
			stockIdx++
			lines = append(lines, pricing.ResolvedLine{
				InventoryItemID: stock.item.ID,
				Name:            stock.item.Name,
				Metal:           stock.item.Metal,
				Quantity:        stock.qty,
				WeightGrams:     stock.item.WeightPerPiece,
				PricePerGram:    rates[stock.item.Metal],
			})
		}

		quote := pricing.Compute(lines, req.MakingChargePct, req.WastagePct, req.TaxPct,
			req.AdditionalCharges, req.CashReceived, req.CardOrUPIReceived, req.PaymentMethod)

		sale := domain.Sale{
			ID:                xid.New("sale"),
			CustomerID:        req.CustomerID,
			Items:             quote.Items,
			Subtotal:          quote.Subtotal,
			TaxAmount:         quote.TaxAmount,
			GrandTotal:        quote.GrandTotal,
			PaymentMethod:     req.PaymentMethod,
			PaymentStatus:     quote.PaymentStatus,
			CashReceived:      req.CashReceived,
			CardOrUPIReceived: req.CardOrUPIReceived,
			CreditAmount:      quote.CreditAmount,
			ChangeDue:         quote.ChangeDue,
			ReceiptNumber:     receiptNumber,
			CreatedAt:         now,
		}

		// Phase 3: writes, all inside the same transaction.
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		for _, stock := range stockLines {
			if err := tx.DecrementInventory(ctx, stock.item.ID, stock.qty); err != nil {
				return err
			}
		}
		if quote.CreditAmount > 0 && customer != nil {
			entry := domain.CreditTransaction{
				ID:           xid.New("crtx"),
				CustomerID:   customer.ID,
				Type:         domain.CreditEntryCredit,
				Amount:       quote.CreditAmount,
				BalanceAfter: customer.TotalCredit + quote.CreditAmount,
				SaleID:       sale.ID,
				CreatedAt:    now,
			}
			if req.CreditDueDate != "" {
				due, err := parseDay(req.CreditDueDate, now)
				if err != nil {
					return err
				}
				entry.DueDate = &due
			}
			if err := tx.AppendCreditEntry(ctx, entry); err != nil {
				return err
			}
		}
		if customer != nil {
			if _, err := tx.RefreshCustomerAggregate(ctx, customer.ID); err != nil {
				return err
			}
		}

		result = &sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	if id == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetSale(ctx, id)
}

func (s *Service) GetSaleByReceipt(ctx context.Context, receiptNumber string) (*domain.Sale, error) {
	if receiptNumber == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetSaleByReceipt(ctx, receiptNumber)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
	}
	if req.CreditLimit < 0 {
		return domain.Customer{}, fmt.Errorf("%w: credit limit must not be negative", store.ErrInvalidInput)
	}

	customer := domain.Customer{
		ID:          xid.New("cust"),
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     strings.TrimSpace(req.Address),
		CreditLimit: req.CreditLimit,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// DeleteCustomer removes the customer while preserving their sale history:
// sales are detached (customer reference cleared and flagged), never
// deleted. Detached sales take no further part in aggregate updates.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteCustomer(ctx, id)
}

// RecomputeCustomer rebuilds both running totals from the sale history and
// credit ledger. Idempotent; always converges to the ledgers' true state.
func (s *Service) RecomputeCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	if customerID == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}
	customer, err := s.repo.RecomputeCustomerAggregate(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// RecordCreditPayment appends a payment entry to the customer's ledger and
// refreshes the aggregate, atomically.
func (s *Service) RecordCreditPayment(ctx context.Context, customerID string, req domain.CreditPaymentRequest) (domain.Customer, error) {
	if customerID == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}
	if req.Amount < 1 {
		return domain.Customer{}, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInput)
	}

	var refreshed *domain.Customer
	run := func() error {
		return s.repo.RunTx(ctx, func(tx store.Tx) error {
			customer, err := tx.GetCustomer(ctx, customerID)
			if err != nil {
				return err
			}
			entry := domain.CreditTransaction{
				ID:           xid.New("crtx"),
				CustomerID:   customer.ID,
				Type:         domain.CreditEntryPayment,
				Amount:       req.Amount,
				BalanceAfter: customer.TotalCredit - req.Amount,
				Note:         strings.TrimSpace(req.Note),
				CreatedAt:    time.Now().UTC(),
			}
			if err := tx.AppendCreditEntry(ctx, entry); err != nil {
				return err
			}
			refreshed, err = tx.RefreshCustomerAggregate(ctx, customer.ID)
			return err
		})
	}

	var err error
	for attempt := 1; attempt <= maxSaleAttempts; attempt++ {
		if err = run(); err == nil {
			return *refreshed, nil
		}
		if !errors.Is(err, store.ErrTxConflict) {
			return domain.Customer{}, mapContextError(ctx, err)
		}
		if attempt < maxSaleAttempts {
			if serr := sleepWithJitter(ctx, attempt); serr != nil {
				return domain.Customer{}, mapContextError(ctx, serr)
			}
		}
	}
	return domain.Customer{}, fmt.Errorf("%w: payment aborted after %d attempts", store.ErrTxConflict, maxSaleAttempts)
}

func (s *Service) ListCustomerSales(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	if customerID == "" {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSalesByCustomer(ctx, customerID, limit)
}

// CustomerStatement returns the ledger entries plus the recomputed balance.
// The balance comes from summing the entries, not from the stored
// aggregate, so a drifted aggregate never hides in a statement.
func (s *Service) CustomerStatement(ctx context.Context, customerID string) (domain.CustomerStatement, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.CustomerStatement{}, err
	}
	entries, err := s.repo.ListCreditEntries(ctx, customerID, 10000)
	if err != nil {
		return domain.CustomerStatement{}, err
	}

	var balance int64
	for _, entry := range entries {
		switch entry.Type {
		case domain.CreditEntryCredit:
			balance += entry.Amount
		case domain.CreditEntryPayment:
			balance -= entry.Amount
		}
	}

	return domain.CustomerStatement{
		Customer: *customer,
		Entries:  entries,
		Balance:  balance,
	}, nil
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryItemCreateRequest) (domain.InventoryItem, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || !req.Metal.Valid() {
		return domain.InventoryItem{}, fmt.Errorf("%w: name and metal are required", store.ErrInvalidInput)
	}
	if req.Quantity < 0 || req.WeightPerPiece < 0 || req.MinStockLevel < 0 {
		return domain.InventoryItem{}, store.ErrInvalidInput
	}

	item := domain.InventoryItem{
		ID:             xid.New("item"),
		Name:           req.Name,
		Category:       req.Category,
		Metal:          req.Metal,
		Quantity:       req.Quantity,
		WeightPerPiece: req.WeightPerPiece,
		MinStockLevel:  req.MinStockLevel,
	}
	created, err := s.repo.CreateInventoryItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *created, nil
}

func (s *Service) GetInventoryItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	item, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *item, nil
}

func (s *Service) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.repo.ListInventoryItems(ctx)
}

// AdjustInventory applies a manual stock correction. Total weight is always
// re-derived from quantity x weight per piece, never edited directly.
func (s *Service) AdjustInventory(ctx context.Context, id string, req domain.InventoryAdjustRequest) (domain.InventoryItem, error) {
	if id == "" {
		return domain.InventoryItem{}, store.ErrInvalidInput
	}

	var target int
	switch {
	case req.Quantity != nil:
		target = *req.Quantity
	case req.DeltaQuantity != nil:
		item, err := s.repo.GetInventoryItem(ctx, id)
		if err != nil {
			return domain.InventoryItem{}, err
		}
		target = item.Quantity + *req.DeltaQuantity
	default:
		return domain.InventoryItem{}, fmt.Errorf("%w: quantity or delta_quantity required", store.ErrInvalidInput)
	}
	if target < 0 {
		return domain.InventoryItem{}, fmt.Errorf("%w: quantity must not go negative", store.ErrInvalidInput)
	}

	updated, err := s.repo.SetInventoryQuantity(ctx, id, target)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *updated, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) DailySalesSummary(ctx context.Context, date string) (domain.DailySalesSummary, error) {
	day, err := parseDay(date, time.Now().UTC())
	if err != nil {
		return domain.DailySalesSummary{}, err
	}
	return s.repo.GetDailySalesSummary(ctx, day, day.Add(24*time.Hour))
}

func validateSaleRequest(req *domain.SaleRequest) error {
	if len(req.Lines) == 0 {
		return store.ErrEmptySale
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return fmt.Errorf("%w: payment method %q", store.ErrInvalidInput, req.PaymentMethod)
	}
	if req.MakingChargePct < 0 || req.WastagePct < 0 || req.TaxPct < 0 || req.TaxPct > 100 {
		return fmt.Errorf("%w: percentage out of range", store.ErrInvalidInput)
	}
	if req.AdditionalCharges < 0 || req.CashReceived < 0 || req.CardOrUPIReceived < 0 {
		return fmt.Errorf("%w: amounts must not be negative", store.ErrInvalidInput)
	}
	if req.PaymentMethod == domain.PaymentMethodCredit {
		// Whole-amount credit. Tendered amounts are ignored, not partially
		// applied, so the stored sale shows received as zero.
		req.CashReceived = 0
		req.CardOrUPIReceived = 0
	}

	for i, line := range req.Lines {
		if line.Custom {
			if line.InventoryItemID != "" {
				return fmt.Errorf("%w: line %d is both custom and stock-backed", store.ErrInvalidLineItem, i)
			}
			if !line.Metal.Valid() {
				return fmt.Errorf("%w: line %d has unknown metal %q", store.ErrInvalidLineItem, i, line.Metal)
			}
			if line.WeightGrams <= 0 {
				return fmt.Errorf("%w: line %d weight must be positive", store.ErrInvalidLineItem, i)
			}
			continue
		}
		if line.InventoryItemID == "" {
			return fmt.Errorf("%w: line %d has no inventory item", store.ErrInvalidLineItem, i)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be positive", store.ErrInvalidLineItem, i)
		}
	}
	return nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodUPI,
		domain.PaymentMethodMixed, domain.PaymentMethodCredit:
		return true
	default:
		return false
	}
}

func sleepWithJitter(ctx context.Context, attempt int) error {
	backoff := retryBaseBackoff << uint(attempt-1)
	backoff += time.Duration(rand.Int63n(int64(retryBaseBackoff)))
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func mapContextError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrTimeout, err)
	}
	return err
}

func parseDay(value string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		u := fallback.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	return parsed.UTC(), nil
}

func priceCacheKey(metal domain.Metal, day time.Time) string {
	return "price:" + string(metal) + ":" + day.Format("2006-01-02")
}
