package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sonara/backend/internal/domain"
	"sonara/backend/internal/store"
	"sonara/backend/internal/xid"
)

// Store is an in-memory repository with the same optimistic-transaction
// semantics as the SQL backend: RunTx captures the version of every entity
// it reads, buffers writes, and validates the read set under one critical
// section at commit. A version mismatch fails the whole unit with
// store.ErrTxConflict so the engine can retry from its read phase.
type Store struct {
	mu               sync.RWMutex
	items            map[string]domain.InventoryItem
	itemVersions     map[string]int64
	customers        map[string]domain.Customer
	customerVersions map[string]int64
	prices           map[string]domain.DailyPrice
	sales            map[string]domain.Sale
	salesByReceipt   map[string]string
	creditEntries    []domain.CreditTransaction
	receiptSeq       map[string]int64
}

func New() *Store {
	return &Store{
		items:            make(map[string]domain.InventoryItem),
		itemVersions:     make(map[string]int64),
		customers:        make(map[string]domain.Customer),
		customerVersions: make(map[string]int64),
		prices:           make(map[string]domain.DailyPrice),
		sales:            make(map[string]domain.Sale),
		salesByReceipt:   make(map[string]string),
		receiptSeq:       make(map[string]int64),
	}
}

// NewSeeded returns a store preloaded with a small jewelry catalog, today's
// metal rates, and a couple of customers for dev/demo mode.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	today := dayUTC(now)

	items := []domain.InventoryItem{
		{ID: "item-gold-ring-01", Name: "Gold Ring 22K", Category: "ring", Metal: domain.MetalGold, Quantity: 12, WeightPerPiece: 10, MinStockLevel: 3},
		{ID: "item-gold-chain-01", Name: "Gold Chain 22K", Category: "chain", Metal: domain.MetalGold, Quantity: 6, WeightPerPiece: 24.5, MinStockLevel: 2},
		{ID: "item-gold-bangle-01", Name: "Gold Bangle Pair", Category: "bangle", Metal: domain.MetalGold, Quantity: 4, WeightPerPiece: 32, MinStockLevel: 2},
		{ID: "item-silver-anklet-01", Name: "Silver Anklet", Category: "anklet", Metal: domain.MetalSilver, Quantity: 30, WeightPerPiece: 42, MinStockLevel: 8},
		{ID: "item-silver-coin-01", Name: "Silver Coin 10g", Category: "coin", Metal: domain.MetalSilver, Quantity: 80, WeightPerPiece: 10, MinStockLevel: 20},
		{ID: "item-plat-band-01", Name: "Platinum Band", Category: "ring", Metal: domain.MetalPlatinum, Quantity: 3, WeightPerPiece: 6.2, MinStockLevel: 1},
	}
	for _, item := range items {
		item.TotalWeight = float64(item.Quantity) * item.WeightPerPiece
		item.CreatedAt = now
		item.UpdatedAt = now
		s.items[item.ID] = item
		s.itemVersions[item.ID] = 1
	}

	for metal, rate := range map[domain.Metal]int64{
		domain.MetalGold:     920000,
		domain.MetalSilver:   11500,
		domain.MetalPlatinum: 310000,
	} {
		s.prices[priceKey(metal, today)] = domain.DailyPrice{Metal: metal, Date: today, PricePerGram: rate, UpdatedAt: now}
	}

	customers := []domain.Customer{
		{ID: "cust-0001", Name: "Asha Verma", Phone: "+91-98100-11111", CreditLimit: 50000000, CreatedAt: now},
		{ID: "cust-0002", Name: "Ravi Menon", Phone: "+91-98100-22222", CreditLimit: 20000000, CreatedAt: now},
	}
	for _, c := range customers {
		s.customers[c.ID] = c
		s.customerVersions[c.ID] = 1
	}

	return s
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || !item.Metal.Valid() || item.Quantity < 0 || item.WeightPerPiece < 0 {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	item.TotalWeight = float64(item.Quantity) * item.WeightPerPiece

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.items[item.ID] = item
	s.itemVersions[item.ID] = 1
	created := item
	return &created, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := item
	return &found, nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) SetInventoryQuantity(ctx context.Context, id string, qty int) (*domain.InventoryItem, error) {
	if qty < 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	item.Quantity = qty
	item.TotalWeight = float64(qty) * item.WeightPerPiece
	item.UpdatedAt = time.Now().UTC()
	s.items[id] = item
	s.itemVersions[id]++
	updated := item
	return &updated, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	low := make([]domain.InventoryItem, 0, 8)
	for _, item := range s.items {
		if item.Quantity <= item.MinStockLevel {
			low = append(low, item)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].ID < low[j].ID })
	return low, nil
}

func (s *Store) UpsertDailyPrice(ctx context.Context, price domain.DailyPrice) error {
	if !price.Metal.Valid() || price.PricePerGram < 1 {
		return store.ErrInvalidInput
	}
	day := dayUTC(price.Date)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[priceKey(price.Metal, day)] = domain.DailyPrice{
		Metal:        price.Metal,
		Date:         day,
		PricePerGram: price.PricePerGram,
		UpdatedAt:    time.Now().UTC(),
	}
	return nil
}

func (s *Store) GetDailyPriceOnOrBefore(ctx context.Context, metal domain.Metal, date time.Time) (*domain.DailyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priceOnOrBeforeLocked(metal, date)
}

func (s *Store) priceOnOrBeforeLocked(metal domain.Metal, date time.Time) (*domain.DailyPrice, error) {
	day := dayUTC(date)
	var best *domain.DailyPrice
	for _, price := range s.prices {
		if price.Metal != metal || price.Date.After(day) {
			continue
		}
		if best == nil || price.Date.After(best.Date) {
			found := price
			best = &found
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.customers[customer.ID] = customer
	s.customerVersions[customer.ID] = 1
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := customer
	return &found, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	// Detach sales instead of deleting them: the sale history is immutable.
	for saleID, sale := range s.sales {
		if sale.CustomerID == id {
			sale.CustomerID = ""
			sale.CustomerDetached = true
			s.sales[saleID] = sale
		}
	}
	delete(s.customers, id)
	delete(s.customerVersions, id)
	return nil
}

func (s *Store) RecomputeCustomerAggregate(ctx context.Context, customerID string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.TotalPurchases = s.sumSalesLocked(customerID, nil)
	customer.TotalCredit = s.sumLedgerLocked(customerID, nil)
	s.customers[customerID] = customer
	s.customerVersions[customerID]++
	refreshed := customer
	return &refreshed, nil
}

func (s *Store) sumSalesLocked(customerID string, extra []domain.Sale) int64 {
	var total int64
	for _, sale := range s.sales {
		if sale.CustomerID == customerID {
			total += sale.GrandTotal
		}
	}
	for _, sale := range extra {
		if sale.CustomerID == customerID {
			total += sale.GrandTotal
		}
	}
	return total
}

func (s *Store) sumLedgerLocked(customerID string, extra []domain.CreditTransaction) int64 {
	var balance int64
	apply := func(entry domain.CreditTransaction) {
		if entry.CustomerID != customerID {
			return
		}
		switch entry.Type {
		case domain.CreditEntryCredit:
			balance += entry.Amount
		case domain.CreditEntryPayment:
			balance -= entry.Amount
		}
	}
	for _, entry := range s.creditEntries {
		apply(entry)
	}
	for _, entry := range extra {
		apply(entry)
	}
	return balance
}

func (s *Store) ListCreditEntries(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.CreditTransaction, 0, limit)
	for _, entry := range s.creditEntries {
		if entry.CustomerID == customerID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := sale
	return &found, nil
}

func (s *Store) GetSaleByReceipt(ctx context.Context, receiptNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.salesByReceipt[receiptNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale := s.sales[id]
	return &sale, nil
}

func (s *Store) ListSalesByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sales := make([]domain.Sale, 0, limit)
	for _, sale := range s.sales {
		if sale.CustomerID == customerID {
			sales = append(sales, sale)
		}
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].CreatedAt.After(sales[j].CreatedAt) })
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) GetDailySalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := domain.DailySalesSummary{Date: from.Format("2006-01-02")}
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		summary.Sales++
		summary.Revenue += sale.GrandTotal
		summary.TaxCollected += sale.TaxAmount
		summary.CreditBooked += sale.CreditAmount
		summary.CashReceived += sale.CashReceived
		summary.CardOrUPIReceived += sale.CardOrUPIReceived
	}
	return summary, nil
}

// RunTx executes fn against a buffered transactional view and commits it
// atomically. Reads must precede writes; the read set is validated against
// entity versions at commit.
func (s *Store) RunTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx := &memTx{
		store:         s,
		readItems:     make(map[string]int64),
		readCustomers: make(map[string]int64),
		aggregates:    make(map[string]aggregateUpdate),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

type decrement struct {
	itemID string
	qty    int
}

type aggregateUpdate struct {
	totalPurchases int64
	totalCredit    int64
}

type memTx struct {
	store         *Store
	wrote         bool
	readItems     map[string]int64
	readCustomers map[string]int64
	newSales      []domain.Sale
	decrements    []decrement
	creditAppends []domain.CreditTransaction
	aggregates    map[string]aggregateUpdate
}

func (t *memTx) GetDailyPriceOnOrBefore(ctx context.Context, metal domain.Metal, date time.Time) (*domain.DailyPrice, error) {
	if t.wrote {
		return nil, fmt.Errorf("%w: read after write", store.ErrInvalidInput)
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.priceOnOrBeforeLocked(metal, date)
}

func (t *memTx) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	if t.wrote {
		return nil, fmt.Errorf("%w: read after write", store.ErrInvalidInput)
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	item, ok := t.store.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.readItems[id] = t.store.itemVersions[id]
	found := item
	return &found, nil
}

func (t *memTx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if t.wrote {
		return nil, fmt.Errorf("%w: read after write", store.ErrInvalidInput)
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	customer, ok := t.store.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.readCustomers[id] = t.store.customerVersions[id]
	found := customer
	return &found, nil
}

// AllocateReceiptNumber reserves the next per-day sequence value. Aborted
// transactions leave gaps, which keeps receipt numbers unique across
// retries without coordination.
func (t *memTx) AllocateReceiptNumber(ctx context.Context, day time.Time) (string, error) {
	dayKey := dayUTC(day).Format("20060102")
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.receiptSeq[dayKey]++
	return fmt.Sprintf("RCP-%s-%06d", dayKey, t.store.receiptSeq[dayKey]), nil
}

func (t *memTx) InsertSale(ctx context.Context, sale domain.Sale) error {
	t.wrote = true
	t.newSales = append(t.newSales, sale)
	return nil
}

func (t *memTx) DecrementInventory(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}
	if _, read := t.readItems[itemID]; !read {
		return fmt.Errorf("%w: inventory item %s not read before decrement", store.ErrInvalidInput, itemID)
	}
	t.wrote = true
	t.decrements = append(t.decrements, decrement{itemID: itemID, qty: qty})
	return nil
}

func (t *memTx) AppendCreditEntry(ctx context.Context, entry domain.CreditTransaction) error {
	if entry.Amount < 1 || entry.CustomerID == "" {
		return store.ErrInvalidInput
	}
	t.wrote = true
	t.creditAppends = append(t.creditAppends, entry)
	return nil
}

func (t *memTx) RefreshCustomerAggregate(ctx context.Context, customerID string) (*domain.Customer, error) {
	version, read := t.readCustomers[customerID]
	if !read {
		return nil, fmt.Errorf("%w: customer %s not read before refresh", store.ErrInvalidInput, customerID)
	}
	t.wrote = true

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if t.store.customerVersions[customerID] != version {
		return nil, store.ErrTxConflict
	}
	customer, ok := t.store.customers[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	update := aggregateUpdate{
		totalPurchases: t.store.sumSalesLocked(customerID, t.newSales),
		totalCredit:    t.store.sumLedgerLocked(customerID, t.creditAppends),
	}
	t.aggregates[customerID] = update
	customer.TotalPurchases = update.totalPurchases
	customer.TotalCredit = update.totalCredit
	refreshed := customer
	return &refreshed, nil
}

func (t *memTx) commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for id, version := range t.readItems {
		if t.store.itemVersions[id] != version {
			return store.ErrTxConflict
		}
	}
	for id, version := range t.readCustomers {
		if t.store.customerVersions[id] != version {
			return store.ErrTxConflict
		}
	}
	for _, dec := range t.decrements {
		item, ok := t.store.items[dec.itemID]
		if !ok {
			return store.ErrNotFound
		}
		if item.Quantity < dec.qty {
			return fmt.Errorf("%w: item %s has %d, need %d", store.ErrInsufficientStock, dec.itemID, item.Quantity, dec.qty)
		}
	}
	for _, sale := range t.newSales {
		if _, exists := t.store.sales[sale.ID]; exists {
			return store.ErrTxConflict
		}
		if _, exists := t.store.salesByReceipt[sale.ReceiptNumber]; exists {
			return store.ErrTxConflict
		}
	}

	now := time.Now().UTC()
	for _, dec := range t.decrements {
		item := t.store.items[dec.itemID]
		item.Quantity -= dec.qty
		item.TotalWeight = float64(item.Quantity) * item.WeightPerPiece
		item.UpdatedAt = now
		t.store.items[dec.itemID] = item
		t.store.itemVersions[dec.itemID]++
	}
	for _, sale := range t.newSales {
		t.store.sales[sale.ID] = sale
		t.store.salesByReceipt[sale.ReceiptNumber] = sale.ID
	}
	t.store.creditEntries = append(t.store.creditEntries, t.creditAppends...)
	for customerID, update := range t.aggregates {
		customer, ok := t.store.customers[customerID]
		if !ok {
			return store.ErrNotFound
		}
		customer.TotalPurchases = update.totalPurchases
		customer.TotalCredit = update.totalCredit
		t.store.customers[customerID] = customer
		t.store.customerVersions[customerID]++
	}
	return nil
}

func priceKey(metal domain.Metal, day time.Time) string {
	return string(metal) + "|" + day.Format("2006-01-02")
}

func dayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
