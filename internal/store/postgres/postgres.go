package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sonara/backend/internal/domain"
	"sonara/backend/internal/store"
	"sonara/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (
			id, name, category, metal, quantity, weight_per_piece_grams,
			total_weight_grams, min_stock_level, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, item.ID, item.Name, item.Category, string(item.Metal), item.Quantity, item.WeightPerPiece,
		item.TotalWeight, item.MinStockLevel, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return scanInventoryItem(s.db.QueryRowContext(ctx, `
		SELECT id, name, category, metal, quantity, weight_per_piece_grams,
			total_weight_grams, min_stock_level, created_at, updated_at
		FROM inventory_items
		WHERE id = $1
	`, id))
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, metal, quantity, weight_per_piece_grams,
			total_weight_grams, min_stock_level, created_at, updated_at
		FROM inventory_items
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInventoryItems(rows)
}

func (s *Store) SetInventoryQuantity(ctx context.Context, id string, qty int) (*domain.InventoryItem, error) {
	if qty < 0 {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = $2,
			total_weight_grams = $2 * weight_per_piece_grams,
			updated_at = now()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetInventoryItem(ctx, id)
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, metal, quantity, weight_per_piece_grams,
			total_weight_grams, min_stock_level, created_at, updated_at
		FROM inventory_items
		WHERE quantity <= min_stock_level
		ORDER BY quantity ASC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInventoryItems(rows)
}

func (s *Store) UpsertDailyPrice(ctx context.Context, price domain.DailyPrice) error {
	if !price.Metal.Valid() || price.PricePerGram < 1 {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_prices (metal, price_date, price_per_gram_paise, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (metal, price_date)
		DO UPDATE SET price_per_gram_paise = EXCLUDED.price_per_gram_paise, updated_at = now()
	`, string(price.Metal), dayUTC(price.Date), price.PricePerGram)
	return err
}

func (s *Store) GetDailyPriceOnOrBefore(ctx context.Context, metal domain.Metal, date time.Time) (*domain.DailyPrice, error) {
	return scanDailyPrice(s.db.QueryRowContext(ctx, `
		SELECT metal, price_date, price_per_gram_paise, updated_at
		FROM daily_prices
		WHERE metal = $1 AND price_date <= $2
		ORDER BY price_date DESC
		LIMIT 1
	`, string(metal), dayUTC(date)))
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (
			id, name, phone, address, total_purchases_paise, total_credit_paise,
			credit_limit_paise, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, customer.ID, customer.Name, customer.Phone, customer.Address,
		customer.TotalPurchases, customer.TotalCredit, customer.CreditLimit, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, total_purchases_paise, total_credit_paise,
			credit_limit_paise, created_at
		FROM customers
		WHERE id = $1
	`, id))
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, total_purchases_paise, total_credit_paise,
			credit_limit_paise, created_at
		FROM customers
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		customer, err := scanCustomerRow(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Sales survive customer deletion; only the reference is detached.
	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET customer_id = NULL, customer_detached = true
		WHERE customer_id = $1
	`, id)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return mapTxError(err)
	}
	return nil
}

func (s *Store) RecomputeCustomerAggregate(ctx context.Context, customerID string) (*domain.Customer, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	customer, err := refreshAggregate(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapTxError(err)
	}
	return customer, nil
}

func (s *Store) ListCreditEntries(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, entry_type, amount_paise, balance_after_paise,
			sale_id, due_date, note, created_at
		FROM credit_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CreditTransaction, 0, limit)
	for rows.Next() {
		var entry domain.CreditTransaction
		var saleID sql.NullString
		var dueDate sql.NullTime
		var note sql.NullString
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Type, &entry.Amount,
			&entry.BalanceAfter, &saleID, &dueDate, &note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if saleID.Valid {
			entry.SaleID = saleID.String
		}
		if dueDate.Valid {
			due := dueDate.Time.UTC()
			entry.DueDate = &due
		}
		if note.Valid {
			entry.Note = note.String
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// RunTx runs fn inside one serializable transaction. Postgres validates the
// read set at commit; serialization failures surface as store.ErrTxConflict
// so the engine can retry from its read phase.
func (s *Store) RunTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{store: s, tx: sqlTx}); err != nil {
		return mapTxError(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return mapTxError(err)
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) GetSaleByReceipt(ctx context.Context, receiptNumber string) (*domain.Sale, error) {
	return s.findSale(ctx, "receipt_number", receiptNumber)
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	if column != "id" && column != "receipt_number" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var sale domain.Sale
	var customerID sql.NullString
	query := fmt.Sprintf(`
		SELECT id, customer_id, customer_detached, subtotal_paise, tax_amount_paise,
			grand_total_paise, payment_method, payment_status, cash_received_paise,
			card_upi_received_paise, credit_amount_paise, change_due_paise,
			receipt_number, created_at
		FROM sales
		WHERE %s = $1
	`, column)

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&sale.ID,
		&customerID,
		&sale.CustomerDetached,
		&sale.Subtotal,
		&sale.TaxAmount,
		&sale.GrandTotal,
		&sale.PaymentMethod,
		&sale.PaymentStatus,
		&sale.CashReceived,
		&sale.CardOrUPIReceived,
		&sale.CreditAmount,
		&sale.ChangeDue,
		&sale.ReceiptNumber,
		&sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.loadSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT inventory_item_id, custom, name, metal, quantity, weight_grams,
			price_per_gram_paise, metal_value_paise, making_charges_paise,
			wastage_paise, line_total_paise
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 4)
	for rows.Next() {
		var item domain.SaleItem
		var invID sql.NullString
		var metal string
		if err := rows.Scan(&invID, &item.Custom, &item.Name, &metal, &item.Quantity,
			&item.WeightGrams, &item.PricePerGram, &item.MetalValue, &item.MakingCharges,
			&item.Wastage, &item.LineTotal); err != nil {
			return nil, err
		}
		if invID.Valid {
			item.InventoryItemID = invID.String
		}
		item.Metal = domain.Metal(metal)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSalesByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM sales
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	sales := make([]domain.Sale, 0, len(ids))
	for _, id := range ids {
		sale, err := s.findSale(ctx, "id", id)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, nil
}

func (s *Store) GetDailySalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesSummary, error) {
	summary := domain.DailySalesSummary{Date: from.Format("2006-01-02")}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(grand_total_paise),0)::bigint,
			COALESCE(SUM(tax_amount_paise),0)::bigint,
			COALESCE(SUM(credit_amount_paise),0)::bigint,
			COALESCE(SUM(cash_received_paise),0)::bigint,
			COALESCE(SUM(card_upi_received_paise),0)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(
		&summary.Sales,
		&summary.Revenue,
		&summary.TaxCollected,
		&summary.CreditBooked,
		&summary.CashReceived,
		&summary.CardOrUPIReceived,
	)
	return summary, err
}

// pgTx adapts one serializable *sql.Tx to the store.Tx contract.
type pgTx struct {
	store *Store
	tx    *sql.Tx
}

func (t *pgTx) GetDailyPriceOnOrBefore(ctx context.Context, metal domain.Metal, date time.Time) (*domain.DailyPrice, error) {
	return scanDailyPrice(t.tx.QueryRowContext(ctx, `
		SELECT metal, price_date, price_per_gram_paise, updated_at
		FROM daily_prices
		WHERE metal = $1 AND price_date <= $2
		ORDER BY price_date DESC
		LIMIT 1
	`, string(metal), dayUTC(date)))
}

func (t *pgTx) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return scanInventoryItem(t.tx.QueryRowContext(ctx, `
		SELECT id, name, category, metal, quantity, weight_per_piece_grams,
			total_weight_grams, min_stock_level, created_at, updated_at
		FROM inventory_items
		WHERE id = $1
	`, id))
}

func (t *pgTx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return scanCustomer(t.tx.QueryRowContext(ctx, `
		SELECT id, name, phone, address, total_purchases_paise, total_credit_paise,
			credit_limit_paise, created_at
		FROM customers
		WHERE id = $1
	`, id))
}

// AllocateReceiptNumber reserves the next per-day counter value on the
// store's own connection, outside the enclosing serializable transaction.
// Aborted sales leave gaps; receipt numbers stay unique across retries and
// the counter row never joins the transaction's read set.
func (t *pgTx) AllocateReceiptNumber(ctx context.Context, day time.Time) (string, error) {
	dayKey := dayUTC(day).Format("20060102")
	var counter int64
	err := t.store.db.QueryRowContext(ctx, `
		INSERT INTO receipt_counters (day, counter)
		VALUES ($1, 1)
		ON CONFLICT (day)
		DO UPDATE SET counter = receipt_counters.counter + 1
		RETURNING counter
	`, dayKey).Scan(&counter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RCP-%s-%06d", dayKey, counter), nil
}

func (t *pgTx) InsertSale(ctx context.Context, sale domain.Sale) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, customer_id, customer_detached, subtotal_paise, tax_amount_paise,
			grand_total_paise, payment_method, payment_status, cash_received_paise,
			card_upi_received_paise, credit_amount_paise, change_due_paise,
			receipt_number, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, nullIfEmpty(sale.CustomerID), sale.CustomerDetached, sale.Subtotal,
		sale.TaxAmount, sale.GrandTotal, sale.PaymentMethod, sale.PaymentStatus,
		sale.CashReceived, sale.CardOrUPIReceived, sale.CreditAmount, sale.ChangeDue,
		sale.ReceiptNumber, sale.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range sale.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO sale_items (
				sale_id, inventory_item_id, custom, name, metal, quantity,
				weight_grams, price_per_gram_paise, metal_value_paise,
				making_charges_paise, wastage_paise, line_total_paise
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, sale.ID, nullIfEmpty(item.InventoryItemID), item.Custom, item.Name,
			string(item.Metal), item.Quantity, item.WeightGrams, item.PricePerGram,
			item.MetalValue, item.MakingCharges, item.Wastage, item.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) DecrementInventory(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity - $1,
			total_weight_grams = (quantity - $1) * weight_per_piece_grams,
			updated_at = now()
		WHERE id = $2 AND quantity >= $1
	`, qty, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %s, need %d", store.ErrInsufficientStock, itemID, qty)
	}
	return nil
}

func (t *pgTx) AppendCreditEntry(ctx context.Context, entry domain.CreditTransaction) error {
	if entry.Amount < 1 || entry.CustomerID == "" {
		return store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("crtx")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, customer_id, entry_type, amount_paise, balance_after_paise,
			sale_id, due_date, note, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.CustomerID, entry.Type, entry.Amount, entry.BalanceAfter,
		nullIfEmpty(entry.SaleID), nullDate(entry.DueDate), nullIfEmpty(entry.Note), entry.CreatedAt)
	return err
}

func (t *pgTx) RefreshCustomerAggregate(ctx context.Context, customerID string) (*domain.Customer, error) {
	return refreshAggregate(ctx, t.tx, customerID)
}

// refreshAggregate recomputes both running totals from their source ledgers
// and writes them in one update. Inside a transaction it sees that
// transaction's own uncommitted sale and ledger rows.
func refreshAggregate(ctx context.Context, tx *sql.Tx, customerID string) (*domain.Customer, error) {
	var totalPurchases int64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(grand_total_paise),0)::bigint
		FROM sales
		WHERE customer_id = $1
	`, customerID).Scan(&totalPurchases)
	if err != nil {
		return nil, err
	}

	var totalCredit int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN entry_type = 'credit' THEN amount_paise
			ELSE -amount_paise END),0)::bigint
		FROM credit_transactions
		WHERE customer_id = $1
	`, customerID).Scan(&totalCredit)
	if err != nil {
		return nil, err
	}

	customer, err := scanCustomer(tx.QueryRowContext(ctx, `
		UPDATE customers
		SET total_purchases_paise = $2, total_credit_paise = $3
		WHERE id = $1
		RETURNING id, name, phone, address, total_purchases_paise, total_credit_paise,
			credit_limit_paise, created_at
	`, customerID, totalPurchases, totalCredit))
	if err != nil {
		return nil, err
	}
	return customer, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInventoryItem(row rowScanner) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	var metal string
	err := row.Scan(&item.ID, &item.Name, &item.Category, &metal, &item.Quantity,
		&item.WeightPerPiece, &item.TotalWeight, &item.MinStockLevel,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item.Metal = domain.Metal(metal)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func collectInventoryItems(rows *sql.Rows) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	return scanCustomerRow(row)
}

func scanCustomerRow(row rowScanner) (*domain.Customer, error) {
	var customer domain.Customer
	var address sql.NullString
	err := row.Scan(&customer.ID, &customer.Name, &customer.Phone, &address,
		&customer.TotalPurchases, &customer.TotalCredit, &customer.CreditLimit,
		&customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if address.Valid {
		customer.Address = address.String
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func scanDailyPrice(row rowScanner) (*domain.DailyPrice, error) {
	var price domain.DailyPrice
	var metal string
	err := row.Scan(&metal, &price.Date, &price.PricePerGram, &price.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	price.Metal = domain.Metal(metal)
	price.Date = dayUTC(price.Date)
	price.UpdatedAt = price.UpdatedAt.UTC()
	return &price, nil
}

// mapTxError turns serialization and deadlock failures into the retryable
// sentinel so callers can re-run the whole transaction.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return store.ErrTxConflict
		case "23505":
			return store.ErrTxConflict
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return dayUTC(*val)
}

func dayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
