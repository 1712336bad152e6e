package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
	"eromshop/backend/internal/settlement"
	"eromshop/backend/internal/store"
	"eromshop/backend/internal/xid"
)

// Store is the PostgreSQL repository. Composite operations run under
// serializable transactions and lock the agent/product rows they touch
// with FOR UPDATE, so the credit and stock checks hold against
// concurrent writers. Serialization failures and lock timeouts come
// back as store.ErrConflict and are safe to retry.
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

func (s *Store) CreateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error) {
	agent.FullName = strings.TrimSpace(agent.FullName)
	agent.PhoneNumber = strings.TrimSpace(agent.PhoneNumber)
	if agent.FullName == "" || agent.PhoneNumber == "" || agent.CreditLimit.IsNegative() {
		return nil, store.ErrValidation
	}
	if agent.ID == "" {
		agent.ID = xid.New("agent")
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	agent.IsActive = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, full_name, phone_number, id_number, area, business_name, credit_limit, is_active, is_trusted, notes, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, agent.ID, agent.FullName, agent.PhoneNumber, nullIfEmpty(agent.IDNumber), nullIfEmpty(agent.Area),
		nullIfEmpty(agent.BusinessName), agent.CreditLimit, agent.IsActive, agent.IsTrusted,
		nullIfEmpty(agent.Notes), agent.CreatedBy, agent.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	created := agent
	return &created, nil
}

const agentColumns = `id, full_name, phone_number, COALESCE(id_number,''), COALESCE(area,''), COALESCE(business_name,''), credit_limit, is_active, is_trusted, COALESCE(notes,''), created_by, created_at`

func scanAgent(row interface{ Scan(...any) error }) (domain.Agent, error) {
	var a domain.Agent
	err := row.Scan(&a.ID, &a.FullName, &a.PhoneNumber, &a.IDNumber, &a.Area, &a.BusinessName,
		&a.CreditLimit, &a.IsActive, &a.IsTrusted, &a.Notes, &a.CreatedBy, &a.CreatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

func (s *Store) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	agent, err := scanAgent(s.db.QueryRowContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &agent, nil
}

func (s *Store) ListAgents(ctx context.Context, activeOnly bool) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY full_name, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0, 64)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error) {
	if strings.TrimSpace(agent.FullName) == "" || strings.TrimSpace(agent.PhoneNumber) == "" || agent.CreditLimit.IsNegative() {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE agents
		SET full_name = $2, phone_number = $3, area = $4, credit_limit = $5, is_active = $6, is_trusted = $7, notes = $8
		WHERE id = $1
	`, agent.ID, agent.FullName, agent.PhoneNumber, nullIfEmpty(agent.Area), agent.CreditLimit,
		agent.IsActive, agent.IsTrusted, nullIfEmpty(agent.Notes))
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

	updated := agent
	return &updated, nil
}

const productColumns = `sku, name, category, cost_price, selling_price, quantity_in_stock, quantity_in_field, reorder_level, is_active, created_by, created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.SKU, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice,
		&p.QuantityInStock, &p.QuantityInField, &p.ReorderLevel, &p.IsActive, &p.CreatedBy, &p.CreatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	if product.SKU == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}
	if !product.SellingPrice.IsPositive() || product.CostPrice.IsNegative() {
		return nil, store.ErrValidation
	}
	if product.QuantityInStock < 0 || product.ReorderLevel < 0 {
		return nil, store.ErrValidation
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.QuantityInField = 0
	product.IsActive = true

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (sku, name, category, cost_price, selling_price, quantity_in_stock, quantity_in_field, reorder_level, is_active, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.SKU, product.Name, product.Category, product.CostPrice, product.SellingPrice,
		product.QuantityInStock, product.QuantityInField, product.ReorderLevel, product.IsActive,
		product.CreatedBy, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	// Opening stock is recorded in the movement ledger so the cached
	// counter equals the fold from the first entry.
	if product.QuantityInStock > 0 {
		if err := insertMovement(ctx, tx, domain.MovementEntry{
			ID:            xid.New("mov"),
			ProductSKU:    product.SKU,
			Kind:          domain.MovementPurchase,
			QuantityDelta: product.QuantityInStock,
			ToLocation:    "shop",
			PerformedBy:   product.CreatedBy,
			Notes:         "opening stock",
			CreatedAt:     product.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE sku = $1
	`, sku))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active = true AND quantity_in_stock <= reorder_level
		ORDER BY quantity_in_stock - reorder_level, sku
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

const debtEntryColumns = `id, agent_id, product_sku, quantity, unit_price, debt_amount, paid_amount, is_paid, paid_at, movement_id, transferred_by, COALESCE(notes,''), created_at`

func scanDebtEntry(row interface{ Scan(...any) error }) (domain.DebtEntry, error) {
	var e domain.DebtEntry
	var paidAt sql.NullTime
	err := row.Scan(&e.ID, &e.AgentID, &e.ProductSKU, &e.Quantity, &e.UnitPrice, &e.DebtAmount,
		&e.PaidAmount, &e.IsPaid, &paidAt, &e.MovementID, &e.TransferredBy, &e.Notes, &e.CreatedAt)
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		e.PaidAt = &t
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, err
}

func (s *Store) ListDebtEntries(ctx context.Context, q domain.DebtEntryQuery) ([]domain.DebtEntry, error) {
	conditions := make([]string, 0, 5)
	args := make([]any, 0, 5)
	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if q.AgentID != "" {
		addCondition("agent_id = $%d", q.AgentID)
	}
	if q.ProductSKU != "" {
		addCondition("product_sku = $%d", q.ProductSKU)
	}
	if q.Paid != nil {
		addCondition("is_paid = $%d", *q.Paid)
	}
	if !q.From.IsZero() {
		addCondition("created_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		addCondition("created_at < $%d", q.To)
	}

	query := `SELECT ` + debtEntryColumns + ` FROM debt_entries`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.DebtEntry, 0, 64)
	for rows.Next() {
		entry, err := scanDebtEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) ListPayments(ctx context.Context, agentID string, limit int) ([]domain.Payment, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT id, agent_id, amount, method, COALESCE(reference,''), received_by, COALESCE(notes,''), created_at
		FROM payments
	`
	args := []any{}
	if agentID != "" {
		args = append(args, agentID)
		query += ` WHERE agent_id = $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, limit)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Amount, &p.Method, &p.Reference, &p.ReceivedBy, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const movementColumns = `id, product_sku, COALESCE(agent_id,''), kind, quantity_delta, COALESCE(from_location,''), COALESCE(to_location,''), COALESCE(reference_id,''), COALESCE(reversal_of,''), COALESCE(reversal_reason,''), performed_by, COALESCE(notes,''), created_at`

func scanMovement(row interface{ Scan(...any) error }) (domain.MovementEntry, error) {
	var m domain.MovementEntry
	err := row.Scan(&m.ID, &m.ProductSKU, &m.AgentID, &m.Kind, &m.QuantityDelta, &m.FromLocation, &m.ToLocation,
		&m.ReferenceID, &m.ReversalOf, &m.ReversalReason, &m.PerformedBy, &m.Notes, &m.CreatedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, err
}

func (s *Store) ListMovements(ctx context.Context, q domain.MovementQuery) ([]domain.MovementEntry, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 5)
	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if q.ProductSKU != "" {
		addCondition("product_sku = $%d", q.ProductSKU)
	}
	if q.AgentID != "" {
		addCondition("agent_id = $%d", q.AgentID)
	}
	if q.Kind != "" {
		addCondition("kind = $%d", string(q.Kind))
	}
	if !q.From.IsZero() {
		addCondition("created_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		addCondition("created_at < $%d", q.To)
	}

	limit := q.Limit
	if limit < 1 {
		limit = 200
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.MovementEntry, 0, limit)
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	return movements, rows.Err()
}

func (s *Store) GetMovement(ctx context.Context, id string) (*domain.MovementEntry, error) {
	movement, err := scanMovement(s.db.QueryRowContext(ctx, `
		SELECT `+movementColumns+` FROM stock_movements WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &movement, nil
}

func (s *Store) ProjectAgentDebt(ctx context.Context, agentID string) (money.Amount, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM agents WHERE id = $1)`, agentID).Scan(&exists); err != nil {
		return money.Zero(), err
	}
	if !exists {
		return money.Zero(), store.ErrNotFound
	}

	var total money.Amount
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(debt_amount - paid_amount), 0)
		FROM debt_entries
		WHERE agent_id = $1 AND is_paid = false
	`, agentID).Scan(&total)
	return total, err
}

func (s *Store) ProjectStock(ctx context.Context, sku string) (int, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE sku = $1)`, sku).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, store.ErrNotFound
	}

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_delta), 0) FROM stock_movements WHERE product_sku = $1
	`, sku).Scan(&total)
	return total, err
}

func (s *Store) RecomputeStock(ctx context.Context, sku string) (*domain.StockRecomputeResult, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var cached int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity_in_stock FROM products WHERE sku = $1 FOR UPDATE
	`, sku).Scan(&cached)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}

	var derived int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_delta), 0) FROM stock_movements WHERE product_sku = $1
	`, sku).Scan(&derived); err != nil {
		return nil, err
	}

	result := &domain.StockRecomputeResult{
		ProductSKU: sku,
		CachedQty:  cached,
		DerivedQty: derived,
		Drift:      derived - cached,
	}
	if result.Drift != 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity_in_stock = $2 WHERE sku = $1
		`, sku, derived); err != nil {
			return nil, err
		}
		result.CacheRewritten = true
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	return result, nil
}

func (s *Store) TransferStock(ctx context.Context, entry domain.DebtEntry, movement domain.MovementEntry) (*domain.DebtEntry, error) {
	if entry.Quantity < 1 || entry.UnitPrice.IsNegative() {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var creditLimit money.Amount
	var agentActive bool
	err = tx.QueryRowContext(ctx, `
		SELECT credit_limit, is_active FROM agents WHERE id = $1 FOR UPDATE
	`, entry.AgentID).Scan(&creditLimit, &agentActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}
	if !agentActive {
		return nil, store.ErrNotFound
	}

	var stockQty int
	var productActive bool
	err = tx.QueryRowContext(ctx, `
		SELECT quantity_in_stock, is_active FROM products WHERE sku = $1 FOR UPDATE
	`, entry.ProductSKU).Scan(&stockQty, &productActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}
	if !productActive {
		return nil, store.ErrNotFound
	}
	if stockQty < entry.Quantity {
		return nil, store.ErrInsufficientStock
	}

	entry.DebtAmount = entry.UnitPrice.MulQty(entry.Quantity)
	entry.PaidAmount = money.Zero()
	entry.IsPaid = false
	entry.PaidAt = nil

	// The agent row is locked above, so the projection cannot move
	// between this check and the insert. A zero limit is unlimited.
	if creditLimit.IsPositive() {
		var outstanding money.Amount
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(debt_amount - paid_amount), 0)
			FROM debt_entries
			WHERE agent_id = $1 AND is_paid = false
		`, entry.AgentID).Scan(&outstanding); err != nil {
			return nil, err
		}
		if outstanding.Add(entry.DebtAmount).GreaterThan(creditLimit) {
			return nil, store.ErrCreditLimitExceeded
		}
	}

	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = xid.New("debt")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	movement.ID = xid.New("mov")
	movement.ProductSKU = entry.ProductSKU
	movement.AgentID = entry.AgentID
	movement.Kind = domain.MovementTransferToAgent
	movement.QuantityDelta = -entry.Quantity
	movement.FromLocation = "shop"
	movement.ToLocation = "field"
	movement.ReferenceID = entry.ID
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = now
	}
	entry.MovementID = movement.ID

	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO debt_entries (id, agent_id, product_sku, quantity, unit_price, debt_amount, paid_amount, is_paid, paid_at, movement_id, transferred_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, entry.ID, entry.AgentID, entry.ProductSKU, entry.Quantity, entry.UnitPrice, entry.DebtAmount,
		entry.PaidAmount, entry.IsPaid, nullTime(entry.PaidAt), entry.MovementID, entry.TransferredBy,
		nullIfEmpty(entry.Notes), entry.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_in_stock = quantity_in_stock - $2, quantity_in_field = quantity_in_field + $2
		WHERE sku = $1
	`, entry.ProductSKU, entry.Quantity); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	created := entry
	return &created, nil
}

func (s *Store) ReturnStock(ctx context.Context, movement domain.MovementEntry) (*domain.MovementEntry, error) {
	qty := movement.QuantityDelta
	if qty < 1 {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var agentExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM agents WHERE id = $1)`, movement.AgentID).Scan(&agentExists); err != nil {
		return nil, err
	}
	if !agentExists {
		return nil, store.ErrNotFound
	}

	var fieldQty int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity_in_field FROM products WHERE sku = $1 FOR UPDATE
	`, movement.ProductSKU).Scan(&fieldQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}
	if fieldQty < qty {
		return nil, store.ErrInsufficientStock
	}

	movement.ID = xid.New("mov")
	movement.Kind = domain.MovementReturnFromAgent
	movement.FromLocation = "field"
	movement.ToLocation = "shop"
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_in_stock = quantity_in_stock + $2, quantity_in_field = quantity_in_field - $2
		WHERE sku = $1
	`, movement.ProductSKU, qty); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	created := movement
	return &created, nil
}

func (s *Store) SettlePayment(ctx context.Context, payment domain.Payment, target domain.PaymentTarget) (*domain.SettlementResult, error) {
	if !payment.Amount.IsPositive() {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// The agent row lock serializes settlements per agent.
	var agentID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM agents WHERE id = $1 FOR UPDATE`, payment.AgentID).Scan(&agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}

	if ids := target.IDs(); ids != nil {
		var matched int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM debt_entries WHERE agent_id = $1 AND id = ANY($2)
		`, payment.AgentID, ids).Scan(&matched); err != nil {
			return nil, err
		}
		if matched != len(ids) {
			return nil, store.ErrNotFound
		}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+debtEntryColumns+`
		FROM debt_entries
		WHERE agent_id = $1 AND is_paid = false
		ORDER BY created_at, id
		FOR UPDATE
	`, payment.AgentID)
	if err != nil {
		return nil, classifyTxError(err)
	}
	candidates := make([]domain.DebtEntry, 0, 32)
	for rows.Next() {
		entry, err := scanDebtEntry(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		candidates = append(candidates, entry)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	selected := settlement.SelectEntries(candidates, target)
	outcome := settlement.Apply(selected, payment.Amount, payment.CreatedAt)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, agent_id, amount, method, reference, received_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, payment.ID, payment.AgentID, payment.Amount, payment.Method, nullIfEmpty(payment.Reference),
		payment.ReceivedBy, nullIfEmpty(payment.Notes), payment.CreatedAt); err != nil {
		return nil, err
	}
	for _, updated := range outcome.Updated {
		if _, err := tx.ExecContext(ctx, `
			UPDATE debt_entries SET paid_amount = $2, is_paid = $3, paid_at = $4 WHERE id = $1
		`, updated.ID, updated.PaidAmount, updated.IsPaid, nullTime(updated.PaidAt)); err != nil {
			return nil, err
		}
	}

	var newTotal money.Amount
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(debt_amount - paid_amount), 0)
		FROM debt_entries
		WHERE agent_id = $1 AND is_paid = false
	`, payment.AgentID).Scan(&newTotal); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	return &domain.SettlementResult{
		Payment:        payment,
		AppliedTotal:   outcome.Applied,
		Remainder:      outcome.Remainder,
		UpdatedEntries: outcome.Updated,
		NewTotalDebt:   newTotal,
	}, nil
}

func (s *Store) AdjustStock(ctx context.Context, movement domain.MovementEntry) (*domain.MovementEntry, error) {
	if movement.QuantityDelta == 0 {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var stockQty int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity_in_stock FROM products WHERE sku = $1 FOR UPDATE
	`, movement.ProductSKU).Scan(&stockQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}
	if stockQty+movement.QuantityDelta < 0 {
		return nil, store.ErrInsufficientStock
	}

	movement.ID = xid.New("mov")
	movement.Kind = domain.MovementAdjustment
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET quantity_in_stock = quantity_in_stock + $2 WHERE sku = $1
	`, movement.ProductSKU, movement.QuantityDelta); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	created := movement
	return &created, nil
}

func (s *Store) ReverseMovement(ctx context.Context, movementID string, reversal domain.MovementEntry) (*domain.MovementEntry, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	original, err := scanMovement(tx.QueryRowContext(ctx, `
		SELECT `+movementColumns+` FROM stock_movements WHERE id = $1 FOR UPDATE
	`, movementID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}
	if original.Kind == domain.MovementReversal {
		return nil, store.ErrInvalidState
	}
	var alreadyReversed bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM stock_movements WHERE reversal_of = $1)
	`, movementID).Scan(&alreadyReversed); err != nil {
		return nil, err
	}
	if alreadyReversed {
		return nil, store.ErrInvalidState
	}

	var stockQty, fieldQty int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity_in_stock, quantity_in_field FROM products WHERE sku = $1 FOR UPDATE
	`, original.ProductSKU).Scan(&stockQty, &fieldQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}

	delta := -original.QuantityDelta
	if stockQty+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	movesField := original.Kind == domain.MovementTransferToAgent || original.Kind == domain.MovementReturnFromAgent
	if movesField && fieldQty-delta < 0 {
		return nil, store.ErrInsufficientStock
	}

	reversal.ID = xid.New("mov")
	reversal.ProductSKU = original.ProductSKU
	reversal.AgentID = original.AgentID
	reversal.Kind = domain.MovementReversal
	reversal.QuantityDelta = delta
	reversal.FromLocation = original.ToLocation
	reversal.ToLocation = original.FromLocation
	reversal.ReversalOf = original.ID
	if reversal.CreatedAt.IsZero() {
		reversal.CreatedAt = time.Now().UTC()
	}

	if err := insertMovement(ctx, tx, reversal); err != nil {
		return nil, err
	}
	fieldDelta := 0
	if movesField {
		fieldDelta = -delta
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_in_stock = quantity_in_stock + $2, quantity_in_field = quantity_in_field + $3
		WHERE sku = $1
	`, original.ProductSKU, delta, fieldDelta); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	created := reversal
	return &created, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.SaleTransaction) (*domain.SaleTransaction, error) {
	if len(sale.Items) == 0 || !domain.ValidPaymentMethod(sale.PaymentMethod) {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}

	subtotal := money.Zero()
	discountTotal := money.Zero()
	lines := make([]domain.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrValidation
		}
		var stockQty int
		var active bool
		var sellingPrice money.Amount
		err := tx.QueryRowContext(ctx, `
			SELECT quantity_in_stock, is_active, selling_price FROM products WHERE sku = $1 FOR UPDATE
		`, item.ProductSKU).Scan(&stockQty, &active, &sellingPrice)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("sku %s unavailable: %w", item.ProductSKU, store.ErrNotFound)
			}
			return nil, classifyTxError(err)
		}
		if !active {
			return nil, fmt.Errorf("sku %s unavailable: %w", item.ProductSKU, store.ErrNotFound)
		}
		if stockQty < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
		unitPrice := item.UnitPrice
		if !unitPrice.IsPositive() {
			unitPrice = sellingPrice
		}
		gross := unitPrice.MulQty(item.Quantity)
		if item.Discount.IsNegative() || item.Discount.GreaterThan(gross) {
			return nil, store.ErrValidation
		}
		lines = append(lines, domain.SaleLine{
			ProductSKU: item.ProductSKU,
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			Discount:   item.Discount,
			LineTotal:  gross.Sub(item.Discount),
		})
		subtotal = subtotal.Add(gross)
		discountTotal = discountTotal.Add(item.Discount)
	}

	sale.Items = lines
	sale.Subtotal = subtotal
	sale.DiscountAmount = discountTotal
	sale.TotalAmount = subtotal.Sub(discountTotal).Add(sale.TaxAmount)

	if sale.PaymentMethod == domain.PaymentMethodCash {
		if sale.AmountPaid.LessThan(sale.TotalAmount) {
			return nil, store.ErrValidation
		}
		sale.ChangeGiven = sale.AmountPaid.Sub(sale.TotalAmount)
	} else {
		sale.AmountPaid = sale.TotalAmount
		sale.ChangeGiven = money.Zero()
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	dayKey := sale.CreatedAt.Format("20060102")
	var seq int
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO sale_counters (day_key, seq) VALUES ($1, 1)
		ON CONFLICT (day_key) DO UPDATE SET seq = sale_counters.seq + 1
		RETURNING seq
	`, dayKey).Scan(&seq); err != nil {
		return nil, classifyTxError(err)
	}
	sale.Code = fmt.Sprintf("TXN-%s-%04d", dayKey, seq)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sale_transactions (id, code, subtotal, tax_amount, discount_amount, total_amount, payment_method, amount_paid, change_given, customer_name, customer_phone, processed_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.Code, sale.Subtotal, sale.TaxAmount, sale.DiscountAmount, sale.TotalAmount,
		sale.PaymentMethod, sale.AmountPaid, sale.ChangeGiven, nullIfEmpty(sale.CustomerName),
		nullIfEmpty(sale.CustomerPhone), sale.ProcessedBy, nullIfEmpty(sale.Notes), sale.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for _, line := range sale.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_sku, quantity, unit_price, discount, line_total)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, line.ProductSKU, line.Quantity, line.UnitPrice, line.Discount, line.LineTotal); err != nil {
			return nil, err
		}
		if err := insertMovement(ctx, tx, domain.MovementEntry{
			ID:            xid.New("mov"),
			ProductSKU:    line.ProductSKU,
			Kind:          domain.MovementSale,
			QuantityDelta: -line.Quantity,
			FromLocation:  "shop",
			ToLocation:    "customer",
			ReferenceID:   sale.ID,
			PerformedBy:   sale.ProcessedBy,
			CreatedAt:     sale.CreatedAt,
		}); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity_in_stock = quantity_in_stock - $2 WHERE sku = $1
		`, line.ProductSKU, line.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.SaleTransaction, error) {
	var sale domain.SaleTransaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, subtotal, tax_amount, discount_amount, total_amount, payment_method, amount_paid, change_given, COALESCE(customer_name,''), COALESCE(customer_phone,''), processed_by, COALESCE(notes,''), created_at
		FROM sale_transactions
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.Code, &sale.Subtotal, &sale.TaxAmount, &sale.DiscountAmount,
		&sale.TotalAmount, &sale.PaymentMethod, &sale.AmountPaid, &sale.ChangeGiven,
		&sale.CustomerName, &sale.CustomerPhone, &sale.ProcessedBy, &sale.Notes, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_sku, quantity, unit_price, discount, line_total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY product_sku
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ProductSKU, &line.Quantity, &line.UnitPrice, &line.Discount, &line.LineTotal); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetDailySalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesSummary, error) {
	summary := domain.DailySalesSummary{
		Date:            from.Format("2006-01-02"),
		TotalSales:      money.Zero(),
		ByPaymentMethod: make(map[string]money.Amount),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM sale_transactions
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY payment_method
	`, from, to)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var method string
		var count int
		var total money.Amount
		if err := rows.Scan(&method, &count, &total); err != nil {
			return summary, err
		}
		summary.Transactions += count
		summary.TotalSales = summary.TotalSales.Add(total)
		summary.ByPaymentMethod[method] = total
	}
	return summary, rows.Err()
}

func (s *Store) CreateReconciliation(ctx context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error) {
	if !domain.ValidReconciliationType(rec.Type) {
		return nil, store.ErrValidation
	}
	if rec.ID == "" {
		rec.ID = xid.New("recon")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Status = domain.ReconciliationInProgress
	rec.Items = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliations (id, type, status, performed_by, approved_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.Type, rec.Status, rec.PerformedBy, nullIfEmpty(rec.ApprovedBy), nullIfEmpty(rec.Notes), rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := rec
	return &created, nil
}

const reconciliationColumns = `id, type, status, performed_by, COALESCE(approved_by,''), COALESCE(notes,''), created_at`

func scanReconciliation(row interface{ Scan(...any) error }) (domain.Reconciliation, error) {
	var r domain.Reconciliation
	err := row.Scan(&r.ID, &r.Type, &r.Status, &r.PerformedBy, &r.ApprovedBy, &r.Notes, &r.CreatedAt)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, err
}

func (s *Store) GetReconciliation(ctx context.Context, id string) (*domain.Reconciliation, error) {
	rec, err := scanReconciliation(s.db.QueryRowContext(ctx, `
		SELECT `+reconciliationColumns+` FROM reconciliations WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.listReconciliationItems(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Items = items
	return &rec, nil
}

func (s *Store) listReconciliationItems(ctx context.Context, reconciliationID string) ([]domain.ReconciliationItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reconciliation_id, product_sku, system_count, physical_count, variance, has_discrepancy, COALESCE(discrepancy_reason,''), correction_approved, correction_created, counted_at
		FROM reconciliation_items
		WHERE reconciliation_id = $1
		ORDER BY product_sku
	`, reconciliationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReconciliationItem, 0, 32)
	for rows.Next() {
		var item domain.ReconciliationItem
		if err := rows.Scan(&item.ID, &item.ReconciliationID, &item.ProductSKU, &item.SystemCount,
			&item.PhysicalCount, &item.Variance, &item.HasDiscrepancy, &item.DiscrepancyReason,
			&item.CorrectionApproved, &item.CorrectionCreated, &item.CountedAt); err != nil {
			return nil, err
		}
		item.CountedAt = item.CountedAt.UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) ListReconciliations(ctx context.Context, status string, limit int) ([]domain.Reconciliation, error) {
	if limit < 1 {
		limit = 50
	}
	query := `SELECT ` + reconciliationColumns + ` FROM reconciliations`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += ` WHERE status = $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Reconciliation, 0, limit)
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) UpsertReconciliationCount(ctx context.Context, reconciliationID string, item domain.ReconciliationItem) (*domain.ReconciliationItem, error) {
	if item.PhysicalCount < 0 {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM reconciliations WHERE id = $1 FOR UPDATE
	`, reconciliationID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classifyTxError(err)
	}
	if status != domain.ReconciliationInProgress {
		return nil, store.ErrInvalidState
	}

	var productExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE sku = $1)`, item.ProductSKU).Scan(&productExists); err != nil {
		return nil, err
	}
	if !productExists {
		return nil, store.ErrNotFound
	}

	// Snapshot the ledger fold inside the transaction so the recorded
	// system count matches the stock at counting time exactly.
	var systemCount int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_delta), 0) FROM stock_movements WHERE product_sku = $1
	`, item.ProductSKU).Scan(&systemCount); err != nil {
		return nil, err
	}

	item.ReconciliationID = reconciliationID
	item.SetCounts(systemCount, item.PhysicalCount)
	item.CorrectionApproved = false
	item.CorrectionCreated = false
	item.CountedAt = time.Now().UTC()
	if item.ID == "" {
		item.ID = xid.New("count")
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO reconciliation_items (id, reconciliation_id, product_sku, system_count, physical_count, variance, has_discrepancy, discrepancy_reason, correction_approved, correction_created, counted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (reconciliation_id, product_sku) DO UPDATE
		SET system_count = EXCLUDED.system_count,
		    physical_count = EXCLUDED.physical_count,
		    variance = EXCLUDED.variance,
		    has_discrepancy = EXCLUDED.has_discrepancy,
		    discrepancy_reason = EXCLUDED.discrepancy_reason,
		    correction_approved = false,
		    correction_created = false,
		    counted_at = EXCLUDED.counted_at
		RETURNING id
	`, item.ID, item.ReconciliationID, item.ProductSKU, item.SystemCount, item.PhysicalCount,
		item.Variance, item.HasDiscrepancy, nullIfEmpty(item.DiscrepancyReason),
		item.CorrectionApproved, item.CorrectionCreated, item.CountedAt).Scan(&item.ID); err != nil {
		return nil, classifyTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyTxError(err)
	}
	saved := item
	return &saved, nil
}

func (s *Store) TransitionReconciliation(ctx context.Context, id string, allowedFrom []string, to string, approvedBy string) (*domain.Reconciliation, error) {
	rec, err := scanReconciliation(s.db.QueryRowContext(ctx, `
		UPDATE reconciliations
		SET status = $2, approved_by = COALESCE(NULLIF($3, ''), approved_by)
		WHERE id = $1 AND status = ANY($4)
		RETURNING `+reconciliationColumns+`
	`, id, to, approvedBy, allowedFrom))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if lookupErr := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reconciliations WHERE id = $1)`, id).Scan(&exists); lookupErr != nil {
				return nil, lookupErr
			}
			if exists {
				return nil, store.ErrInvalidState
			}
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.listReconciliationItems(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Items = items
	return &rec, nil
}

func (s *Store) CreateReconciliationCorrections(ctx context.Context, id string, performedBy string) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM reconciliations WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, classifyTxError(err)
	}
	if status != domain.ReconciliationApproved {
		return 0, store.ErrInvalidState
	}

	// The correction_created flag makes this retry-safe: items already
	// corrected by an earlier call are skipped.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, product_sku, variance
		FROM reconciliation_items
		WHERE reconciliation_id = $1 AND has_discrepancy = true AND correction_created = false
		ORDER BY product_sku
		FOR UPDATE
	`, id)
	if err != nil {
		return 0, classifyTxError(err)
	}
	type pending struct {
		itemID   string
		sku      string
		variance int
	}
	todo := make([]pending, 0, 16)
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.itemID, &p.sku, &p.variance); err != nil {
			_ = rows.Close()
			return 0, err
		}
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	now := time.Now().UTC()
	for _, p := range todo {
		if err := insertMovement(ctx, tx, domain.MovementEntry{
			ID:            xid.New("mov"),
			ProductSKU:    p.sku,
			Kind:          domain.MovementAdjustment,
			QuantityDelta: p.variance,
			ReferenceID:   id,
			PerformedBy:   performedBy,
			Notes:         "stock count correction",
			CreatedAt:     now,
		}); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity_in_stock = quantity_in_stock + $2 WHERE sku = $1
		`, p.sku, p.variance); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE reconciliation_items SET correction_approved = true, correction_created = true WHERE id = $1
		`, p.itemID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classifyTxError(err)
	}
	return len(todo), nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, shop_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.ShopID, entry.ActorUsername, entry.ActorRole, entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.ActorUsername, &entry.ActorRole,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
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
	return nil
}

func insertMovement(ctx context.Context, tx *sql.Tx, m domain.MovementEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_sku, agent_id, kind, quantity_delta, from_location, to_location, reference_id, reversal_of, reversal_reason, performed_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, m.ID, m.ProductSKU, nullIfEmpty(m.AgentID), string(m.Kind), m.QuantityDelta, nullIfEmpty(m.FromLocation),
		nullIfEmpty(m.ToLocation), nullIfEmpty(m.ReferenceID), nullIfEmpty(m.ReversalOf),
		nullIfEmpty(m.ReversalReason), m.PerformedBy, nullIfEmpty(m.Notes), m.CreatedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// classifyTxError maps serialization failures (40001), deadlocks
// (40P01), and lock timeouts (55P03) to store.ErrConflict so callers
// know the operation rolled back cleanly and can retry.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Code)
		}
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
