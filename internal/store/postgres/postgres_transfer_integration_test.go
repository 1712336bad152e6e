package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
	"eromshop/backend/internal/store"
)

func TestTransferSettleCycleAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("EROMSHOP_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set EROMSHOP_TEST_DATABASE_URL to run postgres integration test")
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
	sku := fmt.Sprintf("IT-SCR-%d", stamp)
	agentID := fmt.Sprintf("agent-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE agent_id = $1`, agentID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM debt_entries WHERE agent_id = $1`, agentID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE product_sku = $1`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE sku = $1`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, agentID)
	})

	if _, err := s.CreateAgent(ctx, domain.Agent{
		ID:          agentID,
		FullName:    "Integration Agent",
		PhoneNumber: "0800-0000-0000",
		CreditLimit: money.MustParse("500000.00"),
		CreatedBy:   "it",
	}); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{
		SKU:             sku,
		Name:            "Integration Screen",
		Category:        "screens",
		CostPrice:       money.MustParse("80000.00"),
		SellingPrice:    money.MustParse("120000.00"),
		QuantityInStock: 10,
		ReorderLevel:    2,
		CreatedBy:       "it",
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	entry, err := s.TransferStock(ctx, domain.DebtEntry{
		AgentID:       agentID,
		ProductSKU:    sku,
		Quantity:      3,
		UnitPrice:     money.MustParse("120000.00"),
		TransferredBy: "it",
	}, domain.MovementEntry{PerformedBy: "it"})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := entry.DebtAmount.String(); got != "360000.00" {
		t.Fatalf("debt amount = %s, want 360000.00", got)
	}

	// A second transfer over the credit limit must not write anything.
	_, err = s.TransferStock(ctx, domain.DebtEntry{
		AgentID:       agentID,
		ProductSKU:    sku,
		Quantity:      2,
		UnitPrice:     money.MustParse("120000.00"),
		TransferredBy: "it",
	}, domain.MovementEntry{PerformedBy: "it"})
	if !errors.Is(err, store.ErrCreditLimitExceeded) {
		t.Fatalf("over-limit transfer: err = %v, want ErrCreditLimitExceeded", err)
	}

	product, err := s.GetProductBySKU(ctx, sku)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.QuantityInStock != 7 || product.QuantityInField != 3 {
		t.Fatalf("counters = %d/%d, want 7/3", product.QuantityInStock, product.QuantityInField)
	}
	derived, err := s.ProjectStock(ctx, sku)
	if err != nil {
		t.Fatalf("project stock: %v", err)
	}
	if derived != product.QuantityInStock {
		t.Fatalf("ledger fold %d != counter %d", derived, product.QuantityInStock)
	}

	result, err := s.SettlePayment(ctx, domain.Payment{
		AgentID:    agentID,
		Amount:     money.MustParse("400000.00"),
		Method:     domain.PaymentMethodCash,
		ReceivedBy: "it",
	}, domain.TargetAll())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := result.AppliedTotal.String(); got != "360000.00" {
		t.Fatalf("applied = %s, want 360000.00", got)
	}
	if got := result.Remainder.String(); got != "40000.00" {
		t.Fatalf("remainder = %s, want 40000.00", got)
	}
	if !result.NewTotalDebt.IsZero() {
		t.Fatalf("total debt after settle = %s, want 0.00", result.NewTotalDebt)
	}
}
