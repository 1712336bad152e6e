package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"eromshop/backend/internal/cache"
	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
	"eromshop/backend/internal/store"
	"eromshop/backend/internal/store/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("SEED_OWNER_PASSWORD", "test-owner-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "test-cashier-pass")
	return New(memory.NewSeeded(), cache.NoopDebtSummaryCache{}, "main-shop", time.Minute)
}

func ownerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "owner", Role: domain.RoleOwner})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

func setupAgentAndProduct(t *testing.T, svc *Service, limit string, stock int) (domain.Agent, domain.Product) {
	t.Helper()
	agent, err := svc.CreateAgent(cashierCtx(), domain.AgentCreateRequest{
		FullName:    "Budi Hartono",
		PhoneNumber: "0812-0000-9999",
		CreditLimit: money.MustParse(limit),
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	product, err := svc.CreateProduct(ownerCtx(), domain.ProductCreateRequest{
		SKU:          "TST-SCR-01",
		Name:         "Test Screen",
		Category:     "screens",
		CostPrice:    money.MustParse("10000.00"),
		SellingPrice: money.MustParse("20000.00"),
		InitialStock: stock,
		ReorderLevel: 3,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return agent, product
}

func TestTransferCreditLimitBoundary(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "500000.00", 1000)
	ctx := cashierCtx()

	// 24 * 20000 = 480000 of the 500000 limit.
	if _, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   24,
		UnitPrice:  money.MustParse("20000.00"),
	}); err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	// Exactly at the limit is allowed.
	if _, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   1,
		UnitPrice:  money.MustParse("20000.00"),
	}); err != nil {
		t.Fatalf("transfer to exact limit: %v", err)
	}

	// One cent over is not.
	_, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   1,
		UnitPrice:  money.MustParse("0.01"),
	})
	if !errors.Is(err, store.ErrCreditLimitExceeded) {
		t.Fatalf("over-limit transfer: err = %v, want ErrCreditLimitExceeded", err)
	}
}

func TestTransferZeroLimitIsUnlimited(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "0.00", 1000)

	if _, err := svc.TransferStock(cashierCtx(), agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   500,
		UnitPrice:  money.MustParse("99999.99"),
	}); err != nil {
		t.Fatalf("transfer with zero limit: %v", err)
	}
}

func TestTransferZeroUnitPriceCreatesNoDebt(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "50000.00", 100)
	ctx := cashierCtx()

	// Free promotional stock moves to the field without adding debt.
	entry, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   5,
		UnitPrice:  money.MustParse("0.00"),
		Notes:      "display units",
	})
	if err != nil {
		t.Fatalf("zero-price transfer: %v", err)
	}
	if !entry.DebtAmount.IsZero() {
		t.Fatalf("debt amount = %s, want 0.00", entry.DebtAmount)
	}

	summary, err := svc.DebtSummary(ctx, agent.ID)
	if err != nil {
		t.Fatalf("debt summary: %v", err)
	}
	if !summary.TotalDebt.IsZero() {
		t.Fatalf("total debt = %s, want 0.00", summary.TotalDebt)
	}

	current, err := svc.GetProduct(ctx, product.SKU)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if current.QuantityInStock != 95 || current.QuantityInField != 5 {
		t.Fatalf("counters = %d/%d, want 95/5", current.QuantityInStock, current.QuantityInField)
	}

	// Negative prices are still malformed input.
	_, err = svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   1,
		UnitPrice:  money.MustParse("-1.00"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("negative-price transfer: err = %v, want ErrValidation", err)
	}
}

func TestConcurrentTransfersOnlyOnePassesCreditCheck(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "100000.00", 1000)
	ctx := cashierCtx()

	// Each transfer is 60000; two of them together breach the limit,
	// so exactly one must pass no matter how the race goes.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
				ProductSKU: product.SKU,
				Quantity:   3,
				UnitPrice:  money.MustParse("20000.00"),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrCreditLimitExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("succeeded=%d rejected=%d, want exactly one of each", succeeded, rejected)
	}
}

func TestParallelAdjustmentsKeepCounterEqualToFold(t *testing.T) {
	t.Setenv("SEED_OWNER_PASSWORD", "test-owner-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "test-cashier-pass")
	repo := memory.NewSeeded()
	svc := New(repo, cache.NoopDebtSummaryCache{}, "main-shop", time.Minute)
	ctx := ownerCtx()

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		SKU:          "PAR-01",
		Name:         "Parallel Part",
		Category:     "parts",
		CostPrice:    money.MustParse("100.00"),
		SellingPrice: money.MustParse("200.00"),
		InitialStock: 100,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		delta := 1
		if i%2 == 0 {
			delta = -1
		}
		go func(d int) {
			defer wg.Done()
			if _, err := svc.AdjustStock(ctx, product.SKU, domain.StockAdjustmentRequest{
				Delta:  d,
				Reason: "parallel test",
			}); err != nil {
				t.Errorf("adjust: %v", err)
			}
		}(delta)
	}
	wg.Wait()

	current, err := svc.GetProduct(ctx, product.SKU)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	derived, err := repo.ProjectStock(context.Background(), product.SKU)
	if err != nil {
		t.Fatalf("project stock: %v", err)
	}
	if current.QuantityInStock != derived || derived != 100 {
		t.Fatalf("counter=%d fold=%d, want both 100", current.QuantityInStock, derived)
	}
}

func TestDebtSummaryAgingBoundaries(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		days int
		want string
	}{
		{0, domain.BucketDays0to7},
		{6, domain.BucketDays0to7},
		{7, domain.BucketDays7to30},
		{29, domain.BucketDays7to30},
		{30, domain.BucketDays30to60},
		{59, domain.BucketDays30to60},
		{60, domain.BucketDays60to90},
		{90, domain.BucketDays90Plus},
		{400, domain.BucketDays90Plus},
	}
	for _, tc := range cases {
		entry := domain.DebtEntry{CreatedAt: now.Add(-time.Duration(tc.days) * 24 * time.Hour)}
		got := domain.BucketForDays(entry.DaysOutstanding(now))
		if got != tc.want {
			t.Fatalf("%d days: bucket = %s, want %s", tc.days, got, tc.want)
		}
	}
}

func TestDebtSummaryTotalsAndBuckets(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "0.00", 1000)
	ctx := cashierCtx()

	for i := 0; i < 3; i++ {
		if _, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
			ProductSKU: product.SKU,
			Quantity:   2,
			UnitPrice:  money.MustParse("20000.00"),
		}); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	if _, err := svc.RecordPayment(ctx, agent.ID, domain.RecordPaymentRequest{
		Amount: money.MustParse("50000.00"),
		Method: domain.PaymentMethodCash,
	}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	summary, err := svc.DebtSummary(ctx, agent.ID)
	if err != nil {
		t.Fatalf("debt summary: %v", err)
	}
	// 120000 transferred, 50000 paid.
	if got := summary.TotalDebt.String(); got != "70000.00" {
		t.Fatalf("total debt = %s, want 70000.00", got)
	}
	// Payment settled the first entry in full (40000) and 10000 of the
	// second; two entries stay unpaid.
	if summary.UnpaidCount != 2 {
		t.Fatalf("unpaid count = %d, want 2", summary.UnpaidCount)
	}
	if got := summary.DebtByAge[domain.BucketDays0to7].String(); got != "70000.00" {
		t.Fatalf("fresh bucket = %s, want 70000.00", got)
	}
}

func TestRecordPaymentReportsRemainder(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "0.00", 100)
	ctx := cashierCtx()

	if _, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   1,
		UnitPrice:  money.MustParse("20000.00"),
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	result, err := svc.RecordPayment(ctx, agent.ID, domain.RecordPaymentRequest{
		Amount: money.MustParse("25000.00"),
		Method: domain.PaymentMethodMobileMoney,
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if got := result.Payment.Amount.String(); got != "25000.00" {
		t.Fatalf("recorded payment = %s, want full 25000.00", got)
	}
	if got := result.AppliedTotal.String(); got != "20000.00" {
		t.Fatalf("applied = %s, want 20000.00", got)
	}
	if got := result.Remainder.String(); got != "5000.00" {
		t.Fatalf("remainder = %s, want 5000.00", got)
	}
	if !result.NewTotalDebt.IsZero() {
		t.Fatalf("new total debt = %s, want 0.00", result.NewTotalDebt)
	}
}

func TestReturnStockKeepsDebtOpen(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "0.00", 100)
	ctx := cashierCtx()

	if _, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   5,
		UnitPrice:  money.MustParse("20000.00"),
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := svc.ReturnStock(ctx, agent.ID, domain.ReturnStockRequest{
		ProductSKU: product.SKU,
		Quantity:   5,
	}); err != nil {
		t.Fatalf("return: %v", err)
	}

	summary, err := svc.DebtSummary(ctx, agent.ID)
	if err != nil {
		t.Fatalf("debt summary: %v", err)
	}
	if got := summary.TotalDebt.String(); got != "100000.00" {
		t.Fatalf("debt after return = %s, want unchanged 100000.00", got)
	}
	current, _ := svc.GetProduct(ctx, product.SKU)
	if current.QuantityInStock != 100 || current.QuantityInField != 0 {
		t.Fatalf("counters = %d/%d after full return, want 100/0", current.QuantityInStock, current.QuantityInField)
	}
}

func TestReconciliationLifecycleAndIdempotentCorrections(t *testing.T) {
	svc := newTestService(t)
	_, product := setupAgentAndProduct(t, svc, "0.00", 30)

	rec, err := svc.StartReconciliation(cashierCtx(), domain.ReconciliationStartRequest{
		Type: domain.ReconciliationTypeMonthly,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.RecordCount(cashierCtx(), rec.ID, domain.RecordCountRequest{
		ProductSKU:        product.SKU,
		PhysicalCount:     27,
		DiscrepancyReason: "two broken, one missing",
	}); err != nil {
		t.Fatalf("record count: %v", err)
	}

	// Corrections before approval are rejected.
	if _, err := svc.CreateCorrections(ownerCtx(), rec.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("corrections while in progress: err = %v, want ErrInvalidState", err)
	}

	if _, err := svc.CompleteReconciliation(cashierCtx(), rec.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Counting after completion is rejected.
	if _, err := svc.RecordCount(cashierCtx(), rec.ID, domain.RecordCountRequest{
		ProductSKU:    product.SKU,
		PhysicalCount: 26,
	}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("count after complete: err = %v, want ErrInvalidState", err)
	}

	if _, err := svc.ApproveReconciliation(cashierCtx(), rec.ID); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("cashier approve: err = %v, want ErrOwnerRequired", err)
	}
	if _, err := svc.ApproveReconciliation(ownerCtx(), rec.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	first, err := svc.CreateCorrections(ownerCtx(), rec.ID)
	if err != nil {
		t.Fatalf("corrections: %v", err)
	}
	if first.CorrectionsCreated != 1 {
		t.Fatalf("first corrections = %d, want 1", first.CorrectionsCreated)
	}

	// The second call finds everything already corrected.
	second, err := svc.CreateCorrections(ownerCtx(), rec.ID)
	if err != nil {
		t.Fatalf("second corrections: %v", err)
	}
	if second.CorrectionsCreated != 0 {
		t.Fatalf("second corrections = %d, want 0", second.CorrectionsCreated)
	}

	current, _ := svc.GetProduct(ownerCtx(), product.SKU)
	if current.QuantityInStock != 27 {
		t.Fatalf("stock after correction = %d, want 27", current.QuantityInStock)
	}
}

func TestReconciliationRejectPaths(t *testing.T) {
	svc := newTestService(t)

	rec, err := svc.StartReconciliation(cashierCtx(), domain.ReconciliationStartRequest{
		Type: domain.ReconciliationTypeSpotCheck,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	rejected, err := svc.RejectReconciliation(ownerCtx(), rec.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.ReconciliationRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	// A rejected count cannot move again.
	if _, err := svc.CompleteReconciliation(cashierCtx(), rec.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("complete after reject: err = %v, want ErrInvalidState", err)
	}
	if _, err := svc.ApproveReconciliation(ownerCtx(), rec.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("approve after reject: err = %v, want ErrInvalidState", err)
	}
}

func TestOwnerOnlyOperations(t *testing.T) {
	svc := newTestService(t)
	_, product := setupAgentAndProduct(t, svc, "0.00", 10)
	ctx := cashierCtx()

	if _, err := svc.AdjustStock(ctx, product.SKU, domain.StockAdjustmentRequest{Delta: -1, Reason: "x"}); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("cashier adjust: err = %v, want ErrOwnerRequired", err)
	}
	if _, err := svc.RecomputeStock(ctx, product.SKU); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("cashier recompute: err = %v, want ErrOwnerRequired", err)
	}
	if _, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{}); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("cashier create product: err = %v, want ErrOwnerRequired", err)
	}
	if _, err := svc.ListAuditLogs(ctx, "", 10); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("cashier audit logs: err = %v, want ErrOwnerRequired", err)
	}
}

func TestCreateSaleCashChangeAndCode(t *testing.T) {
	svc := newTestService(t)
	_, product := setupAgentAndProduct(t, svc, "0.00", 50)

	sale, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{
			{ProductSKU: product.SKU, Quantity: 2},
		},
		PaymentMethod: domain.PaymentMethodCash,
		AmountPaid:    money.MustParse("50000.00"),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	// 2 * 20000 catalog price.
	if got := sale.TotalAmount.String(); got != "40000.00" {
		t.Fatalf("total = %s, want 40000.00", got)
	}
	if got := sale.ChangeGiven.String(); got != "10000.00" {
		t.Fatalf("change = %s, want 10000.00", got)
	}
	wantPrefix := "TXN-" + time.Now().UTC().Format("20060102") + "-"
	if len(sale.Code) != len(wantPrefix)+4 || sale.Code[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("sale code = %s, want prefix %sNNNN", sale.Code, wantPrefix)
	}

	summary, err := svc.DailySalesSummary(cashierCtx(), time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("daily summary: %v", err)
	}
	if summary.Transactions != 1 || summary.TotalSales.String() != "40000.00" {
		t.Fatalf("summary = %+v, want 1 transaction of 40000.00", summary)
	}
}

func TestCreateSaleInsufficientCashRejected(t *testing.T) {
	svc := newTestService(t)
	_, product := setupAgentAndProduct(t, svc, "0.00", 50)

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Items:         []domain.SaleLineRequest{{ProductSKU: product.SKU, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCash,
		AmountPaid:    money.MustParse("1000.00"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("underpaid cash sale: err = %v, want ErrValidation", err)
	}
}

func TestCreateSaleUnknownSKUNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Items:         []domain.SaleLineRequest{{ProductSKU: "NOPE-404", Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCash,
		AmountPaid:    money.MustParse("10000.00"),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("sale with unknown sku: err = %v, want ErrNotFound", err)
	}
}

func TestTargetedPaymentRejectsForeignEntries(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "0.00", 100)
	ctx := cashierCtx()

	other, err := svc.CreateAgent(ctx, domain.AgentCreateRequest{
		FullName:    "Other Agent",
		PhoneNumber: "0812-0000-8888",
	})
	if err != nil {
		t.Fatalf("create other agent: %v", err)
	}
	entry, err := svc.TransferStock(ctx, other.ID, domain.TransferStockRequest{
		ProductSKU: product.SKU,
		Quantity:   1,
		UnitPrice:  money.MustParse("20000.00"),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	_, err = svc.RecordPayment(ctx, agent.ID, domain.RecordPaymentRequest{
		Amount:   money.MustParse("20000.00"),
		Method:   domain.PaymentMethodCash,
		EntryIDs: []string{entry.ID},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign target: err = %v, want ErrNotFound", err)
	}
}

func TestDebtSummaryUsesCache(t *testing.T) {
	t.Setenv("SEED_OWNER_PASSWORD", "test-owner-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "test-cashier-pass")
	repo := memory.NewSeeded()
	summaries := &countingCache{inner: map[string]*domain.DebtSummary{}}
	svc := New(repo, summaries, "main-shop", time.Minute)
	ctx := cashierCtx()

	agent, err := svc.CreateAgent(ctx, domain.AgentCreateRequest{
		FullName:    "Cache Agent",
		PhoneNumber: "0812-0000-7777",
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	if _, err := svc.DebtSummary(ctx, agent.ID); err != nil {
		t.Fatalf("first summary: %v", err)
	}
	if _, err := svc.DebtSummary(ctx, agent.ID); err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if summaries.sets != 1 {
		t.Fatalf("cache sets = %d, want 1 (second read from cache)", summaries.sets)
	}
}

type countingCache struct {
	mu    sync.Mutex
	inner map[string]*domain.DebtSummary
	sets  int
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.DebtSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.inner[key]
	return v, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.DebtSummary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner[key] = value
	c.sets++
	return nil
}

func (c *countingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inner, key)
	return nil
}

func TestManyTransfersThenSettleAllFIFO(t *testing.T) {
	svc := newTestService(t)
	agent, product := setupAgentAndProduct(t, svc, "0.00", 1000)
	ctx := cashierCtx()

	for i := 1; i <= 3; i++ {
		if _, err := svc.TransferStock(ctx, agent.ID, domain.TransferStockRequest{
			ProductSKU: product.SKU,
			Quantity:   i,
			UnitPrice:  money.MustParse("100.00"),
			Notes:      fmt.Sprintf("batch %d", i),
		}); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}

	// Entries are 100, 200, 300; paying 250 clears the first and half
	// of the second.
	result, err := svc.RecordPayment(ctx, agent.ID, domain.RecordPaymentRequest{
		Amount: money.MustParse("250.00"),
		Method: domain.PaymentMethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if len(result.UpdatedEntries) != 2 {
		t.Fatalf("updated %d entries, want 2", len(result.UpdatedEntries))
	}
	if !result.UpdatedEntries[0].IsPaid || result.UpdatedEntries[1].IsPaid {
		t.Fatalf("FIFO order broken: %+v", result.UpdatedEntries)
	}
	if got := result.NewTotalDebt.String(); got != "350.00" {
		t.Fatalf("remaining debt = %s, want 350.00", got)
	}
}
