package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

func connectDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	applyMigrations(t, db)
	return db
}

func createUser(t *testing.T, db *pgxpool.Pool, username string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO users (username, email, email_verified)
		VALUES ($1, $1 || '@example.com', true)
		RETURNING id
	`, username).Scan(&id)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLedgerRepository_AppendAndGet(t *testing.T) {
	db := connectDB(t)
	repo := repository.NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUser(t, db, fmt.Sprintf("append_%d", time.Now().UnixNano()))

	tx := &domain.Transaction{
		UserID:      userID,
		Type:        domain.TypePayment,
		Amount:      d("100.50"),
		Currency:    "USD",
		Status:      domain.StatusPending,
		Description: "Module purchase",
		Meta: &domain.PaymentMeta{
			ModuleID:      1,
			BotID:         2,
			MarkupPercent: d("25"),
			BaseAmount:    d("80.40"),
			MarkupAmount:  d("20.10"),
		},
	}
	if err := repo.Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}
	if tx.ID == 0 || tx.CreatedAt.IsZero() {
		t.Fatal("append did not fill id/created_at")
	}

	got, err := repo.GetByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(d("100.50")) {
		t.Errorf("amount = %s, want 100.50", got.Amount)
	}
	pm, ok := got.Meta.(*domain.PaymentMeta)
	if !ok {
		t.Fatalf("meta decoded as %T, want *PaymentMeta", got.Meta)
	}
	if pm.ModuleID != 1 || !pm.MarkupPercent.Equal(d("25")) {
		t.Errorf("meta roundtrip wrong: %+v", pm)
	}

	// unknown user violates the FK
	bad := &domain.Transaction{
		UserID: -1, Type: domain.TypePayment, Amount: d("1"),
		Currency: "USD", Status: domain.StatusPending, Meta: &domain.PaymentMeta{},
	}
	if err := repo.Append(ctx, bad); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("append for unknown user: got %v, want ErrNotFound", err)
	}

	if _, err := repo.GetByID(ctx, -5); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get missing: got %v, want ErrNotFound", err)
	}
}

func TestLedgerRepository_TransitionCAS(t *testing.T) {
	db := connectDB(t)
	repo := repository.NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUser(t, db, fmt.Sprintf("cas_%d", time.Now().UnixNano()))

	tx := &domain.Transaction{
		UserID: userID, Type: domain.TypePayment, Amount: d("10"),
		Currency: "USD", Status: domain.StatusPending, Meta: &domain.PaymentMeta{},
	}
	if err := repo.Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := repo.TransitionStatus(ctx, tx.ID, domain.StatusPending, domain.StatusCompleted,
		time.Now(), map[string]any{"admin_note": "settled"})
	if err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// replay loses the CAS
	err = repo.TransitionStatus(ctx, tx.ID, domain.StatusPending, domain.StatusCompleted, time.Now(), nil)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("replay: got %v, want ErrInvalidState", err)
	}

	err = repo.TransitionStatus(ctx, -5, domain.StatusPending, domain.StatusCompleted, time.Now(), nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}

	got, err := repo.GetByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.ProcessedAt == nil {
		t.Errorf("status = %s processed_at = %v after transition", got.Status, got.ProcessedAt)
	}
	if pm := got.Meta.(*domain.PaymentMeta); pm.AdminNote != "settled" {
		t.Errorf("patch not merged, note = %q", pm.AdminNote)
	}
}

func TestLedgerRepository_CommissionUniqueness(t *testing.T) {
	db := connectDB(t)
	repo := repository.NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUser(t, db, fmt.Sprintf("comm_%d", time.Now().UnixNano()))

	commission := func(origID int64) *domain.Transaction {
		now := time.Now()
		return &domain.Transaction{
			UserID: userID, Type: domain.TypeCommission, Amount: d("5"),
			Currency: "USD", Status: domain.StatusCompleted, ProcessedAt: &now,
			Meta: &domain.CommissionMeta{ReferralUserID: 1, OriginalTransactionID: origID, Tier: "Bronze"},
		}
	}

	origID := time.Now().UnixNano()
	if err := repo.Append(ctx, commission(origID)); err != nil {
		t.Fatalf("first commission: %v", err)
	}
	if err := repo.Append(ctx, commission(origID)); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("second commission: got %v, want ErrDuplicate", err)
	}
	// a different purchase is fine
	if err := repo.Append(ctx, commission(origID+1)); err != nil {
		t.Fatalf("distinct purchase: %v", err)
	}
}

func TestLedgerRepository_SumAmounts(t *testing.T) {
	db := connectDB(t)
	repo := repository.NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUser(t, db, fmt.Sprintf("sum_%d", time.Now().UnixNano()))

	now := time.Now()
	seed := func(typ domain.TransactionType, status domain.TransactionStatus, amount string) {
		t.Helper()
		var meta domain.Meta
		switch typ {
		case domain.TypeCommission:
			meta = &domain.CommissionMeta{OriginalTransactionID: -time.Now().UnixNano()}
		case domain.TypeWithdrawal:
			meta = &domain.WithdrawalMeta{}
		default:
			meta = &domain.PaymentMeta{}
		}
		tx := &domain.Transaction{
			UserID: userID, Type: typ, Amount: d(amount),
			Currency: "USD", Status: status, Meta: meta,
		}
		if status.Terminal() {
			tx.ProcessedAt = &now
		}
		if err := repo.Append(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	seed(domain.TypeCommission, domain.StatusCompleted, "100")
	seed(domain.TypeCommission, domain.StatusCompleted, "50.25")
	seed(domain.TypePayment, domain.StatusCompleted, "30")
	seed(domain.TypeWithdrawal, domain.StatusPending, "20")

	completed := []domain.TransactionStatus{domain.StatusCompleted}
	credits, err := repo.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypeCommission, domain.TypeRefund}, completed, nil, nil)
	if err != nil {
		t.Fatalf("sum credits: %v", err)
	}
	if !credits.Equal(d("150.25")) {
		t.Errorf("credits = %s, want 150.25", credits)
	}

	// window that excludes everything
	past := now.Add(-48 * time.Hour)
	pastEnd := now.Add(-24 * time.Hour)
	none, err := repo.SumAmounts(ctx, userID, nil, nil, &past, &pastEnd)
	if err != nil {
		t.Fatalf("sum windowed: %v", err)
	}
	if !none.IsZero() {
		t.Errorf("windowed sum = %s, want 0", none)
	}
}

// Concurrent submissions against the same cap must serialize: with a daily
// cap of 1000 and eight 600 requests, exactly one may land.
func TestLedgerRepository_ReserveWithdrawalConcurrent(t *testing.T) {
	db := connectDB(t)
	repo := repository.NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUser(t, db, fmt.Sprintf("reserve_%d", time.Now().UnixNano()))

	now := time.Now()
	if err := repo.Append(ctx, &domain.Transaction{
		UserID: userID, Type: domain.TypeCommission, Amount: d("10000"),
		Currency: "USD", Status: domain.StatusCompleted, ProcessedAt: &now,
		Meta: &domain.CommissionMeta{OriginalTransactionID: -time.Now().UnixNano()},
	}); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	limits := domain.WithdrawalLimits{
		MinAmount:      d("10"),
		MaxAmount:      d("5000"),
		DailyLimit:     d("1000"),
		MonthlyLimit:   d("50000"),
		CommissionRate: d("2"),
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.ReserveWithdrawal(ctx, &domain.Transaction{
				UserID: userID, Type: domain.TypeWithdrawal, Amount: d("600"),
				Currency: "USD", Status: domain.StatusPending,
				Meta: &domain.WithdrawalMeta{Method: "bank", Destination: "acct"},
			}, limits, time.UTC)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrLimitExceeded) {
			t.Errorf("unexpected reserve error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}

	reserved, err := repo.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypeWithdrawal},
		[]domain.TransactionStatus{domain.StatusPending, domain.StatusCompleted}, nil, nil)
	if err != nil {
		t.Fatalf("sum reserved: %v", err)
	}
	if reserved.GreaterThan(limits.DailyLimit) {
		t.Errorf("reserved %s exceeds daily cap %s", reserved, limits.DailyLimit)
	}
}
