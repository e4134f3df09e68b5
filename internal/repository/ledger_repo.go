package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"botplatform_backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgFKViolation     = "23503"
	pgUniqueViolation = "23505"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same SQL
// helpers serve plain calls and the serialized reserve path.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LedgerRepository is the append/query store over financial transactions.
// Records are immutable once terminal: the only mutation paths after creation
// are the check-and-set status transition and metadata annotation.
type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const transactionColumns = `id, user_id, type, amount::text, currency, status,
       COALESCE(description, ''), COALESCE(provider_ref, ''), meta, created_at, processed_at`

// Append inserts a new transaction and fills in the server-assigned id and
// created_at. A vanished owning user surfaces as ErrNotFound; a uniqueness
// conflict (duplicate commission, reused provider reference) as ErrDuplicate.
func (r *LedgerRepository) Append(ctx context.Context, t *domain.Transaction) error {
	return r.append(ctx, r.db, t)
}

func (r *LedgerRepository) append(ctx context.Context, q querier, t *domain.Transaction) error {
	if !t.Type.Valid() {
		return fmt.Errorf("append: unknown transaction type %q", t.Type)
	}
	if !t.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	metaJSON, err := domain.EncodeMeta(t.Meta)
	if err != nil {
		return fmt.Errorf("append: encode meta: %w", err)
	}

	var providerRef *string
	if t.ProviderRef != "" {
		providerRef = &t.ProviderRef
	}

	err = q.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, currency, status, description, provider_ref, meta, processed_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, t.UserID, string(t.Type), t.Amount.String(), t.Currency, string(t.Status),
		t.Description, providerRef, metaJSON, t.ProcessedAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgFKViolation:
				return fmt.Errorf("user %d: %w", t.UserID, domain.ErrNotFound)
			case pgUniqueViolation:
				return domain.ErrDuplicate
			}
		}
		return err
	}
	return nil
}

// GetByID retrieves a transaction by its id.
func (r *LedgerRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1
	`, id)
	return scanTransaction(row)
}

// GetByProviderRef retrieves the transaction correlated with an external
// payment-provider reference.
func (r *LedgerRepository) GetByProviderRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE provider_ref = $1
	`, ref)
	return scanTransaction(row)
}

// GetByUser lists a user's transactions, most recent first.
func (r *LedgerRepository) GetByUser(ctx context.Context, userID int64, f domain.TransactionFilter) ([]*domain.Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		  AND ($2::text[] IS NULL OR type = ANY($2))
		  AND ($3::text[] IS NULL OR status = ANY($3))
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC
		LIMIT $6
	`, userID, typeStrings(f.Types), statusStrings(f.Statuses), f.From, f.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListByTypeAndStatus lists matching transactions platform-wide, oldest first,
// for admin screens and sweep jobs.
func (r *LedgerRepository) ListByTypeAndStatus(ctx context.Context, typ domain.TransactionType, status domain.TransactionStatus, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE type = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT $3
	`, string(typ), string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// TransitionStatus moves a transaction from one status to another with an
// atomic check-and-set on the current status, making webhook replays and
// duplicate admin actions safe. processed_at is set exactly once; patch is
// merged into the metadata. Returns ErrNotFound for an unknown id and
// ErrInvalidState when the record is not in the expected status.
func (r *LedgerRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.TransactionStatus, processedAt time.Time, patch map[string]any) error {
	if patch == nil {
		patch = map[string]any{}
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("transition: encode patch: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = $3,
		    processed_at = COALESCE(processed_at, $4),
		    meta = meta || $5::jsonb
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), processedAt, patchJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing record from a lost CAS race.
	var current string
	err = r.db.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("transaction %d is %s, not %s: %w", id, current, from, domain.ErrInvalidState)
}

// Annotate merges an admin note into a transaction's metadata. This is the
// only write permitted on terminal records.
func (r *LedgerRepository) Annotate(ctx context.Context, id int64, note string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET meta = jsonb_set(meta, '{admin_note}', to_jsonb($2::text))
		WHERE id = $1
	`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetProviderRef stores the provider correlation id on a still-pending
// transaction.
func (r *LedgerRepository) SetProviderRef(ctx context.Context, id int64, ref string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET provider_ref = $2 WHERE id = $1 AND status = 'pending'
	`, id, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", id, domain.ErrInvalidState)
	}
	return nil
}

// SumAmounts is the single aggregation primitive every derived statistic is
// built from, so balance and stats can never diverge in formula.
func (r *LedgerRepository) SumAmounts(ctx context.Context, userID int64, types []domain.TransactionType, statuses []domain.TransactionStatus, from, to *time.Time) (decimal.Decimal, error) {
	return r.sumAmounts(ctx, r.db, userID, types, statuses, from, to)
}

func (r *LedgerRepository) sumAmounts(ctx context.Context, q querier, userID int64, types []domain.TransactionType, statuses []domain.TransactionStatus, from, to *time.Time) (decimal.Decimal, error) {
	var total string
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM transactions
		WHERE user_id = $1
		  AND ($2::text[] IS NULL OR type = ANY($2))
		  AND ($3::text[] IS NULL OR status = ANY($3))
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
	`, userID, typeStrings(types), statusStrings(statuses), from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}

// ReserveWithdrawal runs the full eligibility evaluation and the pending
// append as one serialized unit. The per-user advisory lock closes the
// read-then-append race: two concurrent requests cannot both observe a
// cap-satisfying sum before either commits.
func (r *LedgerRepository) ReserveWithdrawal(ctx context.Context, t *domain.Transaction, limits domain.WithdrawalLimits, loc *time.Location) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('ledger:withdraw:' || $1::text, 0))`,
		t.UserID,
	); err != nil {
		return err
	}

	credits, err := r.sumAmounts(ctx, tx, t.UserID,
		[]domain.TransactionType{domain.TypeCommission, domain.TypeRefund},
		[]domain.TransactionStatus{domain.StatusCompleted}, nil, nil)
	if err != nil {
		return err
	}
	debits, err := r.sumAmounts(ctx, tx, t.UserID,
		[]domain.TransactionType{domain.TypePayment, domain.TypeWithdrawal},
		[]domain.TransactionStatus{domain.StatusCompleted}, nil, nil)
	if err != nil {
		return err
	}
	balance := credits.Sub(debits)

	now := time.Now()
	reserving := []domain.TransactionStatus{domain.StatusPending, domain.StatusCompleted}
	withdrawals := []domain.TransactionType{domain.TypeWithdrawal}

	dayFrom, dayTo := domain.DayWindow(now, loc)
	dayTotal, err := r.sumAmounts(ctx, tx, t.UserID, withdrawals, reserving, &dayFrom, &dayTo)
	if err != nil {
		return err
	}

	monthFrom, monthTo := domain.MonthWindow(now, loc)
	monthTotal, err := r.sumAmounts(ctx, tx, t.UserID, withdrawals, reserving, &monthFrom, &monthTo)
	if err != nil {
		return err
	}

	if err := domain.EvaluateWithdrawal(t.Amount, balance, dayTotal, monthTotal, limits); err != nil {
		return err
	}

	if err := r.append(ctx, tx, t); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func typeStrings(types []domain.TransactionType) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func statusStrings(statuses []domain.TransactionStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	var (
		t        domain.Transaction
		typ      string
		status   string
		amount   string
		metaJSON []byte
	)

	if err := row.Scan(
		&t.ID, &t.UserID, &typ, &amount, &t.Currency, &status,
		&t.Description, &t.ProviderRef, &metaJSON, &t.CreatedAt, &t.ProcessedAt,
	); err != nil {
		return nil, err
	}

	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(status)

	a, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("scan amount: %w", err)
	}
	t.Amount = a

	meta, err := domain.DecodeMeta(t.Type, metaJSON)
	if err != nil {
		return nil, fmt.Errorf("scan meta: %w", err)
	}
	t.Meta = meta

	return &t, nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var result []*domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
