package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"botplatform_backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ModuleRepository covers the module catalog and the activation collaborator.
type ModuleRepository struct {
	db *pgxpool.Pool
}

func NewModuleRepository(db *pgxpool.Pool) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// GetModule retrieves a capability module by id.
func (r *ModuleRepository) GetModule(ctx context.Context, id int64) (*domain.BotModule, error) {
	var (
		m     domain.BotModule
		price string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, base_price::text, status, created_at
		FROM bot_modules
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &price, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("module %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.BasePrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("scan base_price: %w", err)
	}
	return &m, nil
}

// ActiveActivation returns the active activation for a (bot, module) pair, or
// nil when none exists.
func (r *ModuleRepository) ActiveActivation(ctx context.Context, botID, moduleID int64) (*domain.ModuleActivation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, bot_id, module_id, markup_percentage::text, active, activated_at, deactivated_at
		FROM module_activations
		WHERE bot_id = $1 AND module_id = $2 AND active
	`, botID, moduleID)

	a, err := scanActivation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// Activate creates an active activation for the pair. The partial unique
// index on (bot_id, module_id) WHERE active makes concurrent duplicate
// activation impossible; a conflict surfaces as ErrAlreadyActivated.
func (r *ModuleRepository) Activate(ctx context.Context, botID, moduleID int64, markupPct decimal.Decimal) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO module_activations (bot_id, module_id, markup_percentage, active)
		VALUES ($1, $2, $3::numeric, true)
		RETURNING id
	`, botID, moduleID, markupPct.String()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrAlreadyActivated
		}
		return 0, err
	}
	return id, nil
}

// Deactivate switches off an activation. Idempotent: deactivating an already
// inactive activation is not an error, a missing one is.
func (r *ModuleRepository) Deactivate(ctx context.Context, activationID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE module_activations
		SET active = false, deactivated_at = $2
		WHERE id = $1 AND active
	`, activationID, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM module_activations WHERE id = $1)`, activationID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("activation %d: %w", activationID, domain.ErrNotFound)
	}
	return nil
}

func scanActivation(row pgx.Row) (*domain.ModuleActivation, error) {
	var (
		a      domain.ModuleActivation
		markup string
	)
	if err := row.Scan(&a.ID, &a.BotID, &a.ModuleID, &markup, &a.Active, &a.ActivatedAt, &a.DeactivatedAt); err != nil {
		return nil, err
	}
	m, err := decimal.NewFromString(markup)
	if err != nil {
		return nil, fmt.Errorf("scan markup: %w", err)
	}
	a.MarkupPercent = m
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == pgUniqueViolation
}
