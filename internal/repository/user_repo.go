package repository

import (
	"context"
	"errors"

	"botplatform_backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the referral/user directory collaborator.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, COALESCE(email, ''), email_verified,
       COALESCE(telegram_id, 0), referred_by, role, created_at`

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// FindReferrer resolves the user who referred the given user, or ErrNotFound
// when there is no recorded referrer.
func (r *UserRepository) FindReferrer(ctx context.Context, userID int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+referrerColumns(`ref`)+`
		FROM users u
		JOIN users ref ON ref.id = u.referred_by
		WHERE u.id = $1
	`, userID)
	return scanUser(row)
}

// CountVerifiedReferrals counts the user's referred users who have completed
// email verification. This is the tier-resolution input.
func (r *UserRepository) CountVerifiedReferrals(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM users
		WHERE referred_by = $1 AND email_verified
	`, userID).Scan(&count)
	return count, err
}

// TelegramChatID resolves the Telegram chat for notification delivery.
// Returns ErrNotFound when the user has no linked Telegram account.
func (r *UserRepository) TelegramChatID(ctx context.Context, userID int64) (int64, error) {
	var chatID *int64
	err := r.db.QueryRow(ctx,
		`SELECT telegram_id FROM users WHERE id = $1`, userID,
	).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if chatID == nil || *chatID == 0 {
		return 0, domain.ErrNotFound
	}
	return *chatID, nil
}

func referrerColumns(alias string) string {
	return alias + `.id, ` + alias + `.username, COALESCE(` + alias + `.email, ''), ` + alias + `.email_verified,
	       COALESCE(` + alias + `.telegram_id, 0), ` + alias + `.referred_by, ` + alias + `.role, ` + alias + `.created_at`
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.EmailVerified,
		&u.TelegramID, &u.ReferrerID, &u.Role, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
