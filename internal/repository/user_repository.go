package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"englearn/internal/database"
	"englearn/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on pgx. conn is nil for stores bound to an
// open transaction.
type PostgresStore struct {
	conn database.Conn
	db   database.DBTX
}

func NewPostgresStore(conn database.Conn) *PostgresStore {
	return &PostgresStore{conn: conn, db: conn}
}

func (r *PostgresStore) inTx() bool {
	return r.conn == nil
}

func (r *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if r.inTx() {
		return fn(ctx, r)
	}
	return database.WithTx(ctx, r.conn, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &PostgresStore{db: tx})
	})
}

// lockClause makes reads inside a transaction hold the row until commit, so
// concurrent read-modify-write cycles on one user run one after the other.
func (r *PostgresStore) lockClause() string {
	if r.inTx() {
		return ` FOR UPDATE`
	}
	return ``
}

const userColumns = `
	id, email, password_hash, full_name, current_level, learning_goals, avatar_url,
	is_active, is_verified, is_premium, is_staff, is_admin,
	verification_token, reset_password_token, reset_password_expires_at,
	created_at, updated_at
`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user         models.User
		passwordHash string
		level        string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&user.FullName,
		&level,
		&user.LearningGoals,
		&user.AvatarURL,
		&user.IsActive,
		&user.IsVerified,
		&user.IsPremium,
		&user.IsStaff,
		&user.IsAdmin,
		&user.VerificationToken,
		&user.ResetPasswordToken,
		&user.ResetPasswordExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	user.PasswordHash = []byte(passwordHash)
	user.CurrentLevel = models.CEFRLevel(level)
	return user, nil
}

func (r *PostgresStore) findUserBy(ctx context.Context, column string, value string) (models.User, error) {
	// column is always one of the constants below, never caller input.
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1` + r.lockClause()
	return scanUser(r.db.QueryRow(ctx, query, value))
}

func (r *PostgresStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findUserBy(ctx, "email", email)
}

func (r *PostgresStore) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findUserBy(ctx, "id", id)
}

func (r *PostgresStore) FindByResetToken(ctx context.Context, token string) (models.User, error) {
	return r.findUserBy(ctx, "reset_password_token", token)
}

func (r *PostgresStore) FindByVerificationToken(ctx context.Context, token string) (models.User, error) {
	return r.findUserBy(ctx, "verification_token", token)
}

func (r *PostgresStore) InsertUser(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, full_name, current_level, learning_goals, avatar_url,
			is_active, is_verified, is_premium, is_staff, is_admin,
			verification_token, reset_password_token, reset_password_expires_at,
			created_at, updated_at
		) VALUES (
			COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15,
			NOW(), NOW()
		)
		RETURNING id, created_at, updated_at
	`

	goals := user.LearningGoals
	if goals == nil {
		goals = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		string(user.PasswordHash),
		user.FullName,
		string(user.CurrentLevel),
		goals,
		user.AvatarURL,
		user.IsActive,
		user.IsVerified,
		user.IsPremium,
		user.IsStaff,
		user.IsAdmin,
		user.VerificationToken,
		user.ResetPasswordToken,
		user.ResetPasswordExpiresAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	const query = `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			full_name = $4,
			current_level = $5,
			learning_goals = $6,
			avatar_url = $7,
			is_active = $8,
			is_verified = $9,
			is_premium = $10,
			is_staff = $11,
			is_admin = $12,
			verification_token = $13,
			reset_password_token = $14,
			reset_password_expires_at = $15,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	goals := user.LearningGoals
	if goals == nil {
		goals = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		string(user.PasswordHash),
		user.FullName,
		string(user.CurrentLevel),
		goals,
		user.AvatarURL,
		user.IsActive,
		user.IsVerified,
		user.IsPremium,
		user.IsStaff,
		user.IsAdmin,
		user.VerificationToken,
		user.ResetPasswordToken,
		user.ResetPasswordExpiresAt,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if isUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *PostgresStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET reset_password_token = NULL, reset_password_expires_at = NULL, updated_at = NOW()
		WHERE reset_password_token IS NOT NULL AND reset_password_expires_at <= $1
	`
	cmd, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}
