package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"englearn/internal/models"
)

const testUserID = "4f1c2b9e-8a57-4c1e-9a59-3f8e2f6f0b11"

func newStoreWithMock(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var userColumnNames = []string{
	"id", "email", "password_hash", "full_name", "current_level", "learning_goals", "avatar_url",
	"is_active", "is_verified", "is_premium", "is_staff", "is_admin",
	"verification_token", "reset_password_token", "reset_password_expires_at",
	"created_at", "updated_at",
}

func userRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(userColumnNames).AddRow(
		testUserID, "alice@example.com", "$argon2id$hash", "Alice Doe", "B1", []string{"travel"}, nil,
		true, false, false, false, false,
		nil, nil, nil,
		now, now,
	)
}

func TestInsertUser_AssignsIDAndTimestamps(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(anyArgs(15)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testUserID, now, now))

	user := models.User{Email: "alice@example.com", FullName: "Alice Doe", CurrentLevel: models.LevelA1}
	require.NoError(t, store.InsertUser(context.Background(), &user))

	assert.Equal(t, testUserID, user.ID)
	assert.Equal(t, now, user.CreatedAt)
	assert.Equal(t, now, user.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUser_UniqueViolations(t *testing.T) {
	cases := []struct {
		name       string
		constraint string
		want       error
	}{
		{"email", "users_email_key", ErrEmailTaken},
		{"other constraint", "users_verification_token_key", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock := newStoreWithMock(t)
			pgErr := &pgconn.PgError{Code: "23505", ConstraintName: tc.constraint}
			mock.ExpectQuery(`INSERT INTO users`).
				WithArgs(anyArgs(15)...).
				WillReturnError(pgErr)

			err := store.InsertUser(context.Background(), &models.User{Email: "alice@example.com"})
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			} else {
				assert.NotErrorIs(t, err, ErrEmailTaken)
				assert.ErrorAs(t, err, &pgErr)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindByID_ScansUser(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM users WHERE id = \$1$`).
		WithArgs(testUserID).
		WillReturnRows(userRow(now))

	user, err := store.FindByID(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, testUserID, user.ID)
	assert.Equal(t, []byte("$argon2id$hash"), user.PasswordHash)
	assert.Equal(t, models.LevelB1, user.CurrentLevel)
	assert.Equal(t, []string{"travel"}, user.LearningGoals)
	assert.Nil(t, user.AvatarURL)
	assert.True(t, user.IsActive)
	assert.Nil(t, user.ResetPasswordExpiresAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFind_NoRows(t *testing.T) {
	cases := map[string]struct {
		column string
		find   func(*PostgresStore) error
		want   error
	}{
		"by email": {`email`, func(s *PostgresStore) error {
			_, err := s.FindByEmail(context.Background(), "nobody@example.com")
			return err
		}, ErrUserNotFound},
		"by reset token": {`reset_password_token`, func(s *PostgresStore) error {
			_, err := s.FindByResetToken(context.Background(), "tok")
			return err
		}, ErrUserNotFound},
		"by verification token": {`verification_token`, func(s *PostgresStore) error {
			_, err := s.FindByVerificationToken(context.Background(), "tok")
			return err
		}, ErrUserNotFound},
		"preferences": {`user_id`, func(s *PostgresStore) error {
			_, err := s.FindPreferences(context.Background(), testUserID)
			return err
		}, ErrPreferencesNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store, mock := newStoreWithMock(t)
			mock.ExpectQuery(`WHERE ` + tc.column + ` = \$1$`).
				WithArgs(pgxmock.AnyArg()).
				WillReturnError(pgx.ErrNoRows)

			assert.ErrorIs(t, tc.find(store), tc.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateUser_Missing(t *testing.T) {
	store, mock := newStoreWithMock(t)
	mock.ExpectQuery(`UPDATE users SET`).
		WithArgs(anyArgs(15)...).
		WillReturnError(pgx.ErrNoRows)

	err := store.UpdateUser(context.Background(), &models.User{ID: testUserID})
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPreferences_Duplicate(t *testing.T) {
	store, mock := newStoreWithMock(t)
	mock.ExpectQuery(`INSERT INTO user_preferences`).
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "user_preferences_user_id_key"})

	prefs := models.DefaultPreferences("", testUserID)
	assert.ErrorIs(t, store.InsertPreferences(context.Background(), &prefs), ErrPreferencesExist)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearExpiredResetTokens_ReportsAffectedRows(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE users\s+SET reset_password_token = NULL`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	cleared, err := store.ClearExpiredResetTokens(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleared)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_LocksRowsForUpdate(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE$`).
		WithArgs(testUserID).
		WillReturnRows(userRow(now))
	mock.ExpectQuery(`UPDATE users SET`).
		WithArgs(anyArgs(15)...).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Store) error {
		user, err := tx.FindByID(ctx, testUserID)
		if err != nil {
			return err
		}
		user.IsActive = false
		return tx.UpdateUser(ctx, &user)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now().UTC()
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(anyArgs(15)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testUserID, now, now))
	mock.ExpectQuery(`INSERT INTO user_preferences`).
		WithArgs(anyArgs(12)...).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Store) error {
		user := models.User{Email: "alice@example.com"}
		if err := tx.InsertUser(ctx, &user); err != nil {
			return err
		}
		prefs := models.DefaultPreferences("", user.ID)
		return tx.InsertPreferences(ctx, &prefs)
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
