package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"englearn/internal/ids"
	"englearn/internal/models"
	"englearn/internal/repository"
	"englearn/internal/security"
)

var reminderTimePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

type AuthService struct {
	store    repository.Store
	hasher   *security.Hasher
	tokens   *security.TokenCodec
	notifier Notifier
	resetTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(
	store repository.Store,
	hasher *security.Hasher,
	tokens *security.TokenCodec,
	notifier Notifier,
	resetTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		resetTTL: resetTTL,
		log:      log,
		now:      time.Now,
	}
}

type AuthResult struct {
	User   models.User
	Tokens security.TokenPair
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
	CurrentLevel    models.CEFRLevel
	LearningGoals   []string
}

type RegisterResult struct {
	AuthResult
	// VerificationToken is returned for the caller to deliver or drop.
	VerificationToken string
}

func (in *RegisterInput) validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return badRequest("Email is required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return badRequest("Email address is not valid")
	}
	if err := validateFullName(in.FullName); err != nil {
		return err
	}
	if in.CurrentLevel == "" {
		in.CurrentLevel = models.LevelA1
	}
	if !in.CurrentLevel.Valid() {
		return badRequest("Current level must be one of A1, A2, B1, B2")
	}
	if err := security.ValidatePasswordPair(in.Password, in.ConfirmPassword); err != nil {
		return badRequest(capitalize(err.Error()))
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	if err := input.validate(); err != nil {
		return RegisterResult{}, err
	}

	if _, err := s.store.FindByEmail(ctx, input.Email); err == nil {
		return RegisterResult{}, errEmailRegistered
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return RegisterResult{}, s.internal(err, "lookup email")
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return RegisterResult{}, s.internal(err, "hash password")
	}
	verificationToken, err := security.GenerateSingleUseToken()
	if err != nil {
		return RegisterResult{}, s.internal(err, "generate verification token")
	}

	goals := input.LearningGoals
	if goals == nil {
		goals = []string{}
	}
	user := models.User{
		Email:             input.Email,
		PasswordHash:      passwordHash,
		FullName:          input.FullName,
		CurrentLevel:      input.CurrentLevel,
		LearningGoals:     goals,
		IsActive:          true,
		IsVerified:        false,
		IsPremium:         false,
		VerificationToken: &verificationToken,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.InsertUser(ctx, &user); err != nil {
			return err
		}
		prefs := models.DefaultPreferences("", user.ID)
		return tx.InsertPreferences(ctx, &prefs)
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return RegisterResult{}, errEmailRegistered
		}
		return RegisterResult{}, s.internal(err, "register user")
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return RegisterResult{}, err
	}

	s.notifyVerification(ctx, user, verificationToken)
	s.log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("user registered")

	return RegisterResult{
		AuthResult:        AuthResult{User: user, Tokens: tokens},
		VerificationToken: verificationToken,
	}, nil
}

// Authenticate never tells the caller which check failed.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, s.internal(err, "lookup email")
		}
		// Spend the same hashing time as a real check.
		s.hasher.Verify(password, s.dummyDigest())
		return AuthResult{}, errInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return AuthResult{}, errInvalidCredentials
	}
	if !user.IsActive {
		s.log.Info().Str("user_id", user.ID).Msg("login rejected for inactive account")
		return AuthResult{}, errInvalidCredentials
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user authenticated")
	return AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh mints a new pair. The presented refresh token stays valid until its
// own expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (security.TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, security.TokenTypeRefresh)
	if err != nil {
		return security.TokenPair{}, errInvalidToken
	}

	user, err := s.findUser(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return security.TokenPair{}, newError(ErrUnauthorized, "User not found or inactive")
		}
		return security.TokenPair{}, s.internal(err, "lookup user")
	}
	if !user.IsActive {
		return security.TokenPair{}, newError(ErrUnauthorized, "User not found or inactive")
	}

	return s.issueTokens(user)
}

// Logout only acknowledges the request; tokens are stateless and stay valid
// until they expire.
func (s *AuthService) Logout(_ context.Context, user models.User) {
	s.log.Info().Str("user_id", user.ID).Msg("user logged out")
}

func (s *AuthService) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, errUserNotFound
		}
		return models.User{}, s.internal(err, "lookup user")
	}
	return user, nil
}

// ProfileUpdate only touches fields that are non-nil.
type ProfileUpdate struct {
	FullName      *string
	CurrentLevel  *models.CEFRLevel
	LearningGoals *[]string
}

func (u ProfileUpdate) validate() error {
	if u.FullName != nil {
		if err := validateFullName(*u.FullName); err != nil {
			return err
		}
	}
	if u.CurrentLevel != nil && !u.CurrentLevel.Valid() {
		return badRequest("Current level must be one of A1, A2, B1, B2")
	}
	return nil
}

func (u ProfileUpdate) apply(user *models.User) {
	if u.FullName != nil {
		user.FullName = *u.FullName
	}
	if u.CurrentLevel != nil {
		user.CurrentLevel = *u.CurrentLevel
	}
	if u.LearningGoals != nil {
		user.LearningGoals = append([]string{}, (*u.LearningGoals)...)
	}
}

func (s *AuthService) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (models.User, error) {
	if err := update.validate(); err != nil {
		return models.User{}, err
	}

	var user models.User
	err := s.mutateUser(ctx, id, func(u *models.User) error {
		update.apply(u)
		return nil
	}, &user)
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", id).Msg("user profile updated")
	return user, nil
}

func (s *AuthService) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	if !ids.ValidUUID(userID) {
		return models.Preferences{}, errPrefsNotFound
	}
	prefs, err := s.store.FindPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPreferencesNotFound) {
			return models.Preferences{}, errPrefsNotFound
		}
		return models.Preferences{}, s.internal(err, "lookup preferences")
	}
	return prefs, nil
}

// PreferencesUpdate only touches fields that are non-nil.
type PreferencesUpdate struct {
	LanguageInterface     *models.InterfaceLanguage
	Theme                 *models.Theme
	DailyGoal             *int
	ReminderEnabled       *bool
	ReminderTime          *string
	OfflineContentEnabled *bool
	AutoPlayAudio         *bool
	ShowTranslations      *bool
	EmailNotifications    *bool
	PushNotifications     *bool
}

func (u PreferencesUpdate) validate() error {
	if u.LanguageInterface != nil && !u.LanguageInterface.Valid() {
		return badRequest("Interface language must be one of id, en")
	}
	if u.Theme != nil && !u.Theme.Valid() {
		return badRequest("Theme must be one of light, dark, auto")
	}
	if u.DailyGoal != nil && (*u.DailyGoal < models.MinDailyGoal || *u.DailyGoal > models.MaxDailyGoal) {
		return badRequest(fmt.Sprintf("Daily goal must be between %d and %d", models.MinDailyGoal, models.MaxDailyGoal))
	}
	if u.ReminderTime != nil && !reminderTimePattern.MatchString(*u.ReminderTime) {
		return badRequest("Reminder time must use HH:MM format")
	}
	return nil
}

func (u PreferencesUpdate) apply(p *models.Preferences) {
	if u.LanguageInterface != nil {
		p.LanguageInterface = *u.LanguageInterface
	}
	if u.Theme != nil {
		p.Theme = *u.Theme
	}
	if u.DailyGoal != nil {
		p.DailyGoal = *u.DailyGoal
	}
	if u.ReminderEnabled != nil {
		p.ReminderEnabled = *u.ReminderEnabled
	}
	if u.ReminderTime != nil {
		p.ReminderTime = *u.ReminderTime
	}
	if u.OfflineContentEnabled != nil {
		p.OfflineContentEnabled = *u.OfflineContentEnabled
	}
	if u.AutoPlayAudio != nil {
		p.AutoPlayAudio = *u.AutoPlayAudio
	}
	if u.ShowTranslations != nil {
		p.ShowTranslations = *u.ShowTranslations
	}
	if u.EmailNotifications != nil {
		p.EmailNotifications = *u.EmailNotifications
	}
	if u.PushNotifications != nil {
		p.PushNotifications = *u.PushNotifications
	}
}

func (s *AuthService) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (models.Preferences, error) {
	if err := update.validate(); err != nil {
		return models.Preferences{}, err
	}
	if !ids.ValidUUID(userID) {
		return models.Preferences{}, errPrefsNotFound
	}

	var prefs models.Preferences
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		prefs, err = tx.FindPreferences(ctx, userID)
		if err != nil {
			return err
		}
		update.apply(&prefs)
		return tx.UpdatePreferences(ctx, &prefs)
	})
	if err != nil {
		if errors.Is(err, repository.ErrPreferencesNotFound) {
			return models.Preferences{}, errPrefsNotFound
		}
		return models.Preferences{}, s.internal(err, "update preferences")
	}

	s.log.Info().Str("user_id", userID).Msg("user preferences updated")
	return prefs, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, id, current, newPassword, confirm string) error {
	if err := security.ValidatePasswordPair(newPassword, confirm); err != nil {
		return badRequest(capitalize(err.Error()))
	}

	err := s.mutateUser(ctx, id, func(u *models.User) error {
		if !s.hasher.Verify(current, u.PasswordHash) {
			return badRequest("Current password is incorrect")
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return nil
	}, nil)
	if err != nil {
		return err
	}

	s.log.Info().Str("user_id", id).Msg("password changed")
	return nil
}

// RequestPasswordReset returns an empty token and no error when the email is
// unknown, so callers can always answer the same way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	token, err := security.GenerateSingleUseToken()
	if err != nil {
		return "", s.internal(err, "generate reset token")
	}
	expires := s.now().Add(s.resetTTL)

	var user models.User
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		user, err = tx.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		user.ResetPasswordToken = &token
		user.ResetPasswordExpiresAt = &expires
		return tx.UpdateUser(ctx, &user)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Debug().Msg("password reset requested for unknown email")
			return "", nil
		}
		return "", s.internal(err, "store reset token")
	}

	if s.notifier != nil {
		if err := s.notifier.SendPasswordResetEmail(ctx, user, token); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enqueue password reset email failed")
		}
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset requested")
	return token, nil
}

func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirm string) error {
	if err := security.ValidatePasswordPair(newPassword, confirm); err != nil {
		return badRequest(capitalize(err.Error()))
	}

	invalid := badRequest("Invalid or expired reset token")
	if token == "" {
		return invalid
	}

	var userID string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		user, err := tx.FindByResetToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return invalid
			}
			return err
		}
		if user.ResetPasswordExpiresAt != nil && !s.now().Before(*user.ResetPasswordExpiresAt) {
			return invalid
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		user.ResetPasswordToken = nil
		user.ResetPasswordExpiresAt = nil
		userID = user.ID
		return tx.UpdateUser(ctx, &user)
	})
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			return err
		}
		return s.internal(err, "confirm password reset")
	}

	s.log.Info().Str("user_id", userID).Msg("password reset completed")
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return badRequest("Invalid verification token")
	}

	var userID string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		user, err := tx.FindByVerificationToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return badRequest("Invalid verification token")
			}
			return err
		}
		if user.IsVerified {
			return badRequest("Email already verified")
		}
		user.IsVerified = true
		user.VerificationToken = nil
		userID = user.ID
		return tx.UpdateUser(ctx, &user)
	})
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			return err
		}
		return s.internal(err, "verify email")
	}

	s.log.Info().Str("user_id", userID).Msg("email verified")
	return nil
}

// ResendVerification replaces any pending verification token with a new one.
func (s *AuthService) ResendVerification(ctx context.Context, id string) (string, error) {
	token, err := security.GenerateSingleUseToken()
	if err != nil {
		return "", s.internal(err, "generate verification token")
	}

	var user models.User
	err = s.mutateUser(ctx, id, func(u *models.User) error {
		if u.IsVerified {
			return badRequest("Email is already verified")
		}
		u.VerificationToken = &token
		return nil
	}, &user)
	if err != nil {
		return "", err
	}

	s.notifyVerification(ctx, user, token)
	return token, nil
}

func (s *AuthService) SetUserStatus(ctx context.Context, id string, active bool) (models.User, error) {
	var user models.User
	err := s.mutateUser(ctx, id, func(u *models.User) error {
		u.IsActive = active
		return nil
	}, &user)
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", id).Bool("is_active", active).Msg("user status changed")
	return user, nil
}

// Scopes is the scope set a user's tokens carry.
func Scopes(user models.User) []string {
	return security.DeriveScopes(user.IsPremium, user.IsStaff, user.IsAdmin)
}

func (s *AuthService) issueTokens(user models.User) (security.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Email, Scopes(user))
	if err != nil {
		return security.TokenPair{}, s.internal(err, "issue tokens")
	}
	return pair, nil
}

// mutateUser loads, changes and saves a user in one transaction. Errors from
// fn that already carry a service kind pass through untouched.
func (s *AuthService) mutateUser(ctx context.Context, id string, fn func(*models.User) error, out *models.User) error {
	if !ids.ValidUUID(id) {
		return errUserNotFound
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		user, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&user); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, &user); err != nil {
			return err
		}
		if out != nil {
			*out = user
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, repository.ErrUserNotFound):
		return errUserNotFound
	default:
		return s.internal(err, "update user")
	}
}

// findUser treats ids that cannot be user keys as absent.
func (s *AuthService) findUser(ctx context.Context, id string) (models.User, error) {
	if !ids.ValidUUID(id) {
		return models.User{}, repository.ErrUserNotFound
	}
	return s.store.FindByID(ctx, id)
}

func (s *AuthService) notifyVerification(ctx context.Context, user models.User, token string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendVerificationEmail(ctx, user, token); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enqueue verification email failed")
	}
}

func (s *AuthService) dummyDigest() []byte {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			s.log.Error().Err(err).Msg("build dummy password hash")
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// internal logs the storage-level cause and hides it from the caller.
func (s *AuthService) internal(err error, op string) error {
	s.log.Error().Err(err).Str("op", op).Msg("auth service failure")
	return fmt.Errorf("%s: %w", op, ErrInternal)
}

func validateFullName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < 2 || n > 255 {
		return badRequest("Full name must be between 2 and 255 characters")
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
