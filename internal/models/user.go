package models

import "time"

type CEFRLevel string

const (
	LevelA1 CEFRLevel = "A1"
	LevelA2 CEFRLevel = "A2"
	LevelB1 CEFRLevel = "B1"
	LevelB2 CEFRLevel = "B2"
)

func (l CEFRLevel) Valid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2:
		return true
	}
	return false
}

// User is the identity record. VerificationToken and ResetPasswordToken hold at
// most one pending single-use value each and are cleared when consumed.
type User struct {
	ID                     string
	Email                  string
	PasswordHash           []byte
	FullName               string
	CurrentLevel           CEFRLevel
	LearningGoals          []string
	AvatarURL              *string
	IsActive               bool
	IsVerified             bool
	IsPremium              bool
	IsStaff                bool
	IsAdmin                bool
	VerificationToken      *string
	ResetPasswordToken     *string
	ResetPasswordExpiresAt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Clone returns a deep copy so stored records never share slices or pointers
// with callers.
func (u User) Clone() User {
	out := u
	out.PasswordHash = append([]byte(nil), u.PasswordHash...)
	out.LearningGoals = append([]string(nil), u.LearningGoals...)
	out.AvatarURL = cloneString(u.AvatarURL)
	out.VerificationToken = cloneString(u.VerificationToken)
	out.ResetPasswordToken = cloneString(u.ResetPasswordToken)
	if u.ResetPasswordExpiresAt != nil {
		t := *u.ResetPasswordExpiresAt
		out.ResetPasswordExpiresAt = &t
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
