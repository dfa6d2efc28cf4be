package security

const (
	ScopeUser        = "user"
	ScopePremiumUser = "premium_user"
	ScopeAuthor      = "author"
	ScopeModerator   = "moderator"
	ScopeAdmin       = "admin"
	ScopeSuperAdmin  = "super_admin"
)

var scopeRank = map[string]int{
	ScopeUser:        1,
	ScopePremiumUser: 2,
	ScopeAuthor:      3,
	ScopeModerator:   4,
	ScopeAdmin:       5,
	ScopeSuperAdmin:  6,
}

// ScopeRank returns the position of scope in the hierarchy, 0 when unknown.
func ScopeRank(scope string) int {
	return scopeRank[scope]
}

// DeriveScopes maps account flags to scopes. Staff and admin are independent:
// an admin who is not staff does not get author.
func DeriveScopes(isPremium, isStaff, isAdmin bool) []string {
	scopes := []string{ScopeUser}
	if isPremium {
		scopes = append(scopes, ScopePremiumUser)
	}
	if isStaff {
		scopes = append(scopes, ScopeAuthor)
	}
	if isAdmin {
		scopes = append(scopes, ScopeModerator, ScopeAdmin)
	}
	return scopes
}

func HasRequired(held []string, required string) bool {
	level := 0
	for _, scope := range held {
		if r := ScopeRank(scope); r > level {
			level = r
		}
	}
	return level >= ScopeRank(required)
}
