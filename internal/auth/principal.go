package auth

import "strconv"

// PrincipalContextKey is the gin context key of the authenticated caller.
const PrincipalContextKey = "principal"

// Principal is whoever a request acts for: a registered participant
// (UserID set) or a guest identified by the token subject.
type Principal struct {
	Subject string
	Role    Role
	UserID  uint
	Guest   *GuestScores
}

// Owner is the results store namespace of the principal.
func (p Principal) Owner() string {
	if p.Role == RoleUser {
		return "user:" + strconv.FormatUint(uint64(p.UserID), 10)
	}
	return "guest:" + p.Subject
}

// FromClaims builds a principal from verified token claims.
func FromClaims(c *Claims) (Principal, error) {
	p := Principal{Subject: c.Subject, Role: c.Role, Guest: c.Guest}
	if c.Role == RoleUser {
		id, err := strconv.ParseUint(c.Subject, 10, 64)
		if err != nil || id == 0 {
			return Principal{}, ErrInvalidToken
		}
		p.UserID = uint(id)
	}
	return p, nil
}
