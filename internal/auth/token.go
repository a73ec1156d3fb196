// Package auth issues and verifies the bearer tokens held by guests and
// registered participants.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cogscreen-go/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token has expired")
)

// Role of a token holder.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
)

const (
	GuestTTL = 30 * time.Minute
	UserTTL  = 2 * time.Hour
)

// GuestScores are the clinical scores a guest enters at intake.
type GuestScores struct {
	CDRSum    float64 `json:"cdrSum"`
	CDRMemory float64 `json:"cdrMemory"`
	CDRGlob   float64 `json:"cdrGlob"`
	NACCMMSE  int     `json:"naccMmse"`
}

// GuestRequest is the raw intake form. Values may be numbers or numeric
// strings.
type GuestRequest struct {
	CDRSum    any `json:"cdrSum"`
	CDRMemory any `json:"cdrMemory"`
	CDRGlob   any `json:"cdrGlob"`
	NACCMMSE  any `json:"naccMmse"`
}

// Validate checks every field and returns the normalized scores.
func (r GuestRequest) Validate() (GuestScores, error) {
	var (
		s   GuestScores
		err error
	)
	if s.CDRSum, err = utils.ValidateCDRSum(r.CDRSum); err != nil {
		return s, err
	}
	if s.CDRMemory, err = utils.ValidateCDRScore("CDRMEMORY", r.CDRMemory); err != nil {
		return s, err
	}
	if s.CDRGlob, err = utils.ValidateCDRScore("CDRGLOB", r.CDRGlob); err != nil {
		return s, err
	}
	if s.NACCMMSE, err = utils.ValidateMMSE(r.NACCMMSE); err != nil {
		return s, err
	}
	return s, nil
}

// Claims carried by every token. Guest tokens also carry the intake scores
// so the server can use them without a database row.
type Claims struct {
	jwt.RegisteredClaims
	Role  Role         `json:"role"`
	Guest *GuestScores `json:"guest,omitempty"`
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is empty")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for subject.
func (i *Issuer) Issue(subject string, role Role, ttl time.Duration, guest *GuestScores) (string, time.Time, error) {
	now := i.now().UTC()
	expires := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role:  role,
		Guest: guest,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// IssueGuest starts an anonymous session with a fresh subject.
func (i *Issuer) IssueGuest(scores GuestScores) (string, time.Time, error) {
	return i.Issue(uuid.NewString(), RoleGuest, GuestTTL, &scores)
}

// Parse verifies a token and returns its claims. Only guest and user roles
// are accepted.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleGuest && claims.Role != RoleUser {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
