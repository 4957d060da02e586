// Package tokens issues and verifies the credentials the app hands out:
// signed session and password-reset JWTs, and opaque invitation tokens.
package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	PurposeSession       = "session"
	PurposePasswordReset = "password_reset"

	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = 24 * time.Hour

	// invitationTokenLen nanoid characters at 6 bits each: 258 bits.
	invitationTokenLen = 43

	MinSecretLen = 32
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrWeakSecret   = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLen)
)

// Claims is the JWT body for both session and reset tokens.
type Claims struct {
	Purpose string `json:"purpose"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// Config holds issuer settings. Zero TTLs use the defaults.
type Config struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "taskhub"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		now:        time.Now,
	}, nil
}

// SetClock replaces the time source used for issuing and validation.
func (i *Issuer) SetClock(now func() time.Time) { i.now = now }

func (i *Issuer) sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims.Issuer = i.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

func (i *Issuer) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// IssueSession returns a session token whose subject is the user id.
func (i *Issuer) IssueSession(userID, email, name string) (string, time.Time, error) {
	return i.sign(Claims{
		Purpose:          PurposeSession,
		Email:            email,
		Name:             name,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, i.sessionTTL)
}

// ParseSession verifies a session token.
func (i *Issuer) ParseSession(token string) (*Claims, error) {
	c, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if c.Purpose != PurposeSession || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// IssuePasswordReset returns a reset token bound to email.
func (i *Issuer) IssuePasswordReset(email string) (string, error) {
	s, _, err := i.sign(Claims{
		Purpose:          PurposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{Subject: normEmail(email)},
	}, i.resetTTL)
	return s, err
}

// VerifyPasswordReset checks signature, issuer, expiry, subject and purpose.
func (i *Issuer) VerifyPasswordReset(token, email string) error {
	c, err := i.parse(token, jwt.WithSubject(normEmail(email)))
	if err != nil {
		return err
	}
	if c.Purpose != PurposePasswordReset {
		return ErrInvalidToken
	}
	return nil
}

// NewInvitationToken returns a URL-safe random token with 258 bits of entropy.
func NewInvitationToken() (string, error) {
	return gonanoid.New(invitationTokenLen)
}

func normEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
