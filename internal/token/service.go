// Package token issues, validates, rotates and revokes the signed access and
// refresh tokens. Revoked tokens are tracked by SHA-256 hash only.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/security"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

var errInvalidRefresh = apperror.New(apperror.KindInvalidRefreshToken, "Invalid or expired refresh token")

// RevocationStore is the append-only set of revoked token hashes.
type RevocationStore interface {
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	// Revoke inserts tokenHash if absent and reports whether it was inserted.
	Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) (bool, error)
}

// Config holds the token policy.
type Config struct {
	SigningKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service handles token issuance and validation
type Service struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    RevocationStore
	log        *logrus.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService initializes a token service. The signing key must be non-empty.
func NewService(cfg Config, revoked RevocationStore, log *logrus.Logger, opts ...Option) (*Service, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("token signing key is required")
	}
	s := &Service{
		signingKey: append([]byte(nil), cfg.SigningKey...),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		revoked:    revoked,
		log:        log,
		now:        time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssuePair signs a fresh access and refresh token for subject
func (s *Service) IssuePair(subject string) (models.TokenPair, error) {
	access, err := s.sign(subject, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.sign(subject, s.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(subject string, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parse verifies the signature and expiry and returns the claims.
func (s *Service) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// isRevoked checks the revocation set. A store failure counts as revoked so
// validation fails closed.
func (s *Service) isRevoked(ctx context.Context, tokenString string) bool {
	start := time.Now()
	defer func() {
		metrics.RevocationCheckDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	hash := security.HashToken(tokenString)
	revoked, err := s.revoked.IsRevoked(ctx, hash)
	if err != nil {
		s.log.Errorf("Revocation check failed for token %s: %v", hash, err)
		return true
	}
	return revoked
}

// ValidateAccess reports whether token is unrevoked, correctly signed and unexpired.
// It never returns an error; anything malformed is simply invalid.
func (s *Service) ValidateAccess(ctx context.Context, tokenString string) bool {
	if tokenString == "" {
		metrics.TokenValidations.WithLabelValues("access", "malformed").Inc()
		return false
	}
	if s.isRevoked(ctx, tokenString) {
		s.log.Warn("Token is revoked")
		metrics.TokenValidations.WithLabelValues("access", "revoked").Inc()
		return false
	}
	if _, err := s.parse(tokenString); err != nil {
		s.log.Warnf("Token validation failed: %v", err)
		metrics.TokenValidations.WithLabelValues("access", "invalid").Inc()
		return false
	}
	metrics.TokenValidations.WithLabelValues("access", "valid").Inc()
	return true
}

// ValidateRefresh is ValidateAccess plus an exact subject match and a strictly
// future expiry.
func (s *Service) ValidateRefresh(ctx context.Context, tokenString, expectedSubject string) bool {
	if tokenString == "" {
		metrics.TokenValidations.WithLabelValues("refresh", "malformed").Inc()
		return false
	}
	if s.isRevoked(ctx, tokenString) {
		s.log.Warn("Refresh token is revoked")
		metrics.TokenValidations.WithLabelValues("refresh", "revoked").Inc()
		return false
	}
	claims, err := s.parse(tokenString)
	if err != nil {
		s.log.Warnf("Refresh token invalid: %v", err)
		metrics.TokenValidations.WithLabelValues("refresh", "invalid").Inc()
		return false
	}
	if claims.Subject != expectedSubject {
		s.log.Warn("Refresh token subject mismatch")
		metrics.TokenValidations.WithLabelValues("refresh", "subject_mismatch").Inc()
		return false
	}
	if !claims.ExpiresAt.Time.After(s.now()) {
		metrics.TokenValidations.WithLabelValues("refresh", "invalid").Inc()
		return false
	}
	metrics.TokenValidations.WithLabelValues("refresh", "valid").Inc()
	return true
}

// Rotate validates oldRefresh, revokes it and issues a new pair. A refresh
// token that was already used, including by a concurrent Rotate, is rejected.
func (s *Service) Rotate(ctx context.Context, subject, oldRefresh string) (models.TokenPair, error) {
	if !s.ValidateRefresh(ctx, oldRefresh, subject) {
		return models.TokenPair{}, errInvalidRefresh
	}

	inserted, err := s.revoke(ctx, oldRefresh)
	if err != nil {
		return models.TokenPair{}, apperror.Wrap(apperror.KindInternal, "failed to revoke refresh token", err)
	}
	if !inserted {
		s.log.Warnf("Refresh token for %s was rotated concurrently", subject)
		return models.TokenPair{}, errInvalidRefresh
	}

	pair, err := s.IssuePair(subject)
	if err != nil {
		return models.TokenPair{}, apperror.Wrap(apperror.KindInternal, "failed to issue tokens", err)
	}
	s.log.Infof("Refresh token rotated for %s", subject)
	return pair, nil
}

// Revoke adds token to the revocation set. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	if _, err := s.revoke(ctx, tokenString); err != nil {
		return apperror.Wrap(apperror.KindInternal, "failed to revoke token", err)
	}
	return nil
}

func (s *Service) revoke(ctx context.Context, tokenString string) (bool, error) {
	hash := security.HashToken(tokenString)
	inserted, err := s.revoked.Revoke(ctx, hash, s.now().UTC())
	if err != nil {
		return false, err
	}
	if inserted {
		metrics.Revocations.Inc()
		s.log.Infof("Token revoked (sha256)=%s", hash)
	}
	return inserted, nil
}

// SubjectOf returns the subject of a correctly signed, unexpired token
// without consulting the revocation set.
func (s *Service) SubjectOf(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", apperror.Wrap(apperror.KindUnauthorized, "invalid token", err)
	}
	return claims.Subject, nil
}
