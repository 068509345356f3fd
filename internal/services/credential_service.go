// Package services – CredentialService
//
// Verifiable credentials attest to a user's debt standing, e.g. that a loan
// was paid off. Issuing signs a compact HS256 JWT over the claim and stores it
// alongside the row; revocation keeps the row and stamps revoked_at so
// verifiers can check status by id.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/repo"
)

// credentialIssuer is the iss claim stamped on every credential JWT.
const credentialIssuer = "debtease"

// CredentialClaims is the JWT payload of an issued credential.
type CredentialClaims struct {
	CredentialType string  `json:"credential_type"`
	DebtID         *string `json:"debt_id,omitempty"`
	jwt.RegisteredClaims
}

// CredentialService issues, lists, and revokes verifiable credentials.
type CredentialService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Secret signs credential JWTs. Must not be empty in production.
	Secret []byte
	// TTL bounds credential validity; zero means no exp claim.
	TTL time.Duration
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewCredentialService constructs a CredentialService signing with secret.
func NewCredentialService(db *gorm.DB, secret string, ttl time.Duration) *CredentialService {
	return &CredentialService{DB: db, Secret: []byte(secret), TTL: ttl}
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Issue signs and stores a credential of the given type for userID. When
// debtID is non-nil it scopes the credential to that debt.
func (s *CredentialService) Issue(ctx context.Context, userID, credType string, debtID *string) (*domain.VerifiableCredential, error) {
	ve := &ValidationError{}
	if strings.TrimSpace(credType) == "" {
		ve.add("type", "must not be blank")
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	now := s.now()
	id := uuid.NewString()

	claims := CredentialClaims{
		CredentialType: credType,
		DebtID:         debtID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       id,
			Issuer:   credentialIssuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.TTL))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return nil, err
	}

	c := &domain.VerifiableCredential{
		ID:       id,
		UserID:   userID,
		DebtID:   debtID,
		Type:     credType,
		VCJWT:    &signed,
		Status:   domain.CredentialIssued,
		IssuedAt: now,
	}
	if err := repo.CreateCredential(ctx, s.DB, c); err != nil {
		if errors.Is(err, repo.ErrReference) {
			return nil, ErrReference
		}
		return nil, err
	}
	return c, nil
}

// Get fetches a credential owned by userID, or ErrCredentialNotFound.
func (s *CredentialService) Get(ctx context.Context, userID, id string) (*domain.VerifiableCredential, error) {
	c, err := repo.GetCredential(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	return c, err
}

// List returns the user's credentials, newest first.
func (s *CredentialService) List(ctx context.Context, userID string) ([]domain.VerifiableCredential, error) {
	return repo.ListCredentials(ctx, s.DB, userID)
}

// Revoke marks an issued credential revoked. A missing, foreign, or already
// revoked credential surfaces as ErrCredentialNotFound.
func (s *CredentialService) Revoke(ctx context.Context, userID, id string) (*domain.VerifiableCredential, error) {
	if err := repo.RevokeCredential(ctx, s.DB, id, userID, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return repo.GetCredential(ctx, s.DB, id, userID)
}

// Verify parses and validates a credential JWT against the service secret and
// checks revocation status in the store. Returns the claims on success.
func (s *CredentialService) Verify(ctx context.Context, token string) (*CredentialClaims, error) {
	claims := &CredentialClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Secret, nil
	}, jwt.WithIssuer(credentialIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrCredentialNotFound
	}

	c, err := repo.GetCredential(ctx, s.DB, claims.ID, claims.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CredentialIssued {
		return nil, ErrCredentialNotFound
	}
	return claims, nil
}
