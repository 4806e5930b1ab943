package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

// Staff reports whether the role belongs to clinic staff.
func (r Role) Staff() bool { return r == RoleAdmin || r == RoleDoctor }

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleDoctor || r == RolePatient }

// Claims are the signed contents of a bearer token. Subject holds the
// principal id (staff user id or patient id).
type Claims struct {
	jwt.RegisteredClaims
	ClinicID string `json:"clinic_id"`
	Role     Role   `json:"role"`
}

// TokenService issues and verifies stateless HMAC-signed bearer tokens.
type TokenService struct {
	key []byte
	ttl time.Duration
}

// MinKeyBytes is the minimum accepted signing key length.
const MinKeyBytes = 32

func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", MinKeyBytes, len(key))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{key: key, ttl: ttl}, nil
}

// Issue signs a token for the given principal.
func (s *TokenService) Issue(principalID, clinicID uuid.UUID, role Role) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		ClinicID: clinicID.String(),
		Role:     role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Principal is a verified token's identity.
type Principal struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
	Role     Role
}

// Verify parses and validates a bearer token. Tokens signed with anything
// other than HMAC are rejected regardless of their alg header.
func (s *TokenService) Verify(tokenStr string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, httperr.New(httperr.KindUnauthenticated, "invalid or expired token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, httperr.New(httperr.KindUnauthenticated, "invalid or expired token")
	}
	clinicID, err := uuid.Parse(claims.ClinicID)
	if err != nil {
		return nil, httperr.New(httperr.KindUnauthenticated, "invalid or expired token")
	}
	if !claims.Role.Valid() {
		return nil, httperr.New(httperr.KindUnauthenticated, "invalid or expired token")
	}

	return &Principal{ID: id, ClinicID: clinicID, Role: claims.Role}, nil
}
