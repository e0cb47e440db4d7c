package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"terrasync/internal/platform/middleware"
	id "terrasync/pkg/domain"
	dErrors "terrasync/pkg/domain-errors"
)

// Claims carried by collector device tokens. Tokens are issued by the
// registry's user-management side; this core only validates them.
type Claims struct {
	CollectorID string `json:"collector_id"`
	DeviceID    string `json:"device_id"`
	jwt.RegisteredClaims
}

// JWTService handles token creation and validation for sync endpoints.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateCollectorToken mints a token for a collector device. Used by dev
// tooling and tests; production tokens come from the identity side.
func (s *JWTService) GenerateCollectorToken(collectorID id.CollectorID, deviceID string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		CollectorID: collectorID.String(),
		DeviceID:    deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ValidateToken parses and verifies a collector token.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.Wrap(dErrors.CodeUnauthorized, "invalid token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	collectorID, err := id.ParseCollectorID(claims.CollectorID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid collector id in token")
	}
	return &middleware.TokenClaims{
		CollectorID: collectorID,
		DeviceID:    claims.DeviceID,
	}, nil
}
