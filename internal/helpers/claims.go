package helpers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ReasonNoHeader           = "no_header"
	ReasonNoToken            = "no_token"
	ReasonTokenExpired       = "token_expired"
	ReasonTokenMalformed     = "token_malformed"
	ReasonVerificationFailed = "token_verification_failed"

	bearerPrefix = "Bearer "
)

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Caller is the verified identity attached to a request by the auth middleware.
type Caller struct {
	ID   primitive.ObjectID `json:"id"`
	Role string             `json:"role"`
}

func (c *Caller) IsAdmin() bool {
	return c.Role == "admin"
}

func (c *Caller) HasRole(role string) bool {
	return c.Role == role
}

func (c *Caller) IsOwner(userID primitive.ObjectID) bool {
	return c.ID == userID
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
}

func NewTokenManager(secret string, ttl time.Duration, issuer string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithIssuer(issuer),
		),
	}
}

func (tm *TokenManager) Issue(userID primitive.ObjectID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate turns an Authorization header value into a Caller. Every failure is
// an Unauthenticated AppError whose Reason tells the client whether to refresh or
// log in again.
func (tm *TokenManager) Authenticate(header string) (*Caller, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, Unauthenticated("Authentication required", ReasonNoHeader)
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" || token == strings.TrimSpace(bearerPrefix) {
		return nil, Unauthenticated("Authentication required", ReasonNoToken)
	}
	return tm.Verify(token)
}

func (tm *TokenManager) Verify(tokenStr string) (*Caller, error) {
	claims := &Claims{}
	_, err := tm.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, Unauthenticated("Token expired", ReasonTokenExpired)
		case errors.Is(err, jwt.ErrTokenMalformed),
			errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, Unauthenticated("Invalid token", ReasonTokenMalformed)
		default:
			return nil, &AppError{
				Kind:    KindUnauthenticated,
				Message: "Token verification failed",
				Reason:  ReasonVerificationFailed,
				Err:     err,
			}
		}
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, Unauthenticated("Invalid token", ReasonTokenMalformed)
	}
	return &Caller{ID: userID, Role: claims.Role}, nil
}
