package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Audience      = "luxsuv-checkin"
	ScopeCheckin  = "checkin:verify checkin:attend"
	RoleInspector = "inspector"
)

// OperatorClaims identify the inspector running a check-in terminal.
// The subject is the inspector ID.
type OperatorClaims struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

func (c *OperatorClaims) InspectorID() string { return c.Subject }

func NewOperatorToken(inspectorID, name, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		Name:  name,
		Role:  RoleInspector,
		Scope: ScopeCheckin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   inspectorID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{Audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseOperatorToken(tokenString, secret string) (*OperatorClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithAudience(Audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*OperatorClaims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != RoleInspector || claims.Subject == "" {
		return nil, errors.New("token is not an inspector session")
	}
	return claims, nil
}
