package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"garagelive/internal/core/domain"
)

// TokenService verifies bearer credentials. Issuance lives with the
// account system; this side only consumes tokens.
type TokenService struct {
	secretKey []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secretKey: []byte(secret)}
}

// ResolveIdentity parses and validates the JWT string and maps its
// claims to an identity. Any failure is returned to the caller, which
// decides whether to degrade to guest or reject.
func (s *TokenService) ResolveIdentity(tokenStr string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, fmt.Errorf("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return domain.Identity{}, fmt.Errorf("subject not found in token")
	}
	role, _ := claims["role"].(string)
	switch domain.Role(role) {
	case domain.RoleCustomer, domain.RoleMechanic, domain.RoleAdmin:
	default:
		return domain.Identity{}, fmt.Errorf("unknown role %q", role)
	}
	name, _ := claims["name"].(string)
	return domain.Identity{ID: sub, Name: name, Role: domain.Role(role)}, nil
}
