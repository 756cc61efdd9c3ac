package jwttoken

import (
	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
	authmw "proofid/pkg/platform/middleware/auth"
)

type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	principal, err := id.ParsePrincipal(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token subject is not a principal")
	}
	return &authmw.Claims{Principal: principal, TokenID: claims.ID}, nil
}
