package models

import (
	"github.com/golang-jwt/jwt"
)

// Claims carried by the access token issued by the auth service. The booking
// API only cares about the user id and role; token issuance lives elsewhere.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

const (
	RoleAdmin      = "admin"
	RoleCustomer   = "customer"
	RoleTranslator = "translator"
)
