package auth

import (
	"errors"
	"time"
)

// Roles assignable to users. Role checks happen at the routing layer; core
// services only see the tenant scope.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	CompanyID    int64
	Email        string
	FullName     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPair bundles the tokens returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ErrInvalidCredentials indicates login failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken indicates a malformed, expired or revoked token.
var ErrInvalidToken = errors.New("invalid token")
