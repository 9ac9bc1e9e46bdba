package auth

import (
	"github.com/angelmondragon/grocery-backend/internal/users"
)

// RegisterRequest carries the sign-up payload.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=4"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message     string         `json:"message"`
	AccessToken string         `json:"access_token"`
	User        *users.UserDTO `json:"user"`

	// AccessID is the token jti; handlers never serialize it.
	AccessID string `json:"-"`
}
