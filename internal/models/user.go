package models

import "time"

// User represents a row in the PostgreSQL users table.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Category     string    `json:"category"`
	PasswordHash string    `json:"-"` // never serialize
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public view of a user. It omits the email address.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Profile() *Profile {
	return &Profile{ID: u.ID, Username: u.Username, Category: u.Category, CreatedAt: u.CreatedAt}
}

// SignupRequest is the JSON body for POST /auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Category string `json:"category"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}
