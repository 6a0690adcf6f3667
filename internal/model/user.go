package model

import "time"

// User represents a staff or administrative account as stored in the
// `users` table.  Visitors do not have accounts; users exist so that
// catalog administration and gate validation can be tied to a
// signed-in identity.
//
// Fields:
//  ID           – uuid primary key.
//  Name         – display name.
//  Email        – unique lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – admin, staff or user.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           string    // users.id
    Name         string    // users.name
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// Roles accepted for users.
const (
    RoleAdmin = "admin"
    RoleStaff = "staff"
    RoleUser  = "user"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
    return r == RoleAdmin || r == RoleStaff || r == RoleUser
}
