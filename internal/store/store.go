// ABOUTME: Store interfaces and data types for tenantdb persistence
// ABOUTME: Defines User, Movie and the per-tenant data-access contracts

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when an email address is already registered
var ErrDuplicateUser = errors.New("email already taken")

// User is an account. Users live in the default tenant database.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Movie is a tenant-owned record.
type Movie struct {
	ID          int64
	Title       string
	Runtime     int64 // minutes
	ReleaseDate time.Time
}

// DBResolver returns the database of the tenant active in ctx.
// *tenant.Router implements it.
type DBResolver interface {
	DB(ctx context.Context) (*sql.DB, error)
}

// UserStore defines account persistence. Callers scope ctx to the default tenant.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UserExists(ctx context.Context, email string) (bool, error)
	UpdateUserEmail(ctx context.Context, oldEmail, newEmail string) error
}

// MovieStore defines movie persistence in the tenant active in ctx.
type MovieStore interface {
	CreateMovie(ctx context.Context, movie *Movie) error
	GetMovie(ctx context.Context, id int64) (*Movie, error)
	ListMovies(ctx context.Context, limit int) ([]*Movie, error)
	DeleteMovie(ctx context.Context, id int64) error
}

// Store combines every persistence interface.
type Store interface {
	UserStore
	MovieStore
}
