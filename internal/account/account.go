package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"campusconnect/internal/store"
)

var ErrNotFound = errors.New("account not found")

// Account is the identity record backing every student and faculty profile.
// Exactly one account exists per profile.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// New describes an account to create.
type New struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      string
	Password  string
}

// Repository persists accounts in Postgres.
type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

// GetByUsername returns the account with the given username, or ErrNotFound.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, first_name, last_name, role, password_hash, is_active, created_at
		FROM accounts WHERE username = $1
	`, username)
	var a Account
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.Role, &a.PasswordHash, &a.IsActive, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account with a bcrypt-hashed password.
func (r *Repository) Create(ctx context.Context, n New) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(n.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a := Account{
		ID:           uuid.NewString(),
		Username:     n.Username,
		Email:        n.Email,
		FirstName:    n.FirstName,
		LastName:     n.LastName,
		Role:         n.Role,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, username, email, first_name, last_name, role, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, a.ID, a.Username, a.Email, a.FirstName, a.LastName, a.Role, a.PasswordHash)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// FindOrCreate returns the existing account for the username or creates one.
// The boolean reports whether a new account was created.
func (r *Repository) FindOrCreate(ctx context.Context, n New) (*Account, bool, error) {
	existing, err := r.GetByUsername(ctx, n.Username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	created, err := r.Create(ctx, n)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// Authenticate checks a username/password pair and returns the account.
func (r *Repository) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	a, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, errors.New("account disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}
	return a, nil
}

// SetPassword replaces the stored credential. Imported accounts start with the
// external id as a bootstrap password and are expected to call this promptly.
func (r *Repository) SetPassword(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $2 WHERE username = $1`, username, string(hash))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
