package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"authgate/internal/domain"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.User, error)
	UpdateSessionToken(ctx context.Context, id string, token *string) (domain.User, error)
	ClearVerificationToken(ctx context.Context, id string) (domain.User, error)
}

// Pool es el subconjunto de pgxpool.Pool que usa el repositorio.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool Pool
}

func NewPgUserRepository(pool Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, gender, avatar_url, subscription, verification_token, session_token, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (id, email, password_hash, gender, avatar_url, subscription, verification_token, session_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns
	row := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Gender,
		user.AvatarURL,
		user.Subscription,
		user.VerificationToken,
		user.SessionToken,
		user.CreatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PgUserRepository) GetByVerificationToken(ctx context.Context, token string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`
	return r.getOne(ctx, query, token)
}

// UpdateSessionToken reemplaza el token de sesion; nil cierra la sesion.
func (r *PgUserRepository) UpdateSessionToken(ctx context.Context, id string, token *string) (domain.User, error) {
	const query = `
		UPDATE users SET session_token = $2
		WHERE id = $1
		RETURNING ` + userColumns
	return r.getOne(ctx, query, id, token)
}

// ClearVerificationToken devuelve ErrNotFound si ninguna fila fue afectada.
func (r *PgUserRepository) ClearVerificationToken(ctx context.Context, id string) (domain.User, error) {
	const query = `
		UPDATE users SET verification_token = NULL
		WHERE id = $1
		RETURNING ` + userColumns
	return r.getOne(ctx, query, id)
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Gender,
		&u.AvatarURL,
		&u.Subscription,
		&u.VerificationToken,
		&u.SessionToken,
		&u.CreatedAt,
	)
	return u, err
}
