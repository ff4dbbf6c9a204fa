package staff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/auth"
	"github.com/asilo/asilo/internal/platform/db"
)

// Client-facing messages shared with the mock repository in tests.
const (
	MsgNotFound     = "Usuario no encontrado"
	MsgEmailInUse   = "El correo ya está registrado"
	emailConstraint = "staff_account_email_key"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const accountCols = `id, name, email, password_hash, role, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a    Account
		role string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &a.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("staff account %s: %w", a.ID, err)
	}
	a.Role = parsed
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff_account (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Role.String()).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err, emailConstraint) {
		return apierr.Conflict(MsgEmailInUse)
	}
	if err != nil {
		return fmt.Errorf("insert staff account: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM staff_account WHERE id = $1`, id))
	return a, db.NotFoundOr(err, MsgNotFound)
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM staff_account WHERE email = $1`, email))
	return a, db.NotFoundOr(err, MsgNotFound)
}

func (r *repoPG) Update(ctx context.Context, a *Account) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff_account SET name = $2, email = $3, password_hash = $4, role = $5
		WHERE id = $1`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Role.String())
	if db.IsUniqueViolation(err, emailConstraint) {
		return apierr.Conflict(MsgEmailInUse)
	}
	if err != nil {
		return fmt.Errorf("update staff account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound(MsgNotFound)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM staff_account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staff account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound(MsgNotFound)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff_account`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+accountCols+` FROM staff_account ORDER BY name, email LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
