package patients

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, clinic_id, first_name, last_name, date_of_birth, gender,
	phone, email, password_hash, invite_token, invite_expires_at, is_archived, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.DateOfBirth,
		&p.Gender, &p.Phone, &p.Email, &p.PasswordHash,
		&p.InviteToken, &p.InviteExpiresAt, &p.IsArchived, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httperr.New(httperr.KindNotFound, "patient not found")
		}
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, clinic_id, first_name, last_name, date_of_birth, gender, phone, email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.Phone, p.Email).
		Scan(&p.CreatedAt)
	if isUniqueViolation(err) {
		return httperr.New(httperr.KindConflict, "email already in use")
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE id = $1 AND clinic_id = $2 AND is_archived = false`, id, clinicID))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients
		SET first_name = $3, last_name = $4, date_of_birth = $5, gender = $6, phone = $7
		WHERE id = $1 AND clinic_id = $2 AND is_archived = false`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.Phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.New(httperr.KindNotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) Archive(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET is_archived = true
		WHERE id = $1 AND clinic_id = $2 AND is_archived = false`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.New(httperr.KindNotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) ListCursor(ctx context.Context, clinicID uuid.UUID, cur pagination.Cursor) ([]*Patient, *uuid.UUID, error) {
	q := `SELECT ` + patientCols + ` FROM patients
		WHERE clinic_id = $1 AND is_archived = false`
	args := []interface{}{clinicID}

	if cur.After != nil {
		// Keyset on (created_at, id): resolve the cursor row's timestamp,
		// then page strictly past it.
		var at time.Time
		err := r.conn(ctx).QueryRow(ctx,
			`SELECT created_at FROM patients WHERE id = $1 AND clinic_id = $2`,
			*cur.After, clinicID).Scan(&at)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, httperr.Validation(map[string]string{"cursor": "unknown cursor"})
			}
			return nil, nil, err
		}
		q += ` AND (created_at, id) < ($2, $3)`
		args = append(args, at, *cur.After)
	}

	q += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, cur.Limit+1)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *uuid.UUID
	if len(out) > cur.Limit {
		out = out[:cur.Limit]
		id := out[len(out)-1].ID
		next = &id
	}
	return out, next, nil
}

func (r *patientRepoPG) SetInvite(ctx context.Context, clinicID, id uuid.UUID, token uuid.UUID, expiresAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET invite_token = $3, invite_expires_at = $4
		WHERE id = $1 AND clinic_id = $2 AND is_archived = false`,
		id, clinicID, token, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.New(httperr.KindNotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) GetByInviteToken(ctx context.Context, token uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE invite_token = $1 AND is_archived = false`, token))
}

func (r *patientRepoPG) SetCredentials(ctx context.Context, id uuid.UUID, email, passwordHash string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients
		SET email = $2, password_hash = $3, invite_token = NULL, invite_expires_at = NULL
		WHERE id = $1`, id, email, passwordHash)
	if isUniqueViolation(err) {
		return httperr.New(httperr.KindConflict, "email already in use")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.New(httperr.KindNotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE email = $1 AND is_archived = false`, email))
}

func (r *patientRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.New(httperr.KindNotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) UpdateProfile(ctx context.Context, id uuid.UUID, phone *string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET phone = $2 WHERE id = $1`, id, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.New(httperr.KindNotFound, "patient not found")
	}
	return nil
}
