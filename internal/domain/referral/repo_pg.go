package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const referralCols = `id, patient_id, origin_facility_id, destination_facility_id, status, priority,
	reason, clinical_notes, created_by, accepted_by, sent_at, accepted_at, transferred_at,
	created_at, updated_at`

func scanReferral(row pgx.Row) (*Referral, error) {
	var r Referral
	err := row.Scan(&r.ID, &r.PatientID, &r.OriginFacilityID, &r.DestinationFacilityID, &r.Status, &r.Priority,
		&r.Reason, &r.ClinicalNotes, &r.CreatedBy, &r.AcceptedBy, &r.SentAt, &r.AcceptedAt, &r.TransferredAt,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *repoPG) Create(ctx context.Context, r *Referral) error {
	r.ID = uuid.New()
	r.Status = StatusCreated
	return p.db.QueryRow(ctx, `
		INSERT INTO referrals (id, patient_id, origin_facility_id, destination_facility_id,
			status, priority, reason, clinical_notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		r.ID, r.PatientID, r.OriginFacilityID, r.DestinationFacilityID,
		r.Status, r.Priority, r.Reason, r.ClinicalNotes, r.CreatedBy).
		Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (p *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	r, err := scanReferral(p.db.QueryRow(ctx, `SELECT `+referralCols+` FROM referrals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Referral, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.OriginFacilityID != nil {
		where += fmt.Sprintf(` AND origin_facility_id = $%d`, idx)
		args = append(args, *f.OriginFacilityID)
		idx++
	}
	if f.DestinationFacilityID != nil {
		where += fmt.Sprintf(` AND destination_facility_id = $%d`, idx)
		args = append(args, *f.DestinationFacilityID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM referrals`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + referralCols + ` FROM referrals` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

func (p *repoPG) FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*Referral, error) {
	r, err := scanReferral(p.db.QueryRow(ctx, `
		SELECT `+referralCols+` FROM referrals
		WHERE patient_id = $1 AND status <> $2
		ORDER BY created_at DESC LIMIT 1`,
		patientID, StatusTransferred))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (p *repoPG) UpdateDestination(ctx context.Context, id, destinationID uuid.UUID) (*Referral, error) {
	r, err := scanReferral(p.db.QueryRow(ctx, `
		UPDATE referrals SET destination_facility_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING `+referralCols,
		id, destinationID, StatusCreated))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.explainNoRows(ctx, id)
	}
	return r, err
}

// transition performs the compare-and-set status update. The WHERE clause
// on the prior status is what prevents a double-accept race: of two
// concurrent calls only one matches the row.
func (p *repoPG) transition(ctx context.Context, id uuid.UUID, from, to Status, set string, args ...interface{}) (*Referral, error) {
	if !CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}
	sql := `UPDATE referrals SET status = $2, updated_at = NOW()` + set +
		` WHERE id = $1 AND status = $3 RETURNING ` + referralCols
	all := append([]interface{}{id, to, from}, args...)
	r, err := scanReferral(p.db.QueryRow(ctx, sql, all...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.explainNoRows(ctx, id)
	}
	return r, err
}

// explainNoRows disambiguates a failed compare-and-set: either the row does
// not exist, or it exists in a status the transition is not legal from.
func (p *repoPG) explainNoRows(ctx context.Context, id uuid.UUID) error {
	var status Status
	err := p.db.QueryRow(ctx, `SELECT status FROM referrals WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (p *repoPG) MarkSent(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return p.transition(ctx, id, StatusCreated, StatusSent, `, sent_at = NOW()`)
}

func (p *repoPG) MarkAccepted(ctx context.Context, id, acceptedBy uuid.UUID) (*Referral, error) {
	return p.transition(ctx, id, StatusSent, StatusAccepted, `, accepted_at = NOW(), accepted_by = $4`, acceptedBy)
}

func (p *repoPG) MarkTransferred(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return p.transition(ctx, id, StatusAccepted, StatusTransferred, `, transferred_at = NOW()`)
}
