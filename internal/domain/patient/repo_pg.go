package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when the referenced patient does not exist.
var ErrNotFound = errors.New("patient not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const patientCols = `id, first_name, last_name, date_of_birth, gender, national_id, phone, address,
	oxygen_saturation, heart_rate, blood_pressure_systolic, blood_pressure_diastolic,
	temperature, chest_pain, chief_complaint, notes, triage_level,
	facility_id, registered_by, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.NationalID, &p.Phone, &p.Address,
		&p.OxygenSaturation, &p.HeartRate, &p.BloodPressureSystolic, &p.BloodPressureDiastolic,
		&p.Temperature, &p.ChestPain, &p.ChiefComplaint, &p.Notes, &p.TriageLevel,
		&p.FacilityID, &p.RegisteredBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.db.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, date_of_birth, gender, national_id, phone, address,
			oxygen_saturation, heart_rate, blood_pressure_systolic, blood_pressure_diastolic,
			temperature, chest_pain, chief_complaint, notes, triage_level, facility_id, registered_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.NationalID, p.Phone, p.Address,
		p.OxygenSaturation, p.HeartRate, p.BloodPressureSystolic, p.BloodPressureDiastolic,
		p.Temperature, p.ChestPain, p.ChiefComplaint, p.Notes, p.TriageLevel, p.FacilityID, p.RegisteredBy).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, date_of_birth=$4, gender=$5,
			national_id=$6, phone=$7, address=$8,
			oxygen_saturation=$9, heart_rate=$10, blood_pressure_systolic=$11,
			blood_pressure_diastolic=$12, temperature=$13, chest_pain=$14,
			chief_complaint=$15, notes=$16, triage_level=$17, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.NationalID, p.Phone, p.Address,
		p.OxygenSaturation, p.HeartRate, p.BloodPressureSystolic,
		p.BloodPressureDiastolic, p.Temperature, p.ChestPain,
		p.ChiefComplaint, p.Notes, p.TriageLevel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, facilityID *uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	where := ``
	args := []interface{}{}
	if facilityID != nil {
		where = ` WHERE facility_id = $1`
		args = append(args, *facilityID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + patientCols + ` FROM patients` + where
	if n == 0 {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
