package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/models"
)

const jobColumns = `
                j.id, j.user_id, u.email, j.status, j.from_language_id, j.immediate,
                j.due, j.duration, j.gender, j.certified, j.job_type,
                j.customer_phone_type, j.customer_physical_type, j.town, j.address,
                j.instructions, j.reference, j.admin_comments, j.session_time,
                j.specific_translator_id, j.created_at, j.will_expire_at,
                j.end_at, j.withdraw_at, j.ignore_feedback, j.flagged,
                j.manually_handled, j.by_admin`

// JobsRepository persists jobs. Status writes are compare-and-set on the
// expected current status so two racing writers cannot both win.
type JobsRepository struct {
	DB *sql.DB
}

func scanJob(row interface{ Scan(...interface{}) error }) (models.Job, error) {
	var (
		job        models.Job
		gender     sql.NullString
		certified  sql.NullString
		town       sql.NullString
		address    sql.NullString
		instr      sql.NullString
		reference  sql.NullString
		comments   sql.NullString
		session    sql.NullString
		specific   sql.NullInt64
		endAt      sql.NullTime
		withdrawAt sql.NullTime
	)
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.UserEmail,
		&job.Status,
		&job.FromLanguageID,
		&job.Immediate,
		&job.Due,
		&job.Duration,
		&gender,
		&certified,
		&job.JobType,
		&job.PhoneEnabled,
		&job.PhysicalOnly,
		&town,
		&address,
		&instr,
		&reference,
		&comments,
		&session,
		&specific,
		&job.CreatedAt,
		&job.WillExpireAt,
		&endAt,
		&withdrawAt,
		&job.IgnoredForFeedback,
		&job.Flagged,
		&job.ManuallyHandled,
		&job.ByAdmin,
	)
	if err != nil {
		return models.Job{}, err
	}

	job.Gender = models.Gender(gender.String)
	job.Certified = models.Certification(certified.String)
	job.Town = town.String
	job.Address = address.String
	job.Instructions = instr.String
	job.Reference = reference.String
	job.AdminComments = comments.String
	job.SessionTime = session.String
	job.SpecificTranslatorID = specific.Int64
	if endAt.Valid {
		t := endAt.Time
		job.EndAt = &t
	}
	if withdrawAt.Valid {
		t := withdrawAt.Time
		job.WithdrawAt = &t
	}
	return job, nil
}

func (r *JobsRepository) GetByID(ctx context.Context, id int64) (models.Job, error) {
	query := `
                SELECT` + jobColumns + `
                FROM jobs j
                JOIN users u ON j.user_id = u.id
                WHERE j.id = ?
        `
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, models.ErrJobNotFound
	}
	if err != nil {
		return models.Job{}, err
	}
	return job, nil
}

func (r *JobsRepository) Create(ctx context.Context, job models.Job) (models.Job, error) {
	query := `
                INSERT INTO jobs (user_id, status, from_language_id, immediate, due,
                        duration, gender, certified, job_type, customer_phone_type,
                        customer_physical_type, town, address, instructions, reference,
                        admin_comments, specific_translator_id, created_at, will_expire_at, by_admin)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `
	res, err := r.DB.ExecContext(ctx, query,
		job.UserID,
		string(job.Status),
		job.FromLanguageID,
		job.Immediate,
		job.Due,
		job.Duration,
		nullString(string(job.Gender)),
		nullString(string(job.Certified)),
		string(job.JobType),
		job.PhoneEnabled,
		job.PhysicalOnly,
		nullString(job.Town),
		nullString(job.Address),
		nullString(job.Instructions),
		nullString(job.Reference),
		nullString(job.AdminComments),
		nullInt64(job.SpecificTranslatorID),
		job.CreatedAt,
		job.WillExpireAt,
		job.ByAdmin,
	)
	if err != nil {
		return models.Job{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Job{}, err
	}
	return r.GetByID(ctx, id)
}

// UpdateDetails writes the mutable non-status columns of a booking.
func (r *JobsRepository) UpdateDetails(ctx context.Context, job models.Job) error {
	query := `
                UPDATE jobs
                SET from_language_id = ?, due = ?, will_expire_at = ?, gender = ?,
                    certified = ?, town = ?, address = ?, instructions = ?,
                    reference = ?, admin_comments = ?, specific_translator_id = ?
                WHERE id = ?
        `
	_, err := r.DB.ExecContext(ctx, query,
		job.FromLanguageID,
		job.Due,
		job.WillExpireAt,
		nullString(string(job.Gender)),
		nullString(string(job.Certified)),
		nullString(job.Town),
		nullString(job.Address),
		nullString(job.Instructions),
		nullString(job.Reference),
		nullString(job.AdminComments),
		nullInt64(job.SpecificTranslatorID),
		job.ID,
	)
	return err
}

// SetStatus moves a job from one status to another with compare-and-set
// semantics: the UPDATE only matches when the row still holds the expected
// status. Zero matched rows means a concurrent writer won and the caller
// gets models.ErrJobTaken.
func (r *JobsRepository) SetStatus(ctx context.Context, jobID int64, from, to fsm.Status, change models.StatusChange) error {
	query := "UPDATE jobs SET status = ?"
	args := []interface{}{string(to)}

	if change.AdminComments != nil {
		query += ", admin_comments = ?"
		args = append(args, *change.AdminComments)
	}
	if change.SessionTime != nil {
		query += ", session_time = ?"
		args = append(args, *change.SessionTime)
	}
	if change.CreatedAt != nil {
		query += ", created_at = ?"
		args = append(args, *change.CreatedAt)
	}
	if change.EndAt != nil {
		query += ", end_at = ?"
		args = append(args, *change.EndAt)
	}
	if change.WithdrawAt != nil {
		query += ", withdraw_at = ?"
		args = append(args, *change.WithdrawAt)
	}
	if change.WillExpireAt != nil {
		query += ", will_expire_at = ?"
		args = append(args, *change.WillExpireAt)
	}
	query += " WHERE id = ? AND status = ?"
	args = append(args, jobID, string(from))

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrJobTaken
	}
	return nil
}

// AcceptPending atomically assigns a pending job to a translator: the status
// flip and the assignment insert commit together, and the status flip only
// matches while the job is still pending. The losing concurrent caller gets
// models.ErrJobTaken and no assignment row.
func (r *JobsRepository) AcceptPending(ctx context.Context, jobID, translatorID int64, now time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fsm.Apply(ctx, tx, jobID, fsm.StatusPending, fsm.StatusAssigned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrJobTaken
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO translator_job_rel (job_id, user_id, created_at) VALUES (?, ?, ?)`,
		jobID, translatorID, now,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// PendingJobs returns every job currently open for acceptance.
func (r *JobsRepository) PendingJobs(ctx context.Context) ([]models.Job, error) {
	query := `
                SELECT` + jobColumns + `
                FROM jobs j
                JOIN users u ON j.user_id = u.id
                WHERE j.status = ?
                ORDER BY j.due ASC
        `
	rows, err := r.DB.QueryContext(ctx, query, string(fsm.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ReopenAsNew clones a closed job into a fresh pending booking. The clone
// records its origin in admin_comments and gets a new expiry window.
func (r *JobsRepository) ReopenAsNew(ctx context.Context, original models.Job, now, willExpireAt time.Time) (models.Job, error) {
	clone := original
	clone.Status = fsm.StatusPending
	clone.CreatedAt = now
	clone.WillExpireAt = willExpireAt
	clone.EndAt = nil
	clone.WithdrawAt = nil
	clone.SessionTime = ""
	clone.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%d", original.ID)
	return r.Create(ctx, clone)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
