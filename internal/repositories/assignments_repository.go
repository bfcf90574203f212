package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tolkback/internal/models"
)

// AssignmentsRepository persists translator-job bindings. Reassignment is
// cancel-then-create so the history of who held a job survives.
type AssignmentsRepository struct {
	DB *sql.DB
}

func scanAssignment(row interface{ Scan(...interface{}) error }) (models.TranslatorAssignment, error) {
	var (
		a           models.TranslatorAssignment
		cancelAt    sql.NullTime
		completedAt sql.NullTime
		completedBy sql.NullInt64
	)
	err := row.Scan(
		&a.ID,
		&a.JobID,
		&a.UserID,
		&a.AssignedAt,
		&cancelAt,
		&completedAt,
		&completedBy,
	)
	if err != nil {
		return models.TranslatorAssignment{}, err
	}
	if cancelAt.Valid {
		t := cancelAt.Time
		a.CancelAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	a.CompletedBy = completedBy.Int64
	return a, nil
}

// Active returns the live assignment for a job, or models.ErrNoActiveAssignment.
func (r *AssignmentsRepository) Active(ctx context.Context, jobID int64) (models.TranslatorAssignment, error) {
	query := `
                SELECT id, job_id, user_id, created_at, cancel_at, completed_at, completed_by
                FROM translator_job_rel
                WHERE job_id = ? AND cancel_at IS NULL AND completed_at IS NULL
                ORDER BY id DESC
                LIMIT 1
        `
	a, err := scanAssignment(r.DB.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.TranslatorAssignment{}, models.ErrNoActiveAssignment
	}
	if err != nil {
		return models.TranslatorAssignment{}, err
	}
	return a, nil
}

// LatestCompleted returns the most recent completed assignment for a job.
func (r *AssignmentsRepository) LatestCompleted(ctx context.Context, jobID int64) (models.TranslatorAssignment, error) {
	query := `
                SELECT id, job_id, user_id, created_at, cancel_at, completed_at, completed_by
                FROM translator_job_rel
                WHERE job_id = ? AND completed_at IS NOT NULL
                ORDER BY completed_at DESC
                LIMIT 1
        `
	a, err := scanAssignment(r.DB.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.TranslatorAssignment{}, models.ErrNoActiveAssignment
	}
	if err != nil {
		return models.TranslatorAssignment{}, err
	}
	return a, nil
}

// Replace swaps the translator bound to a job: the active assignment is
// cancelled and a new one created in one transaction. Nothing happens when
// the active assignment already points at the new translator.
func (r *AssignmentsRepository) Replace(ctx context.Context, jobID, newTranslatorID int64, now time.Time) (changed bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var currentID int64
	var currentUser int64
	err = tx.QueryRowContext(ctx, `
                SELECT id, user_id
                FROM translator_job_rel
                WHERE job_id = ? AND cancel_at IS NULL AND completed_at IS NULL
                ORDER BY id DESC
                LIMIT 1
                FOR UPDATE
        `, jobID).Scan(&currentID, &currentUser)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no live binding; just create the new one
	case err != nil:
		return false, err
	case currentUser == newTranslatorID:
		return false, nil
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE translator_job_rel SET cancel_at = ? WHERE id = ?`,
			now, currentID,
		); err != nil {
			return false, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO translator_job_rel (job_id, user_id, created_at) VALUES (?, ?, ?)`,
		jobID, newTranslatorID, now,
	); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// Cancel marks the active assignment cancelled.
func (r *AssignmentsRepository) Cancel(ctx context.Context, jobID int64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
                UPDATE translator_job_rel
                SET cancel_at = ?
                WHERE job_id = ? AND cancel_at IS NULL AND completed_at IS NULL
        `, now, jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNoActiveAssignment
	}
	return nil
}

// Complete marks the active assignment finished, recording who ended the
// session.
func (r *AssignmentsRepository) Complete(ctx context.Context, jobID, completedBy int64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
                UPDATE translator_job_rel
                SET completed_at = ?, completed_by = ?
                WHERE job_id = ? AND cancel_at IS NULL AND completed_at IS NULL
        `, now, completedBy, jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNoActiveAssignment
	}
	return nil
}

// Delete removes the active assignment entirely. Used when a translator backs
// out more than a day ahead and the job reopens to the pool.
func (r *AssignmentsRepository) Delete(ctx context.Context, jobID int64) error {
	_, err := r.DB.ExecContext(ctx, `
                DELETE FROM translator_job_rel
                WHERE job_id = ? AND cancel_at IS NULL AND completed_at IS NULL
        `, jobID)
	return err
}

// HasDueConflict reports whether the translator already holds an active
// assignment on another job due at exactly the given instant.
func (r *AssignmentsRepository) HasDueConflict(ctx context.Context, translatorID int64, due time.Time, excludeJobID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
                SELECT COUNT(*)
                FROM translator_job_rel rel
                JOIN jobs j ON rel.job_id = j.id
                WHERE rel.user_id = ?
                  AND rel.cancel_at IS NULL AND rel.completed_at IS NULL
                  AND j.due = ?
                  AND j.id <> ?
        `, translatorID, due, excludeJobID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
