package repositories

import (
	"context"
	"database/sql"
	"errors"

	"tolkback/internal/models"
)

// TranslatorsRepository reads user, profile and contact data for matching and
// notification targeting.
type TranslatorsRepository struct {
	DB *sql.DB
}

// Profile assembles the matching attributes of one translator from the users,
// user_meta, user_levels and user_languages tables.
func (r *TranslatorsRepository) Profile(ctx context.Context, userID int64) (models.TranslatorProfile, error) {
	query := `
                SELECT u.id, u.email, u.name, u.phone, m.translator_type, m.gender, m.town,
                       m.not_get_nighttime, m.not_get_notification, m.not_get_emergency
                FROM users u
                JOIN user_meta m ON m.user_id = u.id
                WHERE u.id = ? AND u.role = 'translator'
        `
	var (
		p      models.TranslatorProfile
		phone  sql.NullString
		gender sql.NullString
		town   sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.Email,
		&p.Name,
		&phone,
		&p.TranslatorType,
		&gender,
		&town,
		&p.NotGetNighttime,
		&p.NotGetNotification,
		&p.NotGetEmergency,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TranslatorProfile{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.TranslatorProfile{}, err
	}
	p.Phone = phone.String
	p.Gender = models.Gender(gender.String)
	p.Town = town.String

	if p.Levels, err = r.levels(ctx, userID); err != nil {
		return models.TranslatorProfile{}, err
	}
	if p.Languages, err = r.languages(ctx, userID); err != nil {
		return models.TranslatorProfile{}, err
	}
	return p, nil
}

func (r *TranslatorsRepository) levels(ctx context.Context, userID int64) ([]models.TranslatorLevel, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT level FROM user_levels WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TranslatorLevel
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return nil, err
		}
		out = append(out, models.TranslatorLevel(level))
	}
	return out, rows.Err()
}

func (r *TranslatorsRepository) languages(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT lang_id FROM user_languages WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CandidateProfiles returns every enabled translator of the given pool, with
// levels and languages loaded.
func (r *TranslatorsRepository) CandidateProfiles(ctx context.Context, translatorType models.TranslatorType) ([]models.TranslatorProfile, error) {
	query := `
                SELECT u.id, u.email, u.name, u.phone, m.translator_type, m.gender, m.town,
                       m.not_get_nighttime, m.not_get_notification, m.not_get_emergency
                FROM users u
                JOIN user_meta m ON m.user_id = u.id
                WHERE u.role = 'translator' AND u.enabled = 1 AND m.translator_type = ?
        `
	rows, err := r.DB.QueryContext(ctx, query, string(translatorType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TranslatorProfile
	for rows.Next() {
		var (
			p      models.TranslatorProfile
			phone  sql.NullString
			gender sql.NullString
			town   sql.NullString
		)
		if err := rows.Scan(
			&p.UserID,
			&p.Email,
			&p.Name,
			&phone,
			&p.TranslatorType,
			&gender,
			&town,
			&p.NotGetNighttime,
			&p.NotGetNotification,
			&p.NotGetEmergency,
		); err != nil {
			return nil, err
		}
		p.Phone = phone.String
		p.Gender = models.Gender(gender.String)
		p.Town = town.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Levels, err = r.levels(ctx, out[i].UserID); err != nil {
			return nil, err
		}
		if out[i].Languages, err = r.languages(ctx, out[i].UserID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BlacklistSet returns the translator ids a customer has blacklisted.
func (r *TranslatorsRepository) BlacklistSet(ctx context.Context, customerID int64) (map[int64]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT translator_id FROM users_blacklist WHERE user_id = ?`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// Customer returns the requesting side of a job.
func (r *TranslatorsRepository) Customer(ctx context.Context, userID int64) (models.Customer, error) {
	query := `
                SELECT u.id, u.email, u.name, u.phone, m.consumer_type, m.customer_type, m.town,
                       m.not_get_nighttime, m.not_get_notification
                FROM users u
                JOIN user_meta m ON m.user_id = u.id
                WHERE u.id = ?
        `
	var (
		c        models.Customer
		phone    sql.NullString
		consumer sql.NullString
		custType sql.NullString
		town     sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&c.ID,
		&c.Email,
		&c.Name,
		&phone,
		&consumer,
		&custType,
		&town,
		&c.NotGetNighttime,
		&c.NotGetNotification,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.Customer{}, err
	}
	c.Phone = phone.String
	c.ConsumerType = consumer.String
	c.CustomerType = custType.String
	c.Town = town.String
	return c, nil
}

// Contact returns the notification contact view of any user.
func (r *TranslatorsRepository) Contact(ctx context.Context, userID int64) (models.ActiveTranslator, error) {
	query := `
                SELECT u.id, u.email, u.name, u.phone,
                       m.not_get_nighttime, m.not_get_notification
                FROM users u
                JOIN user_meta m ON m.user_id = u.id
                WHERE u.id = ?
        `
	var (
		t     models.ActiveTranslator
		phone sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&t.UserID,
		&t.Email,
		&t.Name,
		&phone,
		&t.NotGetNighttime,
		&t.NotGetNotification,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ActiveTranslator{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.ActiveTranslator{}, err
	}
	t.Phone = phone.String
	return t, nil
}

// TranslatorByEmail resolves a translator's address to their contact view,
// used when an admin enters a reassignment by email instead of id.
func (r *TranslatorsRepository) TranslatorByEmail(ctx context.Context, email string) (models.ActiveTranslator, error) {
	query := `
                SELECT u.id, u.email, u.name, u.phone,
                       m.not_get_nighttime, m.not_get_notification
                FROM users u
                JOIN user_meta m ON m.user_id = u.id
                WHERE u.email = ? AND u.role = 'translator'
        `
	var (
		t     models.ActiveTranslator
		phone sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, email).Scan(
		&t.UserID,
		&t.Email,
		&t.Name,
		&phone,
		&t.NotGetNighttime,
		&t.NotGetNotification,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ActiveTranslator{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.ActiveTranslator{}, err
	}
	t.Phone = phone.String
	return t, nil
}

// LanguageName resolves a language id to its display name.
func (r *TranslatorsRepository) LanguageName(ctx context.Context, languageID int64) (string, error) {
	var name string
	err := r.DB.QueryRowContext(ctx,
		`SELECT name FROM languages WHERE id = ?`, languageID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrLanguageNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// SameServiceArea reports whether a customer and a translator share a town.
// Users without a recorded town never match.
func (r *TranslatorsRepository) SameServiceArea(ctx context.Context, customerID, translatorID int64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
                SELECT COUNT(*)
                FROM user_meta a
                JOIN user_meta b ON a.town = b.town
                WHERE a.user_id = ? AND b.user_id = ? AND a.town IS NOT NULL AND a.town <> ''
        `, customerID, translatorID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TokensByUserID returns the registered device tokens of a user.
func (r *TranslatorsRepository) TokensByUserID(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT token FROM notify_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

// InsertToken registers a device token for push delivery.
func (r *TranslatorsRepository) InsertToken(ctx context.Context, userID int64, token string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO notify_tokens (user_id, token) VALUES (?, ?)`, userID, token)
	return err
}

// DeleteToken removes a device token, typically on logout.
func (r *TranslatorsRepository) DeleteToken(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx,
		`DELETE FROM notify_tokens WHERE token = ?`, token)
	return err
}
