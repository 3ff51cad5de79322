// internal/profile/repository.go

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

// Repository is the profile store consumed by the matching engine
type Repository interface {
	// Lookups
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	GetProfiles(ctx context.Context, userIDs []int64) ([]*Profile, error)
	GetPreferences(ctx context.Context, userID int64) (*SearchPreference, error)

	// Candidate search
	SearchProfiles(ctx context.Context, filter *SearchFilter) ([]*Profile, error)
	InterestsByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error)
	GenderIDsByLabels(ctx context.Context, labels []string) (map[string]int, error)

	// Activity
	CountActiveUsers(ctx context.Context, since time.Time) (int, error)
	RecentlyActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]int64, error)

	// Writes, owned by the profile service
	SaveProfile(ctx context.Context, p *Profile) error
	SavePreferences(ctx context.Context, userID int64, pref *SearchPreference) error
}

// postgresRepository implements Repository using PostgreSQL
type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// profileRow is the scan target for profile queries
type profileRow struct {
	UserID      int64           `db:"user_id"`
	DisplayName string          `db:"display_name"`
	Age         int             `db:"age"`
	Gender      sql.NullString  `db:"gender"`
	City        string          `db:"city"`
	Latitude    sql.NullFloat64 `db:"latitude"`
	Longitude   sql.NullFloat64 `db:"longitude"`
	Bio         string          `db:"bio"`
	Interests   pq.StringArray  `db:"interests"`
	IsComplete  bool            `db:"is_complete"`
	LastActive  time.Time       `db:"last_active"`
}

func (row *profileRow) toProfile() *Profile {
	p := &Profile{
		UserID:      row.UserID,
		DisplayName: row.DisplayName,
		Age:         row.Age,
		Gender:      row.Gender.String,
		City:        row.City,
		Bio:         row.Bio,
		Interests:   []string(row.Interests),
		IsComplete:  row.IsComplete,
		LastActive:  row.LastActive,
	}
	if row.Latitude.Valid && row.Longitude.Valid {
		p.Location = &Coordinates{Lat: row.Latitude.Float64, Lng: row.Longitude.Float64}
	}
	return p
}

const profileColumns = `
	p.user_id, p.display_name, p.age, g.label AS gender, p.city,
	p.latitude, p.longitude, p.bio, p.is_complete, p.last_active`

const interestsColumn = `
	COALESCE(ARRAY(
		SELECT ui.interest FROM user_interests ui
		WHERE ui.user_id = p.user_id ORDER BY ui.interest
	), '{}') AS interests`

// GetProfile retrieves a profile with its interests
func (r *postgresRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var row profileRow
	query := `
		SELECT ` + profileColumns + `,` + interestsColumn + `
		FROM profiles p
		LEFT JOIN genders g ON g.id = p.gender_id
		WHERE p.user_id = $1`

	err := r.db.GetContext(ctx, &row, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", database.Classify(err))
	}

	return row.toProfile(), nil
}

// GetProfiles retrieves several profiles with interests, ordered by user id
func (r *postgresRepository) GetProfiles(ctx context.Context, userIDs []int64) ([]*Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var rows []profileRow
	query := `
		SELECT ` + profileColumns + `,` + interestsColumn + `
		FROM profiles p
		LEFT JOIN genders g ON g.id = p.gender_id
		WHERE p.user_id = ANY($1)
		ORDER BY p.user_id`

	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", database.Classify(err))
	}

	profiles := make([]*Profile, 0, len(rows))
	for i := range rows {
		profiles = append(profiles, rows[i].toProfile())
	}
	return profiles, nil
}

// GetPreferences returns nil without error when the user never saved any
func (r *postgresRepository) GetPreferences(ctx context.Context, userID int64) (*SearchPreference, error) {
	var row struct {
		MinAge             int            `db:"min_age"`
		MaxAge             int            `db:"max_age"`
		Genders            pq.StringArray `db:"genders"`
		MaxDistanceKm      float64        `db:"max_distance_km"`
		MinSharedInterests int            `db:"min_shared_interests"`
		PreferredCities    pq.StringArray `db:"preferred_cities"`
	}
	query := `
		SELECT min_age, max_age, genders, max_distance_km,
		       min_shared_interests, preferred_cities
		FROM search_preferences
		WHERE user_id = $1`

	err := r.db.GetContext(ctx, &row, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", database.Classify(err))
	}

	return &SearchPreference{
		MinAge:             row.MinAge,
		MaxAge:             row.MaxAge,
		Genders:            []string(row.Genders),
		MaxDistanceKm:      row.MaxDistanceKm,
		MinSharedInterests: row.MinSharedInterests,
		PreferredCities:    []string(row.PreferredCities),
	}, nil
}

// haversineSQL computes kilometres between profile p and the point ($lat, $lng)
const haversineSQL = `6371 * 2 * ASIN(SQRT(
	POWER(SIN(RADIANS(p.latitude - $%[1]d) / 2), 2) +
	COS(RADIANS($%[1]d)) * COS(RADIANS(p.latitude)) *
	POWER(SIN(RADIANS(p.longitude - $%[2]d) / 2), 2)))`

// SearchProfiles applies every hard constraint in one query. Interests are
// not loaded; callers batch them through InterestsByUserIDs.
func (r *postgresRepository) SearchProfiles(ctx context.Context, filter *SearchFilter) ([]*Profile, error) {
	// Build dynamic where clause
	whereClauses := []string{"p.user_id != $1"}
	args := []interface{}{filter.RequesterID}
	argCount := 2

	if filter.CompleteOnly {
		whereClauses = append(whereClauses, "p.is_complete = TRUE")
	}
	if filter.MinAge > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("p.age >= $%d", argCount))
		args = append(args, filter.MinAge)
		argCount++
	}
	if filter.MaxAge > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("p.age <= $%d", argCount))
		args = append(args, filter.MaxAge)
		argCount++
	}
	if len(filter.GenderIDs) > 0 {
		ids := make([]int64, len(filter.GenderIDs))
		for i, id := range filter.GenderIDs {
			ids[i] = int64(id)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("p.gender_id = ANY($%d)", argCount))
		args = append(args, pq.Array(ids))
		argCount++
	}
	if len(filter.Cities) > 0 {
		cities := make([]string, len(filter.Cities))
		for i, c := range filter.Cities {
			cities[i] = strings.ToLower(c)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("LOWER(p.city) = ANY($%d)", argCount))
		args = append(args, pq.Array(cities))
		argCount++
	}
	if len(filter.ExcludeIDs) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("p.user_id != ALL($%d)", argCount))
		args = append(args, pq.Array(filter.ExcludeIDs))
		argCount++
	}
	if filter.Origin != nil && filter.MaxDistanceKm > 0 {
		// Profiles without coordinates cannot be measured and stay eligible
		distance := fmt.Sprintf(haversineSQL, argCount, argCount+1)
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(p.latitude IS NULL OR p.longitude IS NULL OR %s <= $%d)", distance, argCount+2))
		args = append(args, filter.Origin.Lat, filter.Origin.Lng, filter.MaxDistanceKm)
		argCount += 3
	}

	args = append(args, filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM profiles p
		LEFT JOIN genders g ON g.id = p.gender_id
		WHERE %s
		ORDER BY p.last_active DESC, p.user_id
		LIMIT $%d`,
		profileColumns,
		strings.Join(whereClauses, " AND "),
		argCount,
	)

	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", database.Classify(err))
	}

	profiles := make([]*Profile, 0, len(rows))
	for i := range rows {
		profiles = append(profiles, rows[i].toProfile())
	}
	return profiles, nil
}

// InterestsByUserIDs fetches interests for every id in one round trip
func (r *postgresRepository) InterestsByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		UserID   int64  `db:"user_id"`
		Interest string `db:"interest"`
	}
	query := `
		SELECT user_id, interest
		FROM user_interests
		WHERE user_id = ANY($1)
		ORDER BY user_id, interest`

	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("failed to get interests: %w", database.Classify(err))
	}

	for _, row := range rows {
		result[row.UserID] = append(result[row.UserID], row.Interest)
	}
	return result, nil
}

// GenderIDsByLabels maps labels to ids. Unknown labels are absent from the result.
func (r *postgresRepository) GenderIDsByLabels(ctx context.Context, labels []string) (map[string]int, error) {
	result := make(map[string]int, len(labels))
	if len(labels) == 0 {
		return result, nil
	}

	var rows []struct {
		ID    int    `db:"id"`
		Label string `db:"label"`
	}
	query := `SELECT id, label FROM genders WHERE label = ANY($1)`

	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(labels)); err != nil {
		return nil, fmt.Errorf("failed to resolve genders: %w", database.Classify(err))
	}

	for _, row := range rows {
		result[row.Label] = row.ID
	}
	return result, nil
}

// CountActiveUsers counts complete profiles active since the given time
func (r *postgresRepository) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM profiles WHERE is_complete = TRUE AND last_active >= $1`

	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", database.Classify(err))
	}
	return count, nil
}

// RecentlyActiveUserIDs returns complete profiles by most recent activity
func (r *postgresRepository) RecentlyActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]int64, error) {
	var ids []int64
	query := `
		SELECT user_id FROM profiles
		WHERE is_complete = TRUE AND last_active >= $1
		ORDER BY last_active DESC, user_id
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &ids, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", database.Classify(err))
	}
	return ids, nil
}

// SaveProfile upserts the profile row and replaces its interests
func (r *postgresRepository) SaveProfile(ctx context.Context, p *Profile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", database.Classify(err))
	}
	defer tx.Rollback()

	var genderID sql.NullInt64
	if p.Gender != "" {
		err := tx.GetContext(ctx, &genderID, `SELECT id FROM genders WHERE label = $1`, strings.ToLower(p.Gender))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUnknownGender, p.Gender)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve gender: %w", database.Classify(err))
		}
	}

	var lat, lng sql.NullFloat64
	if p.Location != nil {
		lat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: p.Location.Lng, Valid: true}
	}
	lastActive := p.LastActive
	if lastActive.IsZero() {
		lastActive = time.Now()
	}

	query := `
		INSERT INTO profiles (
			user_id, display_name, age, gender_id, city,
			latitude, longitude, bio, is_complete, last_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			age = EXCLUDED.age,
			gender_id = EXCLUDED.gender_id,
			city = EXCLUDED.city,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			bio = EXCLUDED.bio,
			is_complete = EXCLUDED.is_complete,
			last_active = EXCLUDED.last_active,
			updated_at = CURRENT_TIMESTAMP`

	_, err = tx.ExecContext(ctx, query,
		p.UserID, p.DisplayName, p.Age, genderID, p.City,
		lat, lng, p.Bio, p.IsComplete, lastActive,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", database.Classify(err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_interests WHERE user_id = $1`, p.UserID); err != nil {
		return fmt.Errorf("failed to clear interests: %w", database.Classify(err))
	}
	if len(p.Interests) > 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_interests (user_id, interest)
			SELECT $1, UNNEST($2::text[])
			ON CONFLICT DO NOTHING`,
			p.UserID, pq.Array(p.Interests),
		)
		if err != nil {
			return fmt.Errorf("failed to save interests: %w", database.Classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile: %w", database.Classify(err))
	}
	return nil
}

// SavePreferences upserts a preference record as given. Validation happens on read.
func (r *postgresRepository) SavePreferences(ctx context.Context, userID int64, pref *SearchPreference) error {
	query := `
		INSERT INTO search_preferences (
			user_id, min_age, max_age, genders, max_distance_km,
			min_shared_interests, preferred_cities
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			min_age = EXCLUDED.min_age,
			max_age = EXCLUDED.max_age,
			genders = EXCLUDED.genders,
			max_distance_km = EXCLUDED.max_distance_km,
			min_shared_interests = EXCLUDED.min_shared_interests,
			preferred_cities = EXCLUDED.preferred_cities,
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query,
		userID, pref.MinAge, pref.MaxAge, pq.Array(orEmpty(pref.Genders)),
		pref.MaxDistanceKm, pref.MinSharedInterests, pq.Array(orEmpty(pref.PreferredCities)),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", database.Classify(err))
	}
	return nil
}

// orEmpty keeps NOT NULL array columns from receiving NULL
func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
