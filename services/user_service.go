package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garagembr/garagem-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserUpserter maps verified identities onto rows of the users table. It owns
// the cached schema descriptor: the probe runs once per process and is only
// repeated when a write fails with undefined_column, which means the schema
// drifted after startup.
type UserUpserter struct {
	db *gorm.DB

	mu   sync.Mutex
	caps *SchemaCaps
}

// NewUserUpserter creates an upserter bound to the given database handle.
func NewUserUpserter(db *gorm.DB) *UserUpserter {
	return &UserUpserter{db: db}
}

// Caps returns the cached schema descriptor, probing the users table on
// first use.
func (u *UserUpserter) Caps() (SchemaCaps, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.caps != nil {
		return *u.caps, nil
	}
	caps, err := DetectSchemaCaps(u.db)
	if err != nil {
		return SchemaCaps{}, err
	}
	u.caps = &caps
	return caps, nil
}

func (u *UserUpserter) invalidateCaps() {
	u.mu.Lock()
	u.caps = nil
	u.mu.Unlock()
}

// Sync ensures exactly one users row reflects the verified identity and
// returns the normalized row. Calling it twice with the same tuple leaves
// every data-visible field unchanged; only the updated-at column advances.
func (u *UserUpserter) Sync(ctx context.Context, ident Identity) (*models.NormalizedUser, error) {
	if ident.SubjectID == "" {
		return nil, fmt.Errorf("sync user: %w", ErrInvalidCredential)
	}

	caps, err := u.Caps()
	if err != nil {
		return nil, err
	}

	user, err := u.upsert(ctx, caps, ident)
	if err != nil && isUndefinedColumn(err) {
		// The probed column vanished after startup. Re-probe once, retry.
		u.invalidateCaps()
		if caps, err = u.Caps(); err != nil {
			return nil, err
		}
		user, err = u.upsert(ctx, caps, ident)
		if err != nil && isUndefinedColumn(err) {
			return nil, fmt.Errorf("sync user: %w", ErrSchemaMismatch)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sync user: %w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func (u *UserUpserter) upsert(ctx context.Context, caps SchemaCaps, ident Identity) (*models.NormalizedUser, error) {
	// Prefer an existing row with the same normalized email so a provider
	// sign-in lands on the legacy password-era row instead of minting a
	// duplicate under the subject id.
	targetID := ident.SubjectID
	if ident.Email != "" {
		var existingID string
		err := u.db.WithContext(ctx).Table("users").
			Select("id").
			Where("LOWER(TRIM(email)) = ?", ident.NormalizedEmail()).
			Limit(1).
			Scan(&existingID).Error
		if err != nil {
			return nil, err
		}
		if existingID != "" {
			targetID = existingID
		}
	}

	now := time.Now().UTC()

	values := map[string]interface{}{
		"id":                   targetID,
		"email":                ident.Email,
		caps.DisplayNameColumn: ident.DisplayName,
		"photo_url":            ident.AvatarURL,
		"auth_id":              ident.SubjectID,
	}
	if caps.CreatedAtColumn != "" {
		values[caps.CreatedAtColumn] = now
	}

	// Never blank out stored profile data just because this token had none:
	// an opaque access token whose userinfo lookup failed arrives here with an
	// empty profile.
	assignments := map[string]interface{}{
		"auth_id": ident.SubjectID,
	}
	if ident.Email != "" {
		assignments["email"] = ident.Email
	}
	if ident.DisplayName != "" {
		assignments[caps.DisplayNameColumn] = ident.DisplayName
	}
	if ident.AvatarURL != "" {
		assignments["photo_url"] = ident.AvatarURL
	}
	if caps.UpdatedAtColumn != "" {
		values[caps.UpdatedAtColumn] = now
		assignments[caps.UpdatedAtColumn] = now
	}

	err := u.db.WithContext(ctx).Table("users").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(values).Error
	if err != nil {
		return nil, err
	}

	return u.readRow(ctx, caps, targetID)
}

// Get returns the normalized row for a subject id, matching either the
// primary id or the linked auth_id. Returns gorm.ErrRecordNotFound when no
// row exists.
func (u *UserUpserter) Get(ctx context.Context, subjectID string) (*models.NormalizedUser, error) {
	caps, err := u.Caps()
	if err != nil {
		return nil, err
	}
	return u.readRow(ctx, caps, subjectID)
}

// UpdateProfile applies the given display name and/or phone to the row owned
// by subjectID, using whichever column spellings the schema has. Nil fields
// are left untouched.
func (u *UserUpserter) UpdateProfile(ctx context.Context, subjectID string, name, phone *string) (*models.NormalizedUser, error) {
	caps, err := u.Caps()
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != nil {
		updates[caps.DisplayNameColumn] = *name
	}
	if phone != nil && caps.PhoneColumn != "" {
		updates[caps.PhoneColumn] = *phone
	}
	if len(updates) > 0 {
		if caps.UpdatedAtColumn != "" {
			updates[caps.UpdatedAtColumn] = time.Now().UTC()
		}
		result := u.db.WithContext(ctx).Table("users").
			Where("id = ? OR auth_id = ?", subjectID, subjectID).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("update profile: %w: %v", ErrStoreUnavailable, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}

	return u.readRow(ctx, caps, subjectID)
}

// SetAvatarKey records the S3 object key of an uploaded avatar. Legacy
// schemas without the column surface ErrSchemaMismatch.
func (u *UserUpserter) SetAvatarKey(ctx context.Context, subjectID, s3Key string) error {
	caps, err := u.Caps()
	if err != nil {
		return err
	}
	if caps.AvatarKeyColumn == "" {
		return fmt.Errorf("set avatar: %w", ErrSchemaMismatch)
	}

	updates := map[string]interface{}{caps.AvatarKeyColumn: s3Key}
	if caps.UpdatedAtColumn != "" {
		updates[caps.UpdatedAtColumn] = time.Now().UTC()
	}
	result := u.db.WithContext(ctx).Table("users").
		Where("id = ? OR auth_id = ?", subjectID, subjectID).
		Updates(updates)
	if result.Error != nil {
		if isUndefinedColumn(result.Error) {
			return fmt.Errorf("set avatar: %w", ErrSchemaMismatch)
		}
		return fmt.Errorf("set avatar: %w: %v", ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// userRow is the schema-agnostic scan target: every legacy spelling is
// aliased onto the canonical name in the SELECT list.
type userRow struct {
	ID          string
	Email       string
	Name        string
	Phone       string
	PhotoURL    string
	AvatarS3Key string
	AuthID      *string
	IsPro       bool
	CreatedAt   *time.Time
}

func (u *UserUpserter) readRow(ctx context.Context, caps SchemaCaps, id string) (*models.NormalizedUser, error) {
	var row userRow
	result := u.db.WithContext(ctx).Table("users").
		Select(caps.selectColumns()).
		Where("id = ? OR auth_id = ?", id, id).
		Limit(1).
		Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("read user: %w: %v", ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return normalizeRow(row), nil
}

// selectColumns builds the SELECT list for the detected schema, aliasing
// legacy spellings onto canonical names.
func (caps SchemaCaps) selectColumns() string {
	cols := []string{"id", "email", caps.DisplayNameColumn + " AS name", "photo_url", "auth_id", "is_pro"}
	if caps.PhoneColumn != "" {
		cols = append(cols, caps.PhoneColumn+" AS phone")
	}
	if caps.AvatarKeyColumn != "" {
		cols = append(cols, caps.AvatarKeyColumn+" AS avatar_s3_key")
	}
	if caps.CreatedAtColumn != "" {
		cols = append(cols, caps.CreatedAtColumn+" AS created_at")
	}
	return strings.Join(cols, ", ")
}

func normalizeRow(row userRow) *models.NormalizedUser {
	name := strings.TrimSpace(row.Name)
	var createdAt *string
	if row.CreatedAt != nil {
		s := row.CreatedAt.UTC().Format(time.RFC3339)
		createdAt = &s
	}
	return &models.NormalizedUser{
		ID:          row.ID,
		Email:       row.Email,
		Name:        name,
		Nome:        name,
		Phone:       row.Phone,
		Celular:     row.Phone,
		PhotoURL:    row.PhotoURL,
		AvatarS3Key: row.AvatarS3Key,
		AuthID:      row.AuthID,
		IsPro:       row.IsPro,
		CreatedAt:   createdAt,
	}
}

// IsNotFound reports whether err is the store's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
