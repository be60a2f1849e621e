package services

import (
	"errors"
	"fmt"

	"github.com/garagembr/garagem-api/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SchemaCaps describes which column spellings the live users table actually
// has. Production databases predate this service and were never migrated, so
// a row's display name may live in "name" or in the legacy "nome", and the
// timestamps may carry Portuguese names. The descriptor is computed once at
// startup instead of trial-and-error on every write.
type SchemaCaps struct {
	DisplayNameColumn string // "name" or "nome"; always set
	PhoneColumn       string // "phone" or "celular"; empty if absent
	CreatedAtColumn   string // "created_at" or "criado_em"; empty if absent
	UpdatedAtColumn   string // "updated_at" or "atualizado_em"; empty if absent
	AvatarKeyColumn   string // "avatar_s3_key"; empty on legacy schemas
}

// displayNameCandidates is ordered: fresh installs use "name", legacy
// databases use "nome".
var displayNameCandidates = []string{"name", "nome"}

// DetectSchemaCaps probes the users table for the column spellings it
// understands. Returns ErrSchemaMismatch when no display-name candidate
// exists, since the upsert cannot be expressed without one.
func DetectSchemaCaps(db *gorm.DB) (SchemaCaps, error) {
	caps := SchemaCaps{}
	migrator := db.Migrator()

	for _, col := range displayNameCandidates {
		if migrator.HasColumn(&models.User{}, col) {
			caps.DisplayNameColumn = col
			break
		}
	}
	if caps.DisplayNameColumn == "" {
		return SchemaCaps{}, fmt.Errorf("detecting users schema: %w", ErrSchemaMismatch)
	}

	caps.PhoneColumn = firstPresentColumn(migrator, "phone", "celular")
	caps.CreatedAtColumn = firstPresentColumn(migrator, "created_at", "criado_em")
	caps.UpdatedAtColumn = firstPresentColumn(migrator, "updated_at", "atualizado_em")
	caps.AvatarKeyColumn = firstPresentColumn(migrator, "avatar_s3_key")

	return caps, nil
}

func firstPresentColumn(migrator gorm.Migrator, candidates ...string) string {
	for _, col := range candidates {
		if migrator.HasColumn(&models.User{}, col) {
			return col
		}
	}
	return ""
}

// isUndefinedColumn reports whether err is Postgres complaining about a
// column that does not exist. The check is on the error code, never on the
// message text.
func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UndefinedColumn
	}
	return false
}
