package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/garagembr/garagem-api/models"
	"gorm.io/gorm"
)

// DuplicateMerger collapses users rows that share a normalized email into a
// single canonical row. It is an offline maintenance operation: it takes no
// lock, must not run concurrently with itself, and should not run while
// sign-in traffic is writing the rows it is merging.
type DuplicateMerger struct {
	db   *gorm.DB
	caps SchemaCaps
}

// NewDuplicateMerger creates a merger using the given schema descriptor.
func NewDuplicateMerger(db *gorm.DB, caps SchemaCaps) *DuplicateMerger {
	return &DuplicateMerger{db: db, caps: caps}
}

// MergeReport summarizes one merger run.
type MergeReport struct {
	GroupsFound        int   `json:"groups_found"`
	GroupsMerged       int   `json:"groups_merged"`
	GroupsErrored      int   `json:"groups_errored"`
	VehiclesReparented int64 `json:"vehicles_reparented"`
	UsersDeleted       int   `json:"users_deleted"`
	UsersRetained      int   `json:"users_retained"`
}

// mergeCandidate is one users row inside a duplicate group.
type mergeCandidate struct {
	ID        string
	AuthID    *string
	CreatedAt *time.Time
}

// Run scans the whole users table and merges every duplicate email group.
// A failure inside one group is logged and counted; the remaining groups
// still run. The returned report is complete even when some groups errored.
func (m *DuplicateMerger) Run(ctx context.Context) (*MergeReport, error) {
	var emailKeys []string
	err := m.db.WithContext(ctx).Table("users").
		Select("LOWER(TRIM(email)) AS email_key").
		Where("email IS NOT NULL AND TRIM(email) <> ''").
		Group("LOWER(TRIM(email))").
		Having("COUNT(*) > 1").
		Scan(&emailKeys).Error
	if err != nil {
		return nil, fmt.Errorf("scan duplicate emails: %w: %v", ErrStoreUnavailable, err)
	}

	report := &MergeReport{GroupsFound: len(emailKeys)}
	for _, emailKey := range emailKeys {
		if err := m.mergeGroup(ctx, emailKey, report); err != nil {
			report.GroupsErrored++
			log.Printf("merge: group %q failed: %v", emailKey, err)
			continue
		}
		report.GroupsMerged++
	}

	log.Printf("merge: %d groups found, %d merged, %d errored, %d vehicles re-parented, %d users deleted, %d retained for review",
		report.GroupsFound, report.GroupsMerged, report.GroupsErrored,
		report.VehiclesReparented, report.UsersDeleted, report.UsersRetained)
	return report, nil
}

// mergeGroup merges all rows sharing one normalized email. Canonical-row
// selection: a row with a linked auth_id wins; among those, earliest
// created-at wins.
func (m *DuplicateMerger) mergeGroup(ctx context.Context, emailKey string, report *MergeReport) error {
	order := "(auth_id IS NOT NULL) DESC"
	if m.caps.CreatedAtColumn != "" {
		order += ", " + m.caps.CreatedAtColumn + " ASC"
	}

	sel := "id, auth_id"
	if m.caps.CreatedAtColumn != "" {
		sel += ", " + m.caps.CreatedAtColumn + " AS created_at"
	}

	var rows []mergeCandidate
	err := m.db.WithContext(ctx).Table("users").
		Select(sel).
		Where("LOWER(TRIM(email)) = ?", emailKey).
		Order(order).
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if len(rows) < 2 {
		// Raced with something that already cleaned the group up.
		return nil
	}

	canonical := rows[0]
	log.Printf("merge: %q canonical=%s (%d duplicates)", emailKey, canonical.ID, len(rows)-1)

	for _, dup := range rows[1:] {
		moved, err := m.reparentVehicles(ctx, dup.ID, canonical.ID)
		if err != nil {
			return fmt.Errorf("re-parent vehicles of %s: %w", dup.ID, err)
		}
		report.VehiclesReparented += moved

		retained, err := m.removeIfEmpty(ctx, dup.ID)
		if err != nil {
			return fmt.Errorf("remove duplicate %s: %w", dup.ID, err)
		}
		if retained {
			report.UsersRetained++
		} else {
			report.UsersDeleted++
		}
	}
	return nil
}

// reparentVehicles transfers ownership of every vehicle (including
// soft-deleted ones) from dupID to canonicalID.
func (m *DuplicateMerger) reparentVehicles(ctx context.Context, dupID, canonicalID string) (int64, error) {
	result := m.db.WithContext(ctx).Unscoped().
		Model(&models.Vehicle{}).
		Where("user_id = ?", dupID).
		Updates(map[string]interface{}{
			"user_id":    canonicalID,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("merge: moved %d vehicles %s -> %s", result.RowsAffected, dupID, canonicalID)
	}
	return result.RowsAffected, nil
}

// dependentCounters lists every known table that can reference a user. A
// duplicate row is deleted only when all of them come back empty; anything
// still owning data is retained for manual review. Guides are deliberately
// in the check list but not re-parented.
func (m *DuplicateMerger) removeIfEmpty(ctx context.Context, dupID string) (retained bool, err error) {
	counters := []struct {
		model  interface{}
		column string
	}{
		{&models.Vehicle{}, "user_id"},
		{&models.Guide{}, "author_id"},
	}

	for _, dep := range counters {
		var count int64
		err := m.db.WithContext(ctx).Unscoped().
			Model(dep.model).
			Where(dep.column+" = ?", dupID).
			Count(&count).Error
		if err != nil {
			return false, err
		}
		if count > 0 {
			log.Printf("merge: retaining %s for review: %v", dupID, ErrConflictUnresolved)
			return true, nil
		}
	}

	if err := m.db.WithContext(ctx).Exec("DELETE FROM users WHERE id = ?", dupID).Error; err != nil {
		return false, err
	}
	log.Printf("merge: deleted empty duplicate %s", dupID)
	return false, nil
}
