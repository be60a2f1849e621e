package services

import (
	"context"
	"testing"
	"time"

	"github.com/garagembr/garagem-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestMerger(t *testing.T, db *gorm.DB) *DuplicateMerger {
	t.Helper()
	caps, err := DetectSchemaCaps(db)
	require.NoError(t, err)
	return NewDuplicateMerger(db, caps)
}

func insertUser(t *testing.T, db *gorm.DB, id, email string, authID *string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, email, name, auth_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, "user "+id, authID, createdAt, createdAt,
	).Error)
}

func insertVehicle(t *testing.T, db *gorm.DB, userID, brand string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Vehicle{UserID: userID, Brand: brand, Model: "Test"}).Error)
}

func vehicleCount(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Vehicle{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func userExists(t *testing.T, db *gorm.DB, id string) bool {
	t.Helper()
	var count int64
	require.NoError(t, db.Table("users").Where("id = ?", id).Count(&count).Error)
	return count > 0
}

func strPtr(s string) *string { return &s }

// The canonical scenario: two rows for the same email, one linked to the
// provider, one not. The linked row wins even though it is newer; the other
// row's vehicles move over and the emptied row is deleted.
func TestMergeLinkedRowWins(t *testing.T) {
	db := setupCanonicalDB(t)

	insertUser(t, db, "a1", "alice@example.com", nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "b2", "alice@example.com", strPtr("ext-99"), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	insertVehicle(t, db, "a1", "Fiat")
	insertVehicle(t, db, "a1", "VW")
	insertVehicle(t, db, "b2", "Chevrolet")

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.GroupsFound)
	assert.Equal(t, 1, report.GroupsMerged)
	assert.Equal(t, 0, report.GroupsErrored)
	assert.Equal(t, int64(2), report.VehiclesReparented)
	assert.Equal(t, 1, report.UsersDeleted)
	assert.Equal(t, 0, report.UsersRetained)

	assert.Equal(t, int64(0), vehicleCount(t, db, "a1"), "No vehicles may stay on the duplicate")
	assert.Equal(t, int64(3), vehicleCount(t, db, "b2"), "All vehicles move to the canonical row")
	assert.False(t, userExists(t, db, "a1"), "Emptied duplicate is deleted")
	assert.True(t, userExists(t, db, "b2"))
}

func TestMergeOldestRowWinsWithoutAuthLink(t *testing.T) {
	db := setupCanonicalDB(t)

	insertUser(t, db, "new", "bob@example.com", nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "old", "bob@example.com", nil, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	insertVehicle(t, db, "new", "Ford")

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.GroupsMerged)
	assert.True(t, userExists(t, db, "old"), "Earliest row is canonical when nothing is linked")
	assert.False(t, userExists(t, db, "new"))
	assert.Equal(t, int64(1), vehicleCount(t, db, "old"))
}

func TestMergeGroupsByNormalizedEmail(t *testing.T) {
	db := setupCanonicalDB(t)

	insertUser(t, db, "u1", "Carol@Example.com", strPtr("ext-1"), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "u2", "carol@example.com ", nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.GroupsFound, "Case and whitespace differences still group together")
	assert.True(t, userExists(t, db, "u1"))
	assert.False(t, userExists(t, db, "u2"))
}

// A duplicate that still owns rows in a table the merger checks but does not
// re-parent must survive the run.
func TestMergeRetainsRowOwningGuides(t *testing.T) {
	db := setupCanonicalDB(t)

	insertUser(t, db, "keep", "dan@example.com", strPtr("ext-2"), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "dup", "dan@example.com", nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	insertVehicle(t, db, "dup", "Honda")
	require.NoError(t, db.Create(&models.Guide{AuthorID: "dup", Title: "Troca de oleo", Slug: "troca-de-oleo"}).Error)

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.GroupsMerged)
	assert.Equal(t, int64(1), report.VehiclesReparented, "Vehicles still move even when the row is retained")
	assert.Equal(t, 0, report.UsersDeleted)
	assert.Equal(t, 1, report.UsersRetained)

	assert.True(t, userExists(t, db, "dup"), "A row that still owns guides is never deleted")
	assert.Equal(t, int64(1), vehicleCount(t, db, "keep"))
}

func TestMergeSoftDeletedVehiclesBlockNothingButMove(t *testing.T) {
	db := setupCanonicalDB(t)

	insertUser(t, db, "main", "eva@example.com", strPtr("ext-3"), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "dup", "eva@example.com", nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	insertVehicle(t, db, "dup", "Renault")
	require.NoError(t, db.Where("user_id = ?", "dup").Delete(&models.Vehicle{}).Error)

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	// Soft-deleted rows still reference the user; they are transferred, not
	// left dangling, and once transferred the duplicate is empty.
	assert.Equal(t, int64(1), report.VehiclesReparented)
	assert.Equal(t, 1, report.UsersDeleted)
	assert.Equal(t, int64(1), vehicleCount(t, db, "main"))
	assert.False(t, userExists(t, db, "dup"))
}

func TestMergeMultipleGroupsIndependently(t *testing.T) {
	db := setupCanonicalDB(t)

	insertUser(t, db, "f1", "fred@example.com", strPtr("ext-4"), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "f2", "fred@example.com", nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "g1", "gina@example.com", nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "g2", "gina@example.com", nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	insertUser(t, db, "solo", "henri@example.com", nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.GroupsFound, "Unique emails are not groups")
	assert.Equal(t, 2, report.GroupsMerged)
	assert.True(t, userExists(t, db, "solo"))
	assert.Equal(t, int64(3), func() int64 {
		var count int64
		require.NoError(t, db.Table("users").Count(&count).Error)
		return count
	}())
}

func TestMergeNoDuplicates(t *testing.T) {
	db := setupCanonicalDB(t)
	insertUser(t, db, "only", "iris@example.com", nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.GroupsFound)
	assert.Equal(t, 0, report.GroupsMerged)
}

func TestMergeLegacySchema(t *testing.T) {
	db := setupLegacyDB(t)

	require.NoError(t, db.Exec(
		`INSERT INTO users (id, email, nome, auth_id, criado_em, atualizado_em) VALUES (?, ?, ?, ?, ?, ?)`,
		"l1", "java@example.com", "J", nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, email, nome, auth_id, criado_em, atualizado_em) VALUES (?, ?, ?, ?, ?, ?)`,
		"l2", "java@example.com", "J", "ext-9", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	).Error)
	insertVehicle(t, db, "l1", "Fiat")

	report, err := newTestMerger(t, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.GroupsMerged)
	assert.True(t, userExists(t, db, "l2"), "Linked row wins under legacy column names too")
	assert.False(t, userExists(t, db, "l1"))
	assert.Equal(t, int64(1), vehicleCount(t, db, "l2"))
}
