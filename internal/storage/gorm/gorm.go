// Package gormstorage implements the storage.Backend interface on top of GORM.
// The SQLite and Postgres backends wrap it and only add connection handling.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/helmsync/internal/database"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/model"
	"github.com/OCAP2/helmsync/internal/model/convert"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
	// LockRows adds SELECT ... FOR UPDATE to read-modify-write transactions.
	// SQLite serialises writers on its own and does not support it.
	LockRows bool
	// Now is the clock used for timestamps, time.Now when nil.
	Now func() time.Time
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database connection")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		b.deps.LogManager.Logger().Error("Failed to migrate schema", "error", err)
		return err
	}
	b.deps.LogManager.Logger().Info("Database setup complete", "dialect", b.deps.DB.Name())
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) locked(tx *gorm.DB) *gorm.DB {
	if b.deps.LockRows {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// LoadVessels returns every persisted vessel of spaceID, or of all spaces when spaceID is empty.
func (b *Backend) LoadVessels(ctx context.Context, spaceID string) ([]core.Vessel, error) {
	var rows []model.Vessel
	q := b.deps.DB.WithContext(ctx).Order("id")
	if spaceID != "" {
		q = q.Where("space_id = ?", spaceID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load vessels: %w", err)
	}

	vessels := make([]core.Vessel, 0, len(rows))
	for _, r := range rows {
		vessels = append(vessels, convert.VesselToCore(r))
	}
	return vessels, nil
}

// SaveVessels upserts vessels in one transaction.
func (b *Backend) SaveVessels(ctx context.Context, vessels []core.Vessel) error {
	if len(vessels) == 0 {
		return nil
	}
	rows := make([]model.Vessel, 0, len(vessels))
	for _, v := range vessels {
		rows = append(rows, convert.CoreToVessel(v))
	}

	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save vessels: %w", err)
	}
	return nil
}

// DeleteVessel removes a vessel record.
func (b *Backend) DeleteVessel(ctx context.Context, vesselID string) error {
	res := b.deps.DB.WithContext(ctx).Delete(&model.Vessel{}, "id = ?", vesselID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete vessel %s: %w", vesselID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("vessel %s: %w", vesselID, storage.ErrNotFound)
	}
	return nil
}

// Profile returns the economy profile of userID.
func (b *Backend) Profile(ctx context.Context, userID string) (core.EconomyProfile, error) {
	var row model.EconomyProfile
	err := b.deps.DB.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NewEconomyProfile(userID), nil
	}
	if err != nil {
		return core.EconomyProfile{}, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	return convert.ProfileToCore(row), nil
}

// AdjustProfile applies adj to userID's profile and records it in the ledger.
func (b *Backend) AdjustProfile(ctx context.Context, userID string, adj core.Adjustment, fn storage.ProfileFunc) (core.EconomyProfile, error) {
	var out core.EconomyProfile
	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := b.adjustTx(tx, userID, adj, fn)
		out = p
		return err
	})
	if err != nil {
		return core.EconomyProfile{}, err
	}
	return out, nil
}

// adjustTx is the read-modify-write of one profile inside tx.
func (b *Backend) adjustTx(tx *gorm.DB, userID string, adj core.Adjustment, fn storage.ProfileFunc) (core.EconomyProfile, error) {
	var row model.EconomyProfile
	p := core.NewEconomyProfile(userID)

	err := b.locked(tx).First(&row, "user_id = ?", userID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return p, fmt.Errorf("failed to load profile %s: %w", userID, err)
	default:
		p = convert.ProfileToCore(row)
	}

	p.Credits += adj.Credits
	p.Experience += adj.Experience
	p.Rank = core.RankFor(p.Experience)
	if fn != nil {
		if err := fn(&p); err != nil {
			return p, err
		}
	}

	now := b.deps.Now()
	row = convert.CoreToProfile(p)
	row.UpdatedAt = now
	if err := tx.Save(&row).Error; err != nil {
		return p, fmt.Errorf("failed to save profile %s: %w", userID, err)
	}
	if adj.Credits != 0 || adj.Experience != 0 {
		ledger := convert.AdjustmentToLedger(userID, adj, now)
		if err := tx.Create(&ledger).Error; err != nil {
			return p, fmt.Errorf("failed to write ledger for %s: %w", userID, err)
		}
	}
	return p, nil
}

// CreateAssignment inserts a new assignment.
func (b *Backend) CreateAssignment(ctx context.Context, a core.MissionAssignment) error {
	row := convert.CoreToAssignment(a)
	res := b.deps.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to create assignment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("assignment %s: %w", a.ID, storage.ErrConflict)
	}
	return nil
}

// Assignment returns one assignment by id.
func (b *Backend) Assignment(ctx context.Context, id string) (core.MissionAssignment, error) {
	var row model.MissionAssignment
	err := b.deps.DB.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.MissionAssignment{}, fmt.Errorf("assignment %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.MissionAssignment{}, fmt.Errorf("failed to load assignment %s: %w", id, err)
	}
	return convert.AssignmentToCore(row), nil
}

// ActiveAssignments returns the assigned and in-progress assignments of spaceID.
func (b *Backend) ActiveAssignments(ctx context.Context, spaceID string) ([]core.MissionAssignment, error) {
	var rows []model.MissionAssignment
	q := b.deps.DB.WithContext(ctx).
		Where("status IN ?", []string{string(core.AssignmentAssigned), string(core.AssignmentInProgress)}).
		Order("assigned_at, id")
	if spaceID != "" {
		q = q.Where("space_id = ?", spaceID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	out := make([]core.MissionAssignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.AssignmentToCore(r))
	}
	return out, nil
}

// AdvanceAssignment compares the stored status with from before writing next.
func (b *Backend) AdvanceAssignment(ctx context.Context, id string, from core.AssignmentStatus, next core.MissionAssignment) (bool, error) {
	res := b.deps.DB.WithContext(ctx).Model(&model.MissionAssignment{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{
			"status":     string(next.Status),
			"stage":      string(next.Stage),
			"updated_at": next.UpdatedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to advance assignment %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompleteAssignment moves an in-progress assignment to completed and pays
// the reward in one transaction.
func (b *Backend) CompleteAssignment(ctx context.Context, id string, reward core.Adjustment, fn storage.ProfileFunc) (core.MissionAssignment, core.EconomyProfile, bool, error) {
	var (
		a       core.MissionAssignment
		p       core.EconomyProfile
		applied bool
	)

	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.MissionAssignment
		if err := b.locked(tx).First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("assignment %s: %w", id, storage.ErrNotFound)
			}
			return fmt.Errorf("failed to load assignment %s: %w", id, err)
		}

		now := b.deps.Now()
		res := tx.Model(&model.MissionAssignment{}).
			Where("id = ? AND status = ?", id, string(core.AssignmentInProgress)).
			Updates(map[string]any{
				"status":       string(core.AssignmentCompleted),
				"updated_at":   now,
				"completed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete assignment %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			a = convert.AssignmentToCore(row)
			return nil
		}

		row.Status = string(core.AssignmentCompleted)
		row.UpdatedAt = now
		a = convert.AssignmentToCore(row)

		var err error
		p, err = b.adjustTx(tx, row.UserID, reward, fn)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return core.MissionAssignment{}, core.EconomyProfile{}, false, err
	}
	return a, p, applied, nil
}
