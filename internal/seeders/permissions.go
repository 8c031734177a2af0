package seeders

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sirupsen/logrus"

	"roles-service/internal/models"
	"roles-service/internal/policy"
)

// Platform modules governed by the permission matrix.
var seedModules = []string{
	"announcements",
	"events",
	"facilities",
	"complaints",
	"documents",
	"role_requests",
}

// SeedDefaultPermissions creates or updates the system-level permission
// matrix. Rows use tenant_id 'system' and serve as the fallback matrix
// for tenants that have not customized their own.
func SeedDefaultPermissions(db *gorm.DB, logger *logrus.Logger) error {
	log := logger.WithField("component", "seeder")

	var rows []models.ModulePermission
	for _, role := range policy.AllRoles() {
		level, err := policy.Level(role)
		if err != nil {
			return err
		}
		for _, module := range seedModules {
			rows = append(rows, models.ModulePermission{
				TenantID:   "system",
				Role:       role,
				Module:     module,
				CanRead:    true,
				CanCreate:  level >= 2,
				CanUpdate:  level >= 3,
				CanDelete:  level >= 4,
				CanApprove: level >= 4,
			})
		}
	}

	for _, row := range rows {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "role"}, {Name: "module"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			log.WithError(result.Error).WithFields(logrus.Fields{
				"role":   row.Role,
				"module": row.Module,
			}).Error("Failed to seed permission row")
			return result.Error
		}
	}

	log.WithField("rows", len(rows)).Info("Seeded default permission matrix")
	return nil
}
