package models

import (
	"time"

	"github.com/google/uuid"

	"roles-service/internal/policy"
)

// Capability names one of the five boolean capabilities a matrix row
// can grant.
type Capability string

// Capability constants
const (
	CapabilityRead    Capability = "read"
	CapabilityCreate  Capability = "create"
	CapabilityUpdate  Capability = "update"
	CapabilityDelete  Capability = "delete"
	CapabilityApprove Capability = "approve"
)

// IsValid reports whether c is one of the known capabilities.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityRead, CapabilityCreate, CapabilityUpdate, CapabilityDelete, CapabilityApprove:
		return true
	}
	return false
}

// Capabilities is the value of one permission matrix cell. Each flag
// is independent; the zero value is deny-everything.
type Capabilities struct {
	CanRead    bool `json:"canRead"`
	CanCreate  bool `json:"canCreate"`
	CanUpdate  bool `json:"canUpdate"`
	CanDelete  bool `json:"canDelete"`
	CanApprove bool `json:"canApprove"`
}

// Or returns the logical OR of c and other.
func (c Capabilities) Or(other Capabilities) Capabilities {
	return Capabilities{
		CanRead:    c.CanRead || other.CanRead,
		CanCreate:  c.CanCreate || other.CanCreate,
		CanUpdate:  c.CanUpdate || other.CanUpdate,
		CanDelete:  c.CanDelete || other.CanDelete,
		CanApprove: c.CanApprove || other.CanApprove,
	}
}

// With returns a copy of c with the named capability set to value.
func (c Capabilities) With(cap Capability, value bool) Capabilities {
	switch cap {
	case CapabilityRead:
		c.CanRead = value
	case CapabilityCreate:
		c.CanCreate = value
	case CapabilityUpdate:
		c.CanUpdate = value
	case CapabilityDelete:
		c.CanDelete = value
	case CapabilityApprove:
		c.CanApprove = value
	}
	return c
}

// ModulePermission is one permission matrix row: the capabilities a
// role holds on a platform module. Absence of a row means all
// capabilities denied.
type ModulePermission struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID   string      `gorm:"type:varchar(255);not null;index;uniqueIndex:idx_role_module" json:"tenantId"`
	Role       policy.Role `gorm:"type:varchar(50);not null;uniqueIndex:idx_role_module" json:"role"`
	Module     string      `gorm:"type:varchar(100);not null;uniqueIndex:idx_role_module" json:"module"`
	CanRead    bool        `gorm:"default:false" json:"canRead"`
	CanCreate  bool        `gorm:"default:false" json:"canCreate"`
	CanUpdate  bool        `gorm:"default:false" json:"canUpdate"`
	CanDelete  bool        `gorm:"default:false" json:"canDelete"`
	CanApprove bool        `gorm:"default:false" json:"canApprove"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for ModulePermission
func (ModulePermission) TableName() string {
	return "module_permissions"
}

// Capabilities returns the row's capability set.
func (p *ModulePermission) Capabilities() Capabilities {
	return Capabilities{
		CanRead:    p.CanRead,
		CanCreate:  p.CanCreate,
		CanUpdate:  p.CanUpdate,
		CanDelete:  p.CanDelete,
		CanApprove: p.CanApprove,
	}
}
