package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roles-service/internal/middleware"
	"roles-service/internal/policy"
)

// RoleHandler serves the static role catalog and the escalation graph.
type RoleHandler struct{}

// NewRoleHandler creates a new RoleHandler
func NewRoleHandler() *RoleHandler {
	return &RoleHandler{}
}

type roleDescriptor struct {
	Role            policy.Role `json:"role"`
	Level           int         `json:"level"`
	PermissionLevel string      `json:"permissionLevel"`
}

// ListRoles returns the role catalog
// @Summary List the role catalog
// @Tags Roles
// @Produce json
// @Success 200 {array} roleDescriptor
// @Router /api/v1/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles := policy.AllRoles()
	out := make([]roleDescriptor, 0, len(roles))
	for _, r := range roles {
		level, _ := policy.Level(r)
		permLevel, _ := policy.PermissionLevel(r)
		out = append(out, roleDescriptor{Role: r, Level: level, PermissionLevel: permLevel})
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// ListTargets returns the self-service escalation targets of a role
// @Summary List escalation targets of a role
// @Tags Roles
// @Produce json
// @Param role path string true "Current role"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/roles/{role}/targets [get]
func (h *RoleHandler) ListTargets(c *gin.Context) {
	role := policy.Role(c.Param("role"))
	if !policy.IsKnown(role) {
		middleware.AbortNotFound(c, "role")
		return
	}

	targets, err := policy.AvailableTargets(role)
	if err != nil {
		c.Error(err)
		return
	}

	type target struct {
		Role         policy.Role          `json:"role"`
		ApproverRole policy.Role          `json:"approverRole"`
		Requirements []policy.Requirement `json:"requirements"`
	}
	out := make([]target, 0, len(targets))
	for _, t := range targets {
		approver, requirements, err := policy.Resolve(role, t)
		if err != nil {
			c.Error(err)
			return
		}
		out = append(out, target{Role: t, ApproverRole: approver, Requirements: requirements})
	}

	c.JSON(http.StatusOK, gin.H{
		"role":    role,
		"targets": out,
	})
}
