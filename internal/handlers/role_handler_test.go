package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"roles-service/internal/policy"
)

func setupRoleRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewRoleHandler()
	r.GET("/roles", h.ListRoles)
	r.GET("/roles/:role/targets", h.ListTargets)
	return r
}

func TestListRolesReturnsCatalog(t *testing.T) {
	router := setupRoleRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/roles", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Roles []struct {
			Role  policy.Role `json:"role"`
			Level int         `json:"level"`
		} `json:"roles"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Roles, 9)
	assert.Equal(t, policy.RoleResident, body.Roles[0].Role)
	assert.Equal(t, 1, body.Roles[0].Level)
	assert.Equal(t, policy.RoleAdmin, body.Roles[8].Role)
	assert.Equal(t, 7, body.Roles[8].Level)
}

func TestListTargetsIncludesApprover(t *testing.T) {
	router := setupRoleRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/roles/community_leader/targets", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Role    policy.Role `json:"role"`
		Targets []struct {
			Role         policy.Role `json:"role"`
			ApproverRole policy.Role `json:"approverRole"`
			Requirements []string    `json:"requirements"`
		} `json:"targets"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Targets, 1)
	assert.Equal(t, policy.RoleCommunityAdmin, body.Targets[0].Role)
	assert.Equal(t, policy.RoleDistrictCoordinator, body.Targets[0].ApproverRole)
	assert.NotEmpty(t, body.Targets[0].Requirements)
}

func TestListTargetsAdminIsEmpty(t *testing.T) {
	router := setupRoleRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/roles/admin/targets", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Targets []json.RawMessage `json:"targets"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Targets)
}

func TestListTargetsUnknownRole(t *testing.T) {
	router := setupRoleRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/roles/mayor/targets", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
