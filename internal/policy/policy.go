// Package policy is the single authoritative source for the role
// catalog, the self-service escalation graph, and the approval policy
// applied when a user requests a new role. The hierarchy and the
// resolver intentionally live together so the two cannot drift apart.
package policy

import (
	"roles-service/internal/apperrors"
)

// Role is one of the closed set of roles a community member can hold.
type Role string

// Role catalog
const (
	RoleResident            Role = "resident"
	RoleCommunityLeader     Role = "community_leader"
	RoleServiceProvider     Role = "service_provider"
	RoleFacilityManager     Role = "facility_manager"
	RoleSecurity            Role = "security"
	RoleCommunityAdmin      Role = "community_admin"
	RoleDistrictCoordinator Role = "district_coordinator"
	RoleStateAdmin          Role = "state_admin"
	RoleAdmin               Role = "admin"
)

// Requirement names an out-of-band verification step an approver must
// see completed before granting a role change. Enforcement of the step
// itself happens outside this service.
type Requirement string

// Requirement vocabulary
const (
	RequirementCommunityVoting       Requirement = "community_voting"
	RequirementBusinessVerification  Requirement = "business_verification"
	RequirementInterviewProcess      Requirement = "interview_process"
	RequirementBackgroundCheck       Requirement = "background_check"
	RequirementPerformanceEvaluation Requirement = "performance_evaluation"
	RequirementMultiLevelApproval    Requirement = "multi_level_approval"
)

// roleInfo carries the static attributes of a catalog role.
type roleInfo struct {
	Level           int
	PermissionLevel string
}

var catalog = map[Role]roleInfo{
	RoleResident:            {Level: 1, PermissionLevel: "basic"},
	RoleCommunityLeader:     {Level: 2, PermissionLevel: "standard"},
	RoleServiceProvider:     {Level: 2, PermissionLevel: "standard"},
	RoleSecurity:            {Level: 2, PermissionLevel: "standard"},
	RoleFacilityManager:     {Level: 3, PermissionLevel: "elevated"},
	RoleCommunityAdmin:      {Level: 4, PermissionLevel: "management"},
	RoleDistrictCoordinator: {Level: 5, PermissionLevel: "district"},
	RoleStateAdmin:          {Level: 6, PermissionLevel: "state"},
	RoleAdmin:               {Level: 7, PermissionLevel: "full"},
}

// escalationTargets is the explicit self-service escalation graph.
// Edges are exact and non-transitive: they are configuration, not
// something derived from levels.
var escalationTargets = map[Role][]Role{
	RoleResident:            {RoleCommunityLeader, RoleServiceProvider, RoleFacilityManager, RoleSecurity},
	RoleCommunityLeader:     {RoleCommunityAdmin},
	RoleServiceProvider:     {RoleFacilityManager},
	RoleFacilityManager:     {RoleCommunityAdmin},
	RoleSecurity:            {RoleCommunityAdmin},
	RoleCommunityAdmin:      {RoleDistrictCoordinator},
	RoleDistrictCoordinator: {RoleStateAdmin},
	RoleStateAdmin:          {RoleAdmin},
	RoleAdmin:               {},
}

// edgePolicy is the approval policy for one escalation edge.
type edgePolicy struct {
	ApproverRole Role
	Requirements []Requirement
}

type edge struct {
	From Role
	To   Role
}

var edgePolicies = map[edge]edgePolicy{
	{RoleResident, RoleCommunityLeader}: {
		ApproverRole: RoleCommunityAdmin,
		Requirements: []Requirement{RequirementCommunityVoting, RequirementInterviewProcess},
	},
	{RoleResident, RoleServiceProvider}: {
		ApproverRole: RoleCommunityAdmin,
		Requirements: []Requirement{RequirementBusinessVerification},
	},
	{RoleResident, RoleFacilityManager}: {
		ApproverRole: RoleCommunityAdmin,
		Requirements: []Requirement{RequirementInterviewProcess, RequirementBackgroundCheck},
	},
	{RoleResident, RoleSecurity}: {
		ApproverRole: RoleCommunityAdmin,
		Requirements: []Requirement{RequirementBackgroundCheck, RequirementInterviewProcess},
	},
	{RoleCommunityLeader, RoleCommunityAdmin}: {
		ApproverRole: RoleDistrictCoordinator,
		Requirements: []Requirement{RequirementPerformanceEvaluation, RequirementInterviewProcess},
	},
	{RoleServiceProvider, RoleFacilityManager}: {
		ApproverRole: RoleCommunityAdmin,
		Requirements: []Requirement{RequirementBusinessVerification, RequirementInterviewProcess},
	},
	{RoleFacilityManager, RoleCommunityAdmin}: {
		ApproverRole: RoleDistrictCoordinator,
		Requirements: []Requirement{RequirementPerformanceEvaluation, RequirementMultiLevelApproval},
	},
	{RoleSecurity, RoleCommunityAdmin}: {
		ApproverRole: RoleDistrictCoordinator,
		Requirements: []Requirement{RequirementBackgroundCheck, RequirementPerformanceEvaluation, RequirementMultiLevelApproval},
	},
	{RoleCommunityAdmin, RoleDistrictCoordinator}: {
		ApproverRole: RoleStateAdmin,
		Requirements: []Requirement{RequirementPerformanceEvaluation, RequirementMultiLevelApproval},
	},
	{RoleDistrictCoordinator, RoleStateAdmin}: {
		ApproverRole: RoleAdmin,
		Requirements: []Requirement{RequirementPerformanceEvaluation, RequirementMultiLevelApproval},
	},
	{RoleStateAdmin, RoleAdmin}: {
		ApproverRole: RoleAdmin,
		Requirements: []Requirement{RequirementMultiLevelApproval, RequirementBackgroundCheck},
	},
}

// IsKnown reports whether role is part of the catalog.
func IsKnown(role Role) bool {
	_, ok := catalog[role]
	return ok
}

// AllRoles returns the catalog in ascending level order.
func AllRoles() []Role {
	return []Role{
		RoleResident,
		RoleCommunityLeader,
		RoleServiceProvider,
		RoleSecurity,
		RoleFacilityManager,
		RoleCommunityAdmin,
		RoleDistrictCoordinator,
		RoleStateAdmin,
		RoleAdmin,
	}
}

// Level returns the authority level of role. Higher means more
// authority.
func Level(role Role) (int, error) {
	info, ok := catalog[role]
	if !ok {
		return 0, apperrors.NewConfigurationError(string(role), "role is not in the catalog")
	}
	return info.Level, nil
}

// PermissionLevel returns the permission level label of role.
func PermissionLevel(role Role) (string, error) {
	info, ok := catalog[role]
	if !ok {
		return "", apperrors.NewConfigurationError(string(role), "role is not in the catalog")
	}
	return info.PermissionLevel, nil
}

// AvailableTargets returns the roles a holder of role may request
// through the self-service path. The result is a copy of the exact
// adjacency table; it is never derived from levels.
func AvailableTargets(role Role) ([]Role, error) {
	targets, ok := escalationTargets[role]
	if !ok {
		return nil, apperrors.NewConfigurationError(string(role), "role is not in the catalog")
	}
	out := make([]Role, len(targets))
	copy(out, targets)
	return out, nil
}

// CanEscalate reports whether requested is a direct self-service
// target of current.
func CanEscalate(current, requested Role) (bool, error) {
	targets, err := AvailableTargets(current)
	if err != nil {
		return false, err
	}
	for _, t := range targets {
		if t == requested {
			return true, nil
		}
	}
	return false, nil
}

// Resolve maps a (currentRole, requestedRole) pair to the approver
// role and the approval requirements for that transition. The function
// is pure and deterministic for a given catalog; it may be called
// repeatedly with no side effects. Edges without an explicit policy
// fall back to a level-derived default so administrative transitions
// outside the self-service graph still resolve.
func Resolve(currentRole, requestedRole Role) (Role, []Requirement, error) {
	if !IsKnown(currentRole) {
		return "", nil, apperrors.NewConfigurationError(string(currentRole), "role is not in the catalog")
	}
	if !IsKnown(requestedRole) {
		return "", nil, apperrors.NewConfigurationError(string(requestedRole), "role is not in the catalog")
	}

	if p, ok := edgePolicies[edge{currentRole, requestedRole}]; ok {
		reqs := make([]Requirement, len(p.Requirements))
		copy(reqs, p.Requirements)
		return p.ApproverRole, reqs, nil
	}

	return defaultPolicy(currentRole, requestedRole), defaultRequirements(currentRole, requestedRole), nil
}

// defaultPolicy picks the lowest catalog role strictly above the
// requested role, or admin when none exists. Candidates are walked in
// the fixed AllRoles order so level ties always break the same way
// and repeated calls return the same approver.
func defaultPolicy(_, requested Role) Role {
	requestedLevel := catalog[requested].Level

	for _, role := range AllRoles() {
		if catalog[role].Level > requestedLevel {
			return role
		}
	}
	return RoleAdmin
}

func defaultRequirements(current, requested Role) []Requirement {
	gap := catalog[requested].Level - catalog[current].Level
	reqs := []Requirement{RequirementInterviewProcess}
	if gap > 1 {
		reqs = append(reqs, RequirementMultiLevelApproval)
	}
	return reqs
}

// HasAuthorityOver reports whether reviewer can act for the required
// approver role: either the same role, or any role of strictly higher
// level.
func HasAuthorityOver(reviewer, required Role) (bool, error) {
	if reviewer == required {
		return true, nil
	}
	reviewerLevel, err := Level(reviewer)
	if err != nil {
		return false, err
	}
	requiredLevel, err := Level(required)
	if err != nil {
		return false, err
	}
	return reviewerLevel > requiredLevel, nil
}

// HighestRole returns the role with the highest level among roles.
// A user's current role for escalation purposes is their highest
// active assignment.
func HighestRole(roles []Role) (Role, error) {
	if len(roles) == 0 {
		return "", apperrors.NewValidationError("roles", "user holds no active role")
	}
	best := roles[0]
	bestLevel, err := Level(best)
	if err != nil {
		return "", err
	}
	for _, r := range roles[1:] {
		level, err := Level(r)
		if err != nil {
			return "", err
		}
		if level > bestLevel {
			best = r
			bestLevel = level
		}
	}
	return best, nil
}
