package dispatcher

import "github.com/routeforge/dispatch-core/codec"

// Role identifies one of the dispatcher's fixed permission classes.
type Role string

// The dispatcher recognizes exactly these five roles; no others are
// enumerable at construction or via grant_role.
const (
	RoleAdmin     Role = "ADMIN"
	RoleCommit    Role = "COMMIT"
	RoleApply     Role = "APPLY"
	RoleEmergency Role = "EMERGENCY"
	RoleExecutor  Role = "EXECUTOR"
)

func validRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleCommit, RoleApply, RoleEmergency, RoleExecutor:
		return true
	default:
		return false
	}
}

// roleSet is a small membership set over addresses, used once per role.
type roleSet map[codec.Address]struct{}

func (s roleSet) has(a codec.Address) bool {
	_, ok := s[a]
	return ok
}

func (s roleSet) addrs() []codec.Address {
	out := make([]codec.Address, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	return out
}

// RoleConfig seeds the initial membership of each role at construction,
// matching the roles-initial configuration: ADMIN gets the deployer,
// EMERGENCY gets the guardian, all others start empty.
type RoleConfig struct {
	Admin     []codec.Address
	Commit    []codec.Address
	Apply     []codec.Address
	Emergency []codec.Address
	Executor  []codec.Address
}

func newRoleTable(cfg RoleConfig) map[Role]roleSet {
	t := map[Role]roleSet{
		RoleAdmin:     make(roleSet),
		RoleCommit:    make(roleSet),
		RoleApply:     make(roleSet),
		RoleEmergency: make(roleSet),
		RoleExecutor:  make(roleSet),
	}
	for _, a := range cfg.Admin {
		t[RoleAdmin][a] = struct{}{}
	}
	for _, a := range cfg.Commit {
		t[RoleCommit][a] = struct{}{}
	}
	for _, a := range cfg.Apply {
		t[RoleApply][a] = struct{}{}
	}
	for _, a := range cfg.Emergency {
		t[RoleEmergency][a] = struct{}{}
	}
	for _, a := range cfg.Executor {
		t[RoleExecutor][a] = struct{}{}
	}
	return t
}
