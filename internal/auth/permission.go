package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Permission keys follow the resource.action convention. The catalog below is
// the set of keys route registration and services refer to; the database is
// still the source of truth for which keys a role actually grants.
const (
	PermDocumentsCreate    = "documents.create"
	PermDocumentsView      = "documents.view"
	PermDocumentsViewAll   = "documents.view_all"
	PermDocumentsUpdate    = "documents.update"
	PermDocumentsUpdateAll = "documents.update_all"
	PermDocumentsDelete    = "documents.delete"
	PermDocumentsDeleteAll = "documents.delete_all"

	PermUsersCreate = "users.create"
	PermUsersView   = "users.view"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"

	PermRolesCreate = "roles.create"
	PermRolesView   = "roles.view"
	PermRolesUpdate = "roles.update"
	PermRolesDelete = "roles.delete"

	PermAuditView = "audit.view"
)

// Permission is one parsed grant. Keys are parsed exactly once, when a
// permission set is built, so checks never do string surgery on stored grants.
type Permission struct {
	Resource string
	Action   string
	// Wildcard marks a "<resource>.*" grant matching any action on Resource.
	Wildcard bool
	// Global marks the "*" grant matching everything.
	Global bool
}

// ParsePermission parses a resource.action key. Only one wildcard level is
// supported: "<resource>.*" or the global "*".
func ParsePermission(key string) (Permission, error) {
	if key == "*" {
		return Permission{Global: true}, nil
	}

	resource, action, found := strings.Cut(key, ".")
	if !found || resource == "" || action == "" {
		return Permission{}, fmt.Errorf("malformed permission key %q", key)
	}

	if action == "*" {
		return Permission{Resource: resource, Wildcard: true}, nil
	}

	return Permission{Resource: resource, Action: action}, nil
}

func (p Permission) Key() string {
	if p.Global {
		return "*"
	}
	if p.Wildcard {
		return p.Resource + ".*"
	}
	return p.Resource + "." + p.Action
}

// PermissionSet is a flattened, point-in-time permission snapshot. It is
// built once per token issuance or token decode and is immutable afterwards.
type PermissionSet struct {
	global    bool
	exact     map[string]struct{}
	wildcards map[string]struct{}
}

// NewPermissionSet parses keys into a set. Malformed keys are dropped; the
// resolver only emits well-formed keys, so a malformed entry grants nothing.
func NewPermissionSet(keys []string) PermissionSet {
	set := PermissionSet{
		exact:     make(map[string]struct{}, len(keys)),
		wildcards: make(map[string]struct{}),
	}

	for _, key := range keys {
		perm, err := ParsePermission(key)
		if err != nil {
			continue
		}
		switch {
		case perm.Global:
			set.global = true
		case perm.Wildcard:
			set.wildcards[perm.Resource] = struct{}{}
		default:
			set.exact[perm.Key()] = struct{}{}
		}
	}

	return set
}

// Allows reports whether the set satisfies the required key: an exact match,
// a "<resource>.*" grant for the key's resource, or the global "*".
func (s PermissionSet) Allows(requiredKey string) bool {
	if s.global {
		return true
	}
	if _, ok := s.exact[requiredKey]; ok {
		return true
	}
	resource, _, found := strings.Cut(requiredKey, ".")
	if !found {
		return false
	}
	_, ok := s.wildcards[resource]
	return ok
}

// Keys returns the grants as sorted keys, suitable for embedding in claims.
func (s PermissionSet) Keys() []string {
	keys := make([]string, 0, len(s.exact)+len(s.wildcards)+1)
	if s.global {
		keys = append(keys, "*")
	}
	for k := range s.exact {
		keys = append(keys, k)
	}
	for r := range s.wildcards {
		keys = append(keys, r+".*")
	}
	sort.Strings(keys)
	return keys
}

func (s PermissionSet) IsEmpty() bool {
	return !s.global && len(s.exact) == 0 && len(s.wildcards) == 0
}
