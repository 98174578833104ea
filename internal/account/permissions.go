// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"context"
	"errors"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// grantStore is the part of Repository the aggregator reads.
type grantStore interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	RolesWithPermissions(ctx context.Context, accountID int64) ([]Role, error)
	DirectPermissions(ctx context.Context, accountID int64) ([]Permission, error)
}

// PermissionAggregator resolves the permissions an account holds through its
// roles and direct grants. It keeps no state between calls.
type PermissionAggregator struct {
	store grantStore
}

// NewPermissionAggregator creates a PermissionAggregator.
func NewPermissionAggregator(store grantStore) *PermissionAggregator {
	return &PermissionAggregator{store: store}
}

// EffectivePermissions returns the union of the account's role and direct
// permissions. Roles come first in attachment order, direct grants last; the
// first occurrence of each (action, object type, object id) wins.
func (a *PermissionAggregator) EffectivePermissions(ctx context.Context, accountID int64) (PermissionSet, error) {
	if _, err := a.store.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unknownAccount()
		}
		return nil, storageFailed("get account", err)
	}

	roles, err := a.store.RolesWithPermissions(ctx, accountID)
	if err != nil {
		return nil, storageFailed("load role permissions", err)
	}
	direct, err := a.store.DirectPermissions(ctx, accountID)
	if err != nil {
		return nil, storageFailed("load direct permissions", err)
	}

	groups := make([][]Permission, 0, len(roles)+1)
	for _, r := range roles {
		groups = append(groups, r.Permissions)
	}
	groups = append(groups, direct)

	return MergePermissions(groups...), nil
}

type permissionKey struct {
	action    string
	object    string
	objectID  int64
	hasObject bool
}

func keyOf(p Permission) permissionKey {
	k := permissionKey{action: p.ActionType, object: p.ObjectType}
	if p.ObjectID != nil {
		k.objectID = *p.ObjectID
		k.hasObject = true
	}
	return k
}

// MergePermissions concatenates groups in order, dropping later duplicates.
func MergePermissions(groups ...[]Permission) PermissionSet {
	seen := make(map[permissionKey]struct{})
	out := PermissionSet{}
	for _, group := range groups {
		for _, p := range group {
			k := keyOf(p)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// PermissionSet is an ordered, deduplicated list of permissions.
type PermissionSet []Permission

// Compile prepares the set for access checks. Action and object types may be
// glob patterns ("*", "post*"); each is compiled once here.
func (s PermissionSet) Compile() (*Grants, error) {
	rules := make([]compiledGrant, 0, len(s))
	for _, p := range s {
		action, err := compilePattern(p, p.ActionType)
		if err != nil {
			return nil, err
		}
		object, err := compilePattern(p, p.ObjectType)
		if err != nil {
			return nil, err
		}
		rules = append(rules, compiledGrant{action: action, object: object, objectID: p.ObjectID})
	}
	return &Grants{rules: rules}, nil
}

// Grants is a compiled PermissionSet.
type Grants struct {
	rules []compiledGrant
}

type compiledGrant struct {
	action   glob.Glob
	object   glob.Glob
	objectID *int64
}

// Allows reports whether any grant permits action on the object.
// A grant without an object id applies to every object of its type.
func (g *Grants) Allows(action, objectType string, objectID *int64) bool {
	for _, r := range g.rules {
		if !r.action.Match(action) || !r.object.Match(objectType) {
			continue
		}
		if r.objectID == nil {
			return true
		}
		if objectID != nil && *r.objectID == *objectID {
			return true
		}
	}
	return false
}

// compilePattern uses ':' as separator so "*" stays within one segment.
func compilePattern(p Permission, pattern string) (glob.Glob, error) {
	g, err := glob.Compile(pattern, ':')
	if err != nil {
		return nil, oops.Code(CodeInvalidPermissionPattern).
			With("permission", p.Name).
			With("pattern", pattern).
			Wrap(err)
	}
	return g, nil
}
