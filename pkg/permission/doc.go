// Package permission defines the permission data model shared by the
// handlers, the resolver, and the query projections.
//
// A Permission tags one transaction type (type + type group) as Allow or
// Deny. Permissions are bundled into named, prioritized Groups, or attached
// directly to an account as UserPermissions together with the names of the
// groups the account belongs to.
//
// Both bundles store allow and deny entries in one combined, kind-tagged
// list. A list never names the same transaction type twice; FindDuplicate
// enforces this at admission.
//
// Key concepts:
//   - Kind: Allow or Deny
//   - Group: Name (1-40 chars), Priority (0-1000), Active, Default
//   - UserPermissions: account overrides plus group membership
//
// The two permission transactions live in type group 9002:
// SetGroupPermissions (type 0) and SetUserPermissions (type 1).
package permission
