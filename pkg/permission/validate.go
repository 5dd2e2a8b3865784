package permission

import (
	"unicode/utf8"

	"github.com/backkem/txpermissions/pkg/ledger"
)

// FindDuplicate returns a *DuplicatePermissionsError for the first
// transaction type that appears more than once in l, regardless of kind.
func FindDuplicate(l List) error {
	seen := make(map[ledger.TypeKey]struct{}, len(l))
	for _, p := range l {
		if _, ok := seen[p.TypeKey]; ok {
			return &DuplicatePermissionsError{Type: p.TypeKey}
		}
		seen[p.TypeKey] = struct{}{}
	}
	return nil
}

// ValidateGroupName checks the group name length (in characters).
func ValidateGroupName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < GroupNameMinLength || n > GroupNameMaxLength || !utf8.ValidString(name) {
		return ErrInvalidGroupName
	}
	return nil
}

// ValidatePriority checks the group priority range.
func ValidatePriority(priority uint32) error {
	if priority > GroupPriorityMax {
		return ErrInvalidPriority
	}
	return nil
}

// ValidateList checks kinds and duplicates.
func ValidateList(l List) error {
	for _, p := range l {
		if !p.Kind.IsValid() {
			return ErrInvalidKind
		}
	}
	return FindDuplicate(l)
}

// ValidateGroup checks a group definition against the schema rules.
func ValidateGroup(g *Group) error {
	if err := ValidateGroupName(g.Name); err != nil {
		return err
	}
	if err := ValidatePriority(g.Priority); err != nil {
		return err
	}
	return ValidateList(g.Permissions)
}
