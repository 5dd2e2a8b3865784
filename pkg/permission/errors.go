package permission

import (
	"errors"
	"fmt"

	"github.com/backkem/txpermissions/pkg/ledger"
)

// Schema errors.
var (
	ErrInvalidGroupName = errors.New("permission: invalid group name")
	ErrInvalidPriority  = errors.New("permission: invalid group priority")
	ErrInvalidKind      = errors.New("permission: invalid permission kind")
)

// DuplicatePermissionsError is returned when a permission list names the
// same transaction type more than once.
type DuplicatePermissionsError struct {
	Type ledger.TypeKey
}

func (e *DuplicatePermissionsError) Error() string {
	return fmt.Sprintf("permission: duplicate permission for transaction type %s", e.Type)
}

// GroupDoesntExistError is returned when a user names an unknown group.
type GroupDoesntExistError struct {
	Name string
}

func (e *GroupDoesntExistError) Error() string {
	return fmt.Sprintf("permission: group %q does not exist", e.Name)
}

// UserInToManyGroupsError is returned when a user names more groups than
// the configured maximum.
type UserInToManyGroupsError struct {
	Count int
	Max   int
}

func (e *UserInToManyGroupsError) Error() string {
	return fmt.Sprintf("permission: user in %d groups, maximum is %d", e.Count, e.Max)
}

// TransactionTypeDoesntExistError is returned when a permission references
// a transaction type the ledger does not know.
type TransactionTypeDoesntExistError struct {
	Type ledger.TypeKey
}

func (e *TransactionTypeDoesntExistError) Error() string {
	return fmt.Sprintf("permission: transaction type %s does not exist", e.Type)
}
