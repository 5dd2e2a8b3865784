package handler

import (
	"context"
	"fmt"

	"github.com/backkem/txpermissions/pkg/account"
	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
	"github.com/backkem/txpermissions/pkg/wire"
)

// UserHandler handles SetUserPermissions transactions.
//
// The target account is the one named in the asset, which may differ from
// the sender.
type UserHandler struct {
	base
	groups   cache.Groups
	accounts account.Index
	catalog  ledger.Catalog
}

// NewUserHandler creates a user handler.
func NewUserHandler(cfg Config) (*UserHandler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Accounts == nil {
		return nil, ErrAccountsRequired
	}
	cfg.applyDefaults()

	return &UserHandler{
		base:     newBase(permission.SetUserPermissionsType, cfg, "permissions-user"),
		groups:   cfg.Groups,
		accounts: cfg.Accounts,
		catalog:  cfg.Catalog,
	}, nil
}

func (h *UserHandler) asset(tx *ledger.Transaction) (*wire.SetUserPermissions, error) {
	a, ok := tx.Asset.(*wire.SetUserPermissions)
	if !ok || a == nil {
		return nil, fmt.Errorf("%w: %T in %s", ErrWrongAsset, tx.Asset, tx.ID)
	}
	return a, nil
}

// Bootstrap replays every confirmed SetUserPermissions in chain order.
//
// Only structural checks run here. Group existence and limits depend on
// configuration and ordering that may have changed since the transaction
// was admitted.
func (h *UserHandler) Bootstrap(ctx context.Context) error {
	count := 0
	err := h.history.Scan(ctx, h.typ, func(tx *ledger.Transaction) error {
		a, err := h.asset(tx)
		if err != nil {
			return err
		}
		if err := permission.FindDuplicate(a.Permissions()); err != nil {
			return fmt.Errorf("handler: bootstrap %s: %w", tx.ID, err)
		}
		h.write(a.PublicKey, a.UserPermissions())
		count++
		return nil
	})
	if err != nil {
		return err
	}

	if h.log != nil {
		h.log.Infof("bootstrapped %d user transactions, %d accounts with permissions",
			count, len(h.accounts.Indexed(permission.AttributeKey)))
	}
	return nil
}

// Verify checks group membership limits and references, duplicates, and
// that every referenced transaction type is registered.
func (h *UserHandler) Verify(tx *ledger.Transaction) error {
	if err := h.checkAdmission(tx); err != nil {
		return err
	}
	a, err := h.asset(tx)
	if err != nil {
		return err
	}
	if !a.PublicKey.IsCompressed() {
		return fmt.Errorf("handler: target %s: %w", a.PublicKey, ledger.ErrInvalidPublicKey)
	}

	if len(a.GroupNames) > 0 {
		limit := h.settings.MaxDefinedGroupsPerUser()
		if len(a.GroupNames) > limit {
			return &permission.UserInToManyGroupsError{Count: len(a.GroupNames), Max: limit}
		}
		for _, name := range a.GroupNames {
			if _, ok := h.groups.Get(name); !ok {
				return &permission.GroupDoesntExistError{Name: name}
			}
		}
	}

	perms := a.Permissions()
	if err := permission.FindDuplicate(perms); err != nil {
		return err
	}
	for _, p := range perms {
		if !h.catalog.Exists(p.TypeKey) {
			return &permission.TransactionTypeDoesntExistError{Type: p.TypeKey}
		}
	}
	return nil
}

// CanEnterPool allows one pending override per target account.
func (h *UserHandler) CanEnterPool(tx *ledger.Transaction, pool ledger.Pool) error {
	return h.checkPool(tx, pool)
}

// Apply writes the permissions attribute onto the target account.
func (h *UserHandler) Apply(tx *ledger.Transaction) error {
	if err := h.checkType(tx); err != nil {
		return err
	}
	a, err := h.asset(tx)
	if err != nil {
		return err
	}

	up := a.UserPermissions()
	h.write(a.PublicKey, up)

	if h.log != nil {
		h.log.Debugf("set permissions of %s (%d groups, %d overrides) from %s",
			a.PublicKey, len(up.Groups), len(up.Permissions), tx.ID)
	}
	h.publish(EventUserSet, tx, nil, up.Clone())
	return nil
}

// Revert restores the attribute the transaction replaced, or removes it
// if the transaction created it.
func (h *UserHandler) Revert(ctx context.Context, tx *ledger.Transaction) error {
	if err := h.checkType(tx); err != nil {
		return err
	}
	a, err := h.asset(tx)
	if err != nil {
		return err
	}
	prev, err := h.previous(ctx, tx)
	if err != nil {
		return err
	}

	if prev == nil {
		if acc, ok := h.accounts.Get(a.PublicKey); ok {
			acc.ForgetAttribute(permission.AttributeKey)
			h.accounts.Reindex(acc)
		}
		if h.log != nil {
			h.log.Debugf("reverted %s: removed permissions of %s", tx.ID, a.PublicKey)
		}
		h.publish(EventUserReverted, tx, nil, nil)
		return nil
	}

	pa, err := h.asset(prev)
	if err != nil {
		return err
	}
	up := pa.UserPermissions()
	h.write(pa.PublicKey, up)

	if h.log != nil {
		h.log.Debugf("reverted %s: restored permissions of %s from %s", tx.ID, a.PublicKey, prev.ID)
	}
	h.publish(EventUserReverted, tx, nil, up.Clone())
	return nil
}

func (h *UserHandler) write(pk ledger.PublicKey, up *permission.UserPermissions) {
	acc := h.accounts.FindByPublicKey(pk)
	acc.SetAttribute(permission.AttributeKey, up)
	h.accounts.Reindex(acc)
}

var _ Handler = (*UserHandler)(nil)
