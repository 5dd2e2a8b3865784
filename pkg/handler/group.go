package handler

import (
	"context"
	"fmt"

	"github.com/backkem/txpermissions/pkg/cache"
	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
	"github.com/backkem/txpermissions/pkg/wire"
)

// GroupHandler handles SetGroupPermissions transactions.
type GroupHandler struct {
	base
	groups cache.Groups
}

// NewGroupHandler creates a group handler.
func NewGroupHandler(cfg Config) (*GroupHandler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &GroupHandler{
		base:   newBase(permission.SetGroupPermissionsType, cfg, "permissions-group"),
		groups: cfg.Groups,
	}, nil
}

func (h *GroupHandler) asset(tx *ledger.Transaction) (*wire.SetGroupPermissions, error) {
	a, ok := tx.Asset.(*wire.SetGroupPermissions)
	if !ok || a == nil {
		return nil, fmt.Errorf("%w: %T in %s", ErrWrongAsset, tx.Asset, tx.ID)
	}
	return a, nil
}

// Bootstrap replays every confirmed SetGroupPermissions in chain order.
// Later definitions of a name overwrite earlier ones.
func (h *GroupHandler) Bootstrap(ctx context.Context) error {
	count := 0
	err := h.history.Scan(ctx, h.typ, func(tx *ledger.Transaction) error {
		a, err := h.asset(tx)
		if err != nil {
			return err
		}
		group := a.Group()
		if err := permission.ValidateGroup(group); err != nil {
			return fmt.Errorf("handler: bootstrap %s: %w", tx.ID, err)
		}
		h.groups.Set(group)
		count++
		return nil
	})
	if err != nil {
		return err
	}

	if h.log != nil {
		h.log.Infof("bootstrapped %d group transactions, %d groups", count, h.groups.Len())
	}
	return nil
}

// Verify checks the group name, priority and permission list.
func (h *GroupHandler) Verify(tx *ledger.Transaction) error {
	if err := h.checkAdmission(tx); err != nil {
		return err
	}
	a, err := h.asset(tx)
	if err != nil {
		return err
	}
	return permission.ValidateGroup(a.Group())
}

// CanEnterPool allows one pending definition per group name.
func (h *GroupHandler) CanEnterPool(tx *ledger.Transaction, pool ledger.Pool) error {
	return h.checkPool(tx, pool)
}

// Apply writes the group definition, replacing any previous one.
func (h *GroupHandler) Apply(tx *ledger.Transaction) error {
	if err := h.checkType(tx); err != nil {
		return err
	}
	a, err := h.asset(tx)
	if err != nil {
		return err
	}

	group := a.Group()
	h.groups.Set(group)

	if h.log != nil {
		h.log.Debugf("set group %q (priority %d, active %t, default %t) from %s",
			group.Name, group.Priority, group.Active, group.Default, tx.ID)
	}
	h.publish(EventGroupSet, tx, group.Clone(), nil)
	return nil
}

// Revert restores the definition the transaction replaced, or removes the
// group if the transaction created it.
func (h *GroupHandler) Revert(ctx context.Context, tx *ledger.Transaction) error {
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
		h.groups.Delete(a.Name)
		if h.log != nil {
			h.log.Debugf("reverted %s: removed group %q", tx.ID, a.Name)
		}
		h.publish(EventGroupReverted, tx, nil, nil)
		return nil
	}

	pa, err := h.asset(prev)
	if err != nil {
		return err
	}
	group := pa.Group()
	h.groups.Set(group)

	if h.log != nil {
		h.log.Debugf("reverted %s: restored group %q from %s", tx.ID, a.Name, prev.ID)
	}
	h.publish(EventGroupReverted, tx, group.Clone(), nil)
	return nil
}

var _ Handler = (*GroupHandler)(nil)
