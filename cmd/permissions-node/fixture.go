package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pion/logging"
	"github.com/tidwall/jsonc"

	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/permission"
	"github.com/backkem/txpermissions/pkg/permissions"
	"github.com/backkem/txpermissions/pkg/wire"
)

// Fixture is a JSONC file of transactions:
//
//	{
//	  "genesisPublicKey": "02...",
//	  "transactions": [
//	    {"id": "g1", "type": "9002/0", "sender": "03...", "height": 2,
//	     "asset": {"name": "ops", "priority": 1, "active": true, "allow": ["1/0"]}},
//	  ],
//	}
type Fixture struct {
	GenesisPublicKey string               `json:"genesisPublicKey"`
	Transactions     []FixtureTransaction `json:"transactions"`
}

// FixtureTransaction is one transaction. Height 0 means the block after
// the previous transaction. Version 0 means the permission version.
type FixtureTransaction struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Version  uint8           `json:"version"`
	Sender   string          `json:"sender"`
	Height   uint64          `json:"height"`
	Sequence uint32          `json:"sequence"`
	Asset    json.RawMessage `json:"asset"`
}

type fixtureGroupAsset struct {
	Name     string   `json:"name"`
	Priority uint32   `json:"priority"`
	Active   bool     `json:"active"`
	Default  bool     `json:"default"`
	Allow    []string `json:"allow"`
	Deny     []string `json:"deny"`
}

type fixtureUserAsset struct {
	PublicKey  string   `json:"publicKey"`
	GroupNames []string `json:"groupNames"`
	Allow      []string `json:"allow"`
	Deny       []string `json:"deny"`
}

// ParseFixture strips JSONC comments and trailing commas and decodes the
// fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &f, nil
}

// ReadFixture reads and parses a fixture file.
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Transaction converts the fixture entry. Position is left to the caller.
func (ft *FixtureTransaction) Transaction() (*ledger.Transaction, error) {
	if ft.ID == "" {
		return nil, errors.New("transaction without id")
	}
	typ, err := ledger.ParseTypeKey(ft.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ft.ID, err)
	}
	sender, err := ledger.ParsePublicKey(ft.Sender)
	if err != nil {
		return nil, fmt.Errorf("%s: sender: %w", ft.ID, err)
	}

	tx := &ledger.Transaction{
		ID:              ft.ID,
		Type:            typ,
		Version:         ft.Version,
		SenderPublicKey: sender,
	}
	if tx.Version == 0 {
		tx.Version = permission.Version
	}

	switch typ {
	case permission.SetGroupPermissionsType:
		tx.Asset, err = ft.groupAsset()
	case permission.SetUserPermissionsType:
		tx.Asset, err = ft.userAsset()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: asset: %w", ft.ID, err)
	}
	return tx, nil
}

func (ft *FixtureTransaction) groupAsset() (*wire.SetGroupPermissions, error) {
	var a fixtureGroupAsset
	if err := json.Unmarshal(ft.Asset, &a); err != nil {
		return nil, err
	}
	allow, err := parseTypeKeys(a.Allow)
	if err != nil {
		return nil, err
	}
	deny, err := parseTypeKeys(a.Deny)
	if err != nil {
		return nil, err
	}
	return &wire.SetGroupPermissions{
		Name:     a.Name,
		Priority: a.Priority,
		Active:   a.Active,
		Default:  a.Default,
		Allow:    allow,
		Deny:     deny,
	}, nil
}

func (ft *FixtureTransaction) userAsset() (*wire.SetUserPermissions, error) {
	var a fixtureUserAsset
	if err := json.Unmarshal(ft.Asset, &a); err != nil {
		return nil, err
	}
	pk, err := ledger.ParsePublicKey(a.PublicKey)
	if err != nil {
		return nil, err
	}
	allow, err := parseTypeKeys(a.Allow)
	if err != nil {
		return nil, err
	}
	deny, err := parseTypeKeys(a.Deny)
	if err != nil {
		return nil, err
	}
	return &wire.SetUserPermissions{
		PublicKey:  pk,
		GroupNames: a.GroupNames,
		Allow:      allow,
		Deny:       deny,
	}, nil
}

func parseTypeKeys(list []string) ([]ledger.TypeKey, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]ledger.TypeKey, len(list))
	for i, s := range list {
		k, err := ledger.ParseTypeKey(s)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}

// importResult counts what importFixture did.
type importResult struct {
	Applied int
	Skipped int
}

// importFixture admits and applies the fixture transactions in order on
// top of the chain tip. Transactions at or below the tip are skipped so a
// fixture can be imported again into the same database. Each transaction
// goes through block admission, so a fixture cannot bypass the rules.
func importFixture(ctx context.Context, engine *permissions.Engine, chain *ledger.StaticChain, f *Fixture, log logging.LeveledLogger) (importResult, error) {
	var res importResult
	next := chain.CurrentHeight + 1
	for i := range f.Transactions {
		ft := &f.Transactions[i]
		tx, err := ft.Transaction()
		if err != nil {
			return res, err
		}

		height := ft.Height
		if height == 0 {
			height = next
		}
		if height <= chain.CurrentHeight {
			log.Debugf("skipping %s: height %d is not above tip %d", tx.ID, height, chain.CurrentHeight)
			res.Skipped++
			continue
		}
		tx.Position = ledger.Position{Height: height, Sequence: ft.Sequence}

		if err := engine.AdmitToBlock(tx); err != nil {
			return res, fmt.Errorf("admit %s: %w", tx.ID, err)
		}
		if err := engine.Apply(ctx, tx); err != nil {
			return res, fmt.Errorf("apply %s: %w", tx.ID, err)
		}
		log.Debugf("applied %s (%s) at %d:%d", tx.ID, tx.Type, height, ft.Sequence)
		res.Applied++
		next = height + 1

		// The tip advances once the next transaction is in a later block.
		if j := i + 1; j == len(f.Transactions) || f.Transactions[j].Height != height {
			chain.CurrentHeight = height
		}
	}
	return res, nil
}
