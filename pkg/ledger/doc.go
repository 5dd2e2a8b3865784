// Package ledger defines the host contracts the permissions engine is
// embedded in: transaction identity, chain position, and the read-only
// capabilities the engine needs from the surrounding ledger.
//
// The engine never owns blocks, accounts, or the transaction pool. It is
// handed narrow interfaces instead:
//   - Chain: current height and the genesis generator key
//   - Pool: unconfirmed transactions of one type
//   - History: confirmed transactions, for bootstrap and revert
//   - Catalog: which transaction types the ledger knows about
//
// Transactions reach the engine already decoded; Asset carries the typed
// payload for the permission transaction types.
package ledger
