// Package event defines the typed chain-event model consumed by the
// predicate, dispatch, and reorg layers. Raw indexer payloads are mapped
// into these types by an external boundary; nothing in this package
// performs I/O.
package event

import (
	"math/big"
	"time"
)

// Type discriminates the closed set of chain-event variants.
type Type string

const (
	TypeTransfer       Type = "transfer"
	TypeContractCall   Type = "contract_call"
	TypeMint           Type = "mint"
	TypeMetadataUpdate Type = "metadata_update"
	TypeReorg          Type = "reorg"
)

// Types returns all known event types in a stable order.
func Types() []Type {
	return []Type{TypeTransfer, TypeContractCall, TypeMint, TypeMetadataUpdate, TypeReorg}
}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case TypeTransfer, TypeContractCall, TypeMint, TypeMetadataUpdate, TypeReorg:
		return true
	}
	return false
}

// Meta carries the fields common to every chain event.
type Meta struct {
	Timestamp   time.Time
	BlockHeight uint64
	BlockHash   string
}

// Common returns the shared event metadata.
func (m Meta) Common() Meta { return m }

func (Meta) isEvent() {}

// Event is the closed chain-event sum type. Only the variants in this
// package implement it.
type Event interface {
	Type() Type
	Common() Meta
	// TxID returns the transaction hash tied to the event, or "" for
	// variants that are not transaction-scoped.
	TxID() string
	isEvent()
}

// Transfer is a value movement between two accounts. Amount uses big.Int
// because on-chain amounts routinely exceed the float64-safe integer range.
type Transfer struct {
	Meta
	Sender    string
	Recipient string
	Amount    *big.Int
	TxHash    string
}

func (*Transfer) Type() Type     { return TypeTransfer }
func (t *Transfer) TxID() string { return t.TxHash }

// ContractCall is an invocation of a contract function.
type ContractCall struct {
	Meta
	Contract string
	Function string
	Args     map[string]any
	Success  bool
	TxHash   string
}

func (*ContractCall) Type() Type     { return TypeContractCall }
func (c *ContractCall) TxID() string { return c.TxHash }

// Mint is a token creation event.
type Mint struct {
	Meta
	TokenID         string
	Recipient       string
	ContractAddress string
	Metadata        map[string]string
}

func (*Mint) Type() Type   { return TypeMint }
func (*Mint) TxID() string { return "" }

// MetadataUpdate records a change to an indexed entity's metadata.
type MetadataUpdate struct {
	Meta
	EntityID       string
	EntityType     string
	Changes        map[string]any
	PreviousValues map[string]any
}

func (*MetadataUpdate) Type() Type   { return TypeMetadataUpdate }
func (*MetadataUpdate) TxID() string { return "" }

// Reorg reports a chain reorganization: the block range that was replaced
// and the transactions unique to the discarded branch.
type Reorg struct {
	Meta
	Depth                uint64
	CommonAncestorHeight uint64
	RemovedBlockHashes   []string
	AddedBlockHashes     []string
	AffectedTransactions []string
}

func (*Reorg) Type() Type   { return TypeReorg }
func (*Reorg) TxID() string { return "" }
