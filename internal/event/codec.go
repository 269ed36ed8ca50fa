package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// envelope is the tagged wire form shared by every variant. The "type"
// field discriminates; variant-specific fields are omitted when empty.
type envelope struct {
	Type        Type      `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	BlockHeight uint64    `json:"blockHeight"`
	BlockHash   string    `json:"blockHash,omitempty"`

	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
	TxHash    string `json:"txHash,omitempty"`

	Contract string         `json:"contract,omitempty"`
	Function string         `json:"function,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Success  *bool          `json:"success,omitempty"`

	TokenID         string            `json:"tokenId,omitempty"`
	ContractAddress string            `json:"contractAddress,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`

	EntityID       string         `json:"entityId,omitempty"`
	EntityType     string         `json:"entityType,omitempty"`
	Changes        map[string]any `json:"changes,omitempty"`
	PreviousValues map[string]any `json:"previousValues,omitempty"`

	ReorgDepth           uint64   `json:"reorgDepth,omitempty"`
	CommonAncestorHeight uint64   `json:"commonAncestorHeight,omitempty"`
	RemovedBlockHashes   []string `json:"removedBlockHashes,omitempty"`
	AddedBlockHashes     []string `json:"addedBlockHashes,omitempty"`
	AffectedTransactions []string `json:"affectedTransactions,omitempty"`
}

// ParseAmount parses a wire amount in hex ("0x...") or decimal form.
// Negative amounts are rejected; chain amounts are unsigned.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty amount")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil, fmt.Errorf("parse hex amount %q: %w", s, err)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// Decode parses one tagged-variant event.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	meta := Meta{
		Timestamp:   env.Timestamp,
		BlockHeight: env.BlockHeight,
		BlockHash:   env.BlockHash,
	}

	switch env.Type {
	case TypeTransfer:
		var amount *big.Int
		if env.Amount != "" {
			v, err := ParseAmount(env.Amount)
			if err != nil {
				return nil, err
			}
			amount = v
		}
		return &Transfer{
			Meta:      meta,
			Sender:    env.Sender,
			Recipient: env.Recipient,
			Amount:    amount,
			TxHash:    env.TxHash,
		}, nil
	case TypeContractCall:
		success := false
		if env.Success != nil {
			success = *env.Success
		}
		return &ContractCall{
			Meta:     meta,
			Contract: env.Contract,
			Function: env.Function,
			Args:     env.Args,
			Success:  success,
			TxHash:   env.TxHash,
		}, nil
	case TypeMint:
		return &Mint{
			Meta:            meta,
			TokenID:         env.TokenID,
			Recipient:       env.Recipient,
			ContractAddress: env.ContractAddress,
			Metadata:        env.Metadata,
		}, nil
	case TypeMetadataUpdate:
		return &MetadataUpdate{
			Meta:           meta,
			EntityID:       env.EntityID,
			EntityType:     env.EntityType,
			Changes:        env.Changes,
			PreviousValues: env.PreviousValues,
		}, nil
	case TypeReorg:
		return &Reorg{
			Meta:                 meta,
			Depth:                env.ReorgDepth,
			CommonAncestorHeight: env.CommonAncestorHeight,
			RemovedBlockHashes:   env.RemovedBlockHashes,
			AddedBlockHashes:     env.AddedBlockHashes,
			AffectedTransactions: env.AffectedTransactions,
		}, nil
	case "":
		return nil, errors.New("decode event: missing type")
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", env.Type)
	}
}

// Encode serializes an event into its tagged wire form. Field order is
// fixed by the envelope, so the output is stable for a given event.
func Encode(ev Event) ([]byte, error) {
	meta := ev.Common()
	env := envelope{
		Type:        ev.Type(),
		Timestamp:   meta.Timestamp,
		BlockHeight: meta.BlockHeight,
		BlockHash:   meta.BlockHash,
	}

	switch e := ev.(type) {
	case *Transfer:
		env.Sender = e.Sender
		env.Recipient = e.Recipient
		if e.Amount != nil {
			env.Amount = e.Amount.String()
		}
		env.TxHash = e.TxHash
	case *ContractCall:
		env.Contract = e.Contract
		env.Function = e.Function
		env.Args = e.Args
		success := e.Success
		env.Success = &success
		env.TxHash = e.TxHash
	case *Mint:
		env.TokenID = e.TokenID
		env.Recipient = e.Recipient
		env.ContractAddress = e.ContractAddress
		env.Metadata = e.Metadata
	case *MetadataUpdate:
		env.EntityID = e.EntityID
		env.EntityType = e.EntityType
		env.Changes = e.Changes
		env.PreviousValues = e.PreviousValues
	case *Reorg:
		env.ReorgDepth = e.Depth
		env.CommonAncestorHeight = e.CommonAncestorHeight
		env.RemovedBlockHashes = e.RemovedBlockHashes
		env.AddedBlockHashes = e.AddedBlockHashes
		env.AffectedTransactions = e.AffectedTransactions
	default:
		return nil, fmt.Errorf("encode event: unknown variant %T", ev)
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return out, nil
}
