// Package predicate implements declarative matching of chain events.
// A predicate names an event type plus optional filters; absent filters
// are wildcards and present filters are ANDed.
package predicate

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/devblac/chain-sentry/internal/event"
)

// Network identifies the chain environment a predicate applies to.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Valid reports whether n is a known network.
func (n Network) Valid() bool {
	return n == NetworkMainnet || n == NetworkTestnet
}

// Filters are the optional matching conditions of a predicate. Zero-value
// fields are wildcards.
type Filters struct {
	FunctionName string
	Sender       string
	Recipient    string
	MinAmount    *big.Int
}

// Config is an immutable predicate definition. Rebuild via Builder to
// change one.
type Config struct {
	ID              string
	Name            string
	Network         Network
	ContractAddress string
	EventType       event.Type
	Filters         Filters
	Actions         []string
	Enabled         bool
	CreatedAt       time.Time
}

// Result records a single evaluation of an event against a predicate.
type Result struct {
	PredicateID string
	Matched     bool
	Event       event.Event
	MatchedAt   time.Time
	Actions     []string
}

// New returns a predicate config with defaults filled in: a generated id,
// testnet network, transfer event type, enabled.
func New() Config {
	return Config{
		ID:        uuid.NewString(),
		Network:   NetworkTestnet,
		EventType: event.TypeTransfer,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
}

// Evaluate matches one event against one predicate. It never panics and
// never returns an error; a malformed pairing simply does not match.
func Evaluate(ev event.Event, cfg Config) Result {
	return Result{
		PredicateID: cfg.ID,
		Matched:     matches(ev, cfg),
		Event:       ev,
		MatchedAt:   time.Now().UTC(),
		Actions:     cfg.Actions,
	}
}

// EvaluateEvents evaluates every event against every enabled predicate and
// returns only the matched results. Disabled predicates contribute nothing.
func EvaluateEvents(events []event.Event, cfgs []Config) []Result {
	var results []Result
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		for _, ev := range events {
			if res := Evaluate(ev, cfg); res.Matched {
				results = append(results, res)
			}
		}
	}
	return results
}

func matches(ev event.Event, cfg Config) bool {
	if ev == nil || ev.Type() != cfg.EventType {
		return false
	}
	f := cfg.Filters

	if f.FunctionName != "" {
		call, ok := ev.(*event.ContractCall)
		if !ok || call.Function != f.FunctionName {
			return false
		}
	}
	if f.Sender != "" {
		tr, ok := ev.(*event.Transfer)
		if !ok || !sameAddress(tr.Sender, f.Sender) {
			return false
		}
	}
	if f.Recipient != "" {
		switch e := ev.(type) {
		case *event.Transfer:
			if !sameAddress(e.Recipient, f.Recipient) {
				return false
			}
		case *event.Mint:
			if !sameAddress(e.Recipient, f.Recipient) {
				return false
			}
		default:
			return false
		}
	}
	if f.MinAmount != nil {
		tr, ok := ev.(*event.Transfer)
		if !ok || tr.Amount == nil || tr.Amount.Cmp(f.MinAmount) < 0 {
			return false
		}
	}
	return true
}

// sameAddress compares hex addresses checksum-insensitively; anything that
// is not a hex address falls back to exact comparison.
func sameAddress(a, b string) bool {
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return a == b
}

// ValidationResult is the outcome of structural predicate validation.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate performs structural checks and returns the complete list of
// problems rather than stopping at the first.
func Validate(cfg Config) ValidationResult {
	var errs []string
	if cfg.ID == "" {
		errs = append(errs, "id is required")
	}
	if cfg.Name == "" {
		errs = append(errs, "name is required")
	}
	if !cfg.Network.Valid() {
		errs = append(errs, fmt.Sprintf("unknown network %q", cfg.Network))
	}
	if !cfg.EventType.Valid() {
		errs = append(errs, fmt.Sprintf("unknown event type %q", cfg.EventType))
	}
	if cfg.Filters.MinAmount != nil && cfg.Filters.MinAmount.Sign() < 0 {
		errs = append(errs, "min amount must not be negative")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
