package predicate

import (
	"math/big"
	"strings"
	"testing"

	"github.com/devblac/chain-sentry/internal/event"
)

func transferEvent(sender, recipient string, amount int64) *event.Transfer {
	return &event.Transfer{
		Meta:      event.Meta{BlockHeight: 100, BlockHash: "0xb"},
		Sender:    sender,
		Recipient: recipient,
		Amount:    big.NewInt(amount),
		TxHash:    "0xt",
	}
}

func TestEvaluateMinAmount(t *testing.T) {
	cfg, err := NewBuilder().
		WithName("large transfers").
		WithMinAmount(big.NewInt(1000000)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if res := Evaluate(transferEvent("0x1", "0x2", 500000), cfg); res.Matched {
		t.Fatal("amount below threshold should not match")
	}
	res := Evaluate(transferEvent("0x1", "0x2", 1500000), cfg)
	if !res.Matched {
		t.Fatal("amount above threshold should match")
	}
	if res.PredicateID != cfg.ID {
		t.Fatalf("result predicate id = %s, want %s", res.PredicateID, cfg.ID)
	}
}

func TestEvaluateMinAmountExceedsFloat64SafeRange(t *testing.T) {
	// 2^63 + 1: representable in big.Int, not exactly in float64.
	threshold, _ := new(big.Int).SetString("9223372036854775809", 10)
	below := new(big.Int).Sub(threshold, big.NewInt(1))
	cfg, err := NewBuilder().WithName("wide").WithMinAmount(threshold).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ev := transferEvent("0x1", "0x2", 0)
	ev.Amount = below
	if Evaluate(ev, cfg).Matched {
		t.Fatal("amount one below threshold must not match")
	}
	ev.Amount = threshold
	if !Evaluate(ev, cfg).Matched {
		t.Fatal("amount equal to threshold must match")
	}
}

func TestEvaluateTypeMismatch(t *testing.T) {
	cfg, err := NewBuilder().
		WithName("calls").
		WithEventType(event.TypeContractCall).
		WithFunctionName("mintBadge").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if Evaluate(transferEvent("0x1", "0x2", 1), cfg).Matched {
		t.Fatal("transfer must not match a contract-call predicate")
	}

	call := &event.ContractCall{Function: "mintBadge", TxHash: "0xc"}
	if !Evaluate(call, cfg).Matched {
		t.Fatal("matching function name should match")
	}
	call.Function = "revokeBadge"
	if Evaluate(call, cfg).Matched {
		t.Fatal("different function name must not match")
	}
}

func TestEvaluateSenderRecipientFilters(t *testing.T) {
	cfg, err := NewBuilder().
		WithName("watched pair").
		WithSender("0x00000000000000000000000000000000000000AA").
		WithRecipient("0x00000000000000000000000000000000000000BB").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Same addresses, different hex casing.
	ev := transferEvent(
		"0x00000000000000000000000000000000000000aa",
		"0x00000000000000000000000000000000000000bb",
		1,
	)
	if !Evaluate(ev, cfg).Matched {
		t.Fatal("hex address comparison should ignore casing")
	}

	ev.Sender = "0x00000000000000000000000000000000000000CC"
	if Evaluate(ev, cfg).Matched {
		t.Fatal("different sender must not match")
	}
}

func TestEvaluateAbsentFiltersAreWildcards(t *testing.T) {
	cfg, err := NewBuilder().WithName("any transfer").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !Evaluate(transferEvent("a", "b", 0), cfg).Matched {
		t.Fatal("predicate without filters should match any transfer")
	}
}

func TestEvaluateEventsEnabledOnly(t *testing.T) {
	enabled, err := NewBuilder().WithID("on").WithName("on").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	disabled, err := NewBuilder().WithID("off").WithName("off").Enabled(false).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	events := []event.Event{
		transferEvent("a", "b", 1),
		transferEvent("c", "d", 2),
		&event.Mint{TokenID: "1"},
	}
	results := EvaluateEvents(events, []Config{enabled, disabled})
	if len(results) != 2 {
		t.Fatalf("expected 2 matched results, got %d", len(results))
	}
	for _, res := range results {
		if res.PredicateID != "on" {
			t.Fatalf("disabled predicate produced result %+v", res)
		}
		if !res.Matched {
			t.Fatal("EvaluateEvents must return matched results only")
		}
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	res := Validate(Config{Network: "devnet", EventType: "swap"})
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if len(res.Errors) != 4 {
		t.Fatalf("expected 4 errors (id, name, network, event type), got %d: %v", len(res.Errors), res.Errors)
	}
}

func TestBuilderBuildFailsFast(t *testing.T) {
	_, err := NewBuilder().WithName("bad").WithNetwork("devnet").Build()
	if err == nil {
		t.Fatal("expected build error")
	}
	if !strings.Contains(err.Error(), "network") {
		t.Fatalf("error should name the network problem: %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	cfg := New()
	if cfg.ID == "" {
		t.Fatal("expected generated id")
	}
	if cfg.Network != NetworkTestnet || cfg.EventType != event.TypeTransfer {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Enabled || cfg.CreatedAt.IsZero() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
