package event

import (
	"math/big"
	"testing"
)

func TestDecodeTransfer(t *testing.T) {
	raw := `{"type":"transfer","timestamp":"2024-05-01T10:00:00Z","blockHeight":100,"blockHash":"0xabc","sender":"0x1","recipient":"0x2","amount":"1500000","txHash":"0xdead"}`
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tr, ok := ev.(*Transfer)
	if !ok {
		t.Fatalf("expected *Transfer, got %T", ev)
	}
	if tr.Amount.Cmp(big.NewInt(1500000)) != 0 {
		t.Fatalf("amount = %s", tr.Amount)
	}
	if tr.TxID() != "0xdead" || tr.Common().BlockHeight != 100 {
		t.Fatalf("unexpected meta: %+v", tr)
	}
}

func TestDecodeHexAmount(t *testing.T) {
	raw := `{"type":"transfer","blockHeight":1,"amount":"0xde0b6b3a7640000","txHash":"0x1"}`
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if got := ev.(*Transfer).Amount; got.Cmp(want) != 0 {
		t.Fatalf("amount = %s, want %s", got, want)
	}
}

func TestDecodeReorg(t *testing.T) {
	raw := `{"type":"reorg","blockHeight":100010,"commonAncestorHeight":100005,"reorgDepth":5,"removedBlockHashes":["block-1"],"affectedTransactions":["tx-1","tx-2"]}`
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	re, ok := ev.(*Reorg)
	if !ok {
		t.Fatalf("expected *Reorg, got %T", ev)
	}
	if re.CommonAncestorHeight != 100005 || len(re.AffectedTransactions) != 2 {
		t.Fatalf("unexpected reorg: %+v", re)
	}
	if re.TxID() != "" {
		t.Fatalf("reorg events are not transaction-scoped")
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"burn"}`)); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, err := Decode([]byte(`{"blockHeight":1}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestEncodeDecodeContractCall(t *testing.T) {
	in := &ContractCall{
		Meta:     Meta{BlockHeight: 7, BlockHash: "0xb"},
		Contract: "0xc0ffee",
		Function: "claimBadge",
		Args:     map[string]any{"id": "42"},
		Success:  true,
		TxHash:   "0xcall",
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	call := out.(*ContractCall)
	if call.Function != "claimBadge" || !call.Success || call.TxHash != "0xcall" {
		t.Fatalf("round trip mismatch: %+v", call)
	}
}

func TestParseAmountRejectsNegative(t *testing.T) {
	if _, err := ParseAmount("-5"); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := ParseAmount(""); err == nil {
		t.Fatal("expected error for empty amount")
	}
	if _, err := ParseAmount("abc"); err == nil {
		t.Fatal("expected error for garbage amount")
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.Valid() {
			t.Fatalf("%s should be valid", typ)
		}
	}
	if Type("swap").Valid() {
		t.Fatal("unknown type should be invalid")
	}
}
