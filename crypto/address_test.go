package crypto

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	rendered := String(addr)
	if !strings.HasPrefix(rendered, "pusd1") {
		t.Fatalf("unexpected rendering %q", rendered)
	}
	parsed, err := ParseAddress(rendered)
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if parsed != addr {
		t.Fatalf("round trip mismatch: %s != %s", parsed.Hex(), addr.Hex())
	}
	hexParsed, err := ParseAddress(addr.Hex())
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if hexParsed != addr {
		t.Fatalf("hex mismatch")
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	other := Bech32("zz", common.HexToAddress("0x01"))
	if _, err := ParseAddress(other); err == nil {
		t.Fatalf("expected foreign prefix to be rejected")
	}
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatalf("expected short hex to be rejected")
	}
	if _, err := ParseAddress(" "); err == nil {
		t.Fatalf("expected empty input to be rejected")
	}
}
