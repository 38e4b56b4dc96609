package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
module_address: " 0x00000000000000000000000000000000000000f6 "
auth:
  hmac_secret: " 0123456789abcdef0123 "
roles:
  admins:
    - " 0x00000000000000000000000000000000000000a1 "
    - " "
  relayers:
    - "0x00000000000000000000000000000000000000b2"
  oracles:
    - "0x00000000000000000000000000000000000000c3"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":8080" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.ShutdownTimeout != 5*time.Second || cfg.Auth.ClockSkew != 2*time.Minute {
		t.Fatalf("expected duration defaults, got %v / %v", cfg.ShutdownTimeout, cfg.Auth.ClockSkew)
	}
	if cfg.Module() != common.HexToAddress("0xf6") {
		t.Fatalf("unexpected module address %s", cfg.Module().Hex())
	}
	if admins := cfg.Admins(); len(admins) != 1 || admins[0] != common.HexToAddress("0xa1") {
		t.Fatalf("unexpected admins %v", admins)
	}
	if len(cfg.Relayers()) != 1 {
		t.Fatalf("expected one relayer")
	}
	if oracles := cfg.Oracles(); len(oracles) != 1 || oracles[0] != common.HexToAddress("0xc3") {
		t.Fatalf("unexpected oracles %v", oracles)
	}
	if cfg.LedgerPath() != filepath.Join("pegvault-data", "ledger") {
		t.Fatalf("unexpected ledger path %q", cfg.LedgerPath())
	}
}

func TestLoadConfigRejectsShortSecret(t *testing.T) {
	path := writeConfig(t, `
module_address: "0x00000000000000000000000000000000000000f6"
auth:
  hmac_secret: "short"
roles:
  admins: ["0x00000000000000000000000000000000000000a1"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a short hmac secret")
	}
}

func TestLoadConfigRequiresModuleAddress(t *testing.T) {
	path := writeConfig(t, `
auth:
  hmac_secret: "0123456789abcdef0123"
roles:
  admins: ["0x00000000000000000000000000000000000000a1"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error without module address")
	}
}

func TestLoadConfigValidatesRoles(t *testing.T) {
	path := writeConfig(t, `
module_address: "0x00000000000000000000000000000000000000f6"
auth:
  hmac_secret: "0123456789abcdef0123"
roles:
  admins: ["not-an-address"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed admin address")
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
tls:
  cert: server.crt
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
