package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultFeeBps is the settlement fee applied to auction payouts when the
// config file does not override it.
const DefaultFeeBps = 500

// ErrCreatedDefault is returned by Load when no file existed and a template
// was written. The template leaves Vault and FeeRecipient empty, so the
// operator has to edit it before the node can start.
var ErrCreatedDefault = errors.New("config: default configuration created")

type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	AuditDB      string `toml:"AuditDB"`
	Env          string `toml:"Env"`
	LogFile      string `toml:"LogFile"`
	FeeBps       uint32 `toml:"FeeBps"`
	FeeRecipient string `toml:"FeeRecipient"`
	Vault        string `toml:"Vault"`
}

// Load loads the configuration from the given path. When no file exists a
// template is written and Load fails with ErrCreatedDefault.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w at %s, set Vault and FeeRecipient then restart", ErrCreatedDefault, path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./market-data"
	}
	if strings.TrimSpace(cfg.AuditDB) == "" {
		cfg.AuditDB = filepath.Join(cfg.DataDir, "audit.db")
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the address-valued fields. The vault must be set; the fee
// recipient may stay zero only if the fee rate is zero.
func (c *Config) Validate() error {
	if c.FeeBps > 10_000 {
		return fmt.Errorf("config: FeeBps %d above 10000", c.FeeBps)
	}
	vault, err := DecodeAddress(c.Vault)
	if err != nil {
		return fmt.Errorf("config: Vault: %w", err)
	}
	if vault == ([20]byte{}) {
		return fmt.Errorf("config: Vault address unset")
	}
	recipient, err := DecodeAddress(c.FeeRecipient)
	if err != nil {
		return fmt.Errorf("config: FeeRecipient: %w", err)
	}
	if recipient == ([20]byte{}) && c.FeeBps > 0 {
		return fmt.Errorf("config: FeeRecipient unset with non-zero FeeBps")
	}
	return nil
}

// VaultAddress returns the decoded custody address.
func (c *Config) VaultAddress() ([20]byte, error) {
	return DecodeAddress(c.Vault)
}

// FeeRecipientAddress returns the decoded fee recipient address.
func (c *Config) FeeRecipientAddress() ([20]byte, error) {
	return DecodeAddress(c.FeeRecipient)
}

// DecodeAddress parses a 20-byte hex address with an optional 0x prefix. An
// empty string decodes to the zero address.
func DecodeAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return addr, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address %q", value)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address %q must be 20 bytes", value)
	}
	copy(addr[:], decoded)
	return addr, nil
}

// createDefault saves a default configuration file. The vault and fee
// recipient fields are left for the operator to fill in.
func createDefault(path string) error {
	cfg := &Config{
		RPCAddress:   ":8080",
		DataDir:      "./market-data",
		AuditDB:      "./market-data/audit.db",
		Env:          "development",
		FeeBps:       DefaultFeeBps,
		FeeRecipient: "",
		Vault:        "",
	}
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
