// Package config loads and validates a chain worker validator's startup
// configuration: network endpoints, the genesis committee, and the
// worker policy knobs spec.md §4.6/§4.7 call out as validator-local
// decisions. Adapted from the teacher's config package
// (tolelom-tolchain/config/config.go): same
// DefaultConfig/Load/Validate/Save shape, generalized from a single-chain
// node's account/tx fields to a multi-chain validator's committee and
// worker settings.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tolelom/multichain/worker"
)

// TLSConfig holds paths to the PEM files needed for mTLS between
// validators. When nil or all paths empty, the node falls back to plain
// TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`
	NodeCert string `json:"node_cert"`
	NodeKey  string `json:"node_key"`
}

// SeedPeer identifies a remote validator to connect to on startup.
type SeedPeer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// ValidatorEntry is one committee member as declared in the genesis
// config: its public key and voting weight.
type ValidatorEntry struct {
	PublicKey string `json:"public_key"` // hex-encoded ed25519 public key
	Weight    uint64 `json:"weight"`
}

// GenesisConfig describes the committee and admin chain a fresh validator
// bootstraps from (spec.md §6 "NetworkDescription").
type GenesisConfig struct {
	AdminChainID string           `json:"admin_chain_id"` // hex-encoded chainid.ID
	Validators   []ValidatorEntry `json:"validators"`
	Policy       PolicyConfig     `json:"policy"`
}

// PolicyConfig mirrors committee.Policy in a JSON-friendly shape.
type PolicyConfig struct {
	MaxBlobSize           int `json:"max_blob_size"`
	MaxBlobsPerBlock      int `json:"max_blobs_per_block"`
	MaximumPublishedBlobs int `json:"maximum_published_blobs"`
}

// Config holds all validator process configuration.
type Config struct {
	NodeID       string        `json:"node_id"`
	DataDir      string        `json:"data_dir"`
	RPCPort      int           `json:"rpc_port"`
	P2PPort      int           `json:"p2p_port"`
	KeystorePath string        `json:"keystore_path"`
	Genesis      GenesisConfig `json:"genesis"`
	SeedPeers    []SeedPeer    `json:"seed_peers,omitempty"`
	TLS          *TLSConfig    `json:"tls,omitempty"`
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"`
	Worker       WorkerPolicy  `json:"worker"`
}

// WorkerPolicy is the JSON-friendly form of worker.Config.
type WorkerPolicy struct {
	AllowMessagesFromDeprecatedEpochs bool `json:"allow_messages_from_deprecated_epochs"`
	AllowInactiveChains               bool `json:"allow_inactive_chains"`
	BlockValuesCacheSize              int  `json:"block_values_cache_size"`
}

// ToWorkerConfig converts the JSON-friendly policy into worker.Config.
func (p WorkerPolicy) ToWorkerConfig() worker.Config {
	cfg := worker.DefaultConfig()
	cfg.AllowMessagesFromDeprecatedEpochs = p.AllowMessagesFromDeprecatedEpochs
	cfg.AllowInactiveChains = p.AllowInactiveChains
	if p.BlockValuesCacheSize > 0 {
		cfg.BlockValuesCacheSize = p.BlockValuesCacheSize
	}
	return cfg
}

// DefaultConfig returns a single-validator development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:       "validator0",
		DataDir:      "./data",
		RPCPort:      8545,
		P2PPort:      30303,
		KeystorePath: "./data/validator.keystore",
		Genesis: GenesisConfig{
			Policy: PolicyConfig{
				MaxBlobSize:           2 << 20,
				MaxBlobsPerBlock:      64,
				MaximumPublishedBlobs: 64,
			},
		},
		Worker: WorkerPolicy{BlockValuesCacheSize: 4096},
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Genesis.AdminChainID == "" {
		return fmt.Errorf("genesis.admin_chain_id must not be empty")
	}
	if _, err := hex.DecodeString(c.Genesis.AdminChainID); err != nil {
		return fmt.Errorf("genesis.admin_chain_id must be hex: %w", err)
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port must be 1-65535, got %d", c.RPCPort)
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2p_port must be 1-65535, got %d", c.P2PPort)
	}
	if c.RPCPort == c.P2PPort {
		return fmt.Errorf("rpc_port and p2p_port must not be the same (%d)", c.RPCPort)
	}
	if len(c.Genesis.Validators) == 0 {
		return fmt.Errorf("genesis.validators list must not be empty")
	}
	for i, v := range c.Genesis.Validators {
		b, err := hex.DecodeString(v.PublicKey)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("genesis.validators[%d]: public_key must be 64-char hex (32 bytes ed25519), got %q", i, v.PublicKey)
		}
		if v.Weight == 0 {
			return fmt.Errorf("genesis.validators[%d]: weight must be > 0", i)
		}
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
