package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file and returns the validated Config
// SSOT: KnownFields(true) so a typo fails instead of silently keeping a default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode strategy file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash is the SHA256 of the canonical JSON form
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewSnapshot describes a loaded file for the startup log
func NewSnapshot(cfg *Config, path string) (*Snapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ConfigHash: hash,
		StrategyID: cfg.Meta.StrategyID,
		Version:    cfg.Meta.Version,
		Path:       path,
		LoadedAt:   time.Now(),
	}, nil
}
