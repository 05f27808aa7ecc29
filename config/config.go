// Package config loads the YAML configuration for a Noise handshake
// endpoint: which pattern and algorithms to speak, where key material lives,
// and the session rekey policy. Grounded on teacher's config/simple.go
// (yaml.v3 tags, a DefaultXConfig constructor), trimmed from VPN/tunnel
// fields (server address, obfuscation, port hopping, DNS) down to what a
// Noise endpoint actually needs.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration accepts either a Go duration string ("5m") or is left zero.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(err, "config: invalid duration %q", value.Value)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// KeysConfig names the files holding this endpoint's key material. Each
// path holds hex-encoded bytes; StaticPrivate/PeerStatic are 32-byte X25519
// keys, PresharedKeys are indexed by the modifier number they fill (psk0,
// psk1, ...).
type KeysConfig struct {
	StaticPrivate string         `yaml:"static_private,omitempty"`
	PeerStatic    string         `yaml:"peer_static,omitempty"`
	PresharedKeys map[int]string `yaml:"preshared_keys,omitempty"`
	Prologue      string         `yaml:"prologue,omitempty"`
}

// RekeyConfig holds the same limits as session.RekeyPolicy; nothing in this
// module converts one into the other.
type RekeyConfig struct {
	Interval      Duration `yaml:"interval,omitempty"`
	AfterMessages uint64   `yaml:"after_messages,omitempty"`
	AfterBytes    uint64   `yaml:"after_bytes,omitempty"`
}

// Config is the full configuration for one Noise endpoint.
type Config struct {
	// Role is "initiator" or "responder".
	Role string `yaml:"role"`

	// Pattern is the base pattern plus modifiers, e.g. "XXpsk3".
	Pattern string `yaml:"pattern"`

	Dh     string `yaml:"dh"`
	Cipher string `yaml:"cipher"`
	Hash   string `yaml:"hash"`

	Keys  KeysConfig  `yaml:"keys"`
	Rekey RekeyConfig `yaml:"rekey"`

	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns a config using the canonical XX pattern and algorithm
// trio, mirroring teacher's DefaultSimpleConfig constructor shape.
func Default() *Config {
	return &Config{
		Role:    "initiator",
		Pattern: "XX",
		Dh:      "25519",
		Cipher:  "ChaChaPoly",
		Hash:    "BLAKE2s",
		Rekey: RekeyConfig{
			Interval:      Duration{5 * time.Minute},
			AfterMessages: 100000,
			AfterBytes:    1 << 30,
		},
		LogLevel: "info",
	}
}

// Load reads and validates a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	switch c.Role {
	case "initiator", "responder":
	default:
		return errors.Errorf("config: role must be initiator or responder, got %q", c.Role)
	}
	if c.Pattern == "" {
		return errors.New("config: pattern is required")
	}
	if c.Dh == "" || c.Cipher == "" || c.Hash == "" {
		return errors.New("config: dh, cipher and hash are all required")
	}
	if c.Keys.StaticPrivate != "" {
		if _, err := decodeHexKey(c.Keys.StaticPrivate, 32); err != nil {
			return errors.Wrap(err, "config: keys.static_private")
		}
	}
	if c.Keys.PeerStatic != "" {
		if _, err := decodeHexKey(c.Keys.PeerStatic, 32); err != nil {
			return errors.Wrap(err, "config: keys.peer_static")
		}
	}
	for n, psk := range c.Keys.PresharedKeys {
		if _, err := decodeHexKey(psk, 32); err != nil {
			return errors.Wrapf(err, "config: keys.preshared_keys[%d]", n)
		}
	}
	return nil
}

func decodeHexKey(path string, wantLen int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}

// StaticPrivateBytes returns the decoded static private key, or nil if none
// is configured.
func (c *Config) StaticPrivateBytes() ([]byte, error) {
	if c.Keys.StaticPrivate == "" {
		return nil, nil
	}
	return decodeHexKey(c.Keys.StaticPrivate, 32)
}

// PeerStaticBytes returns the decoded peer static public key, or nil.
func (c *Config) PeerStaticBytes() ([]byte, error) {
	if c.Keys.PeerStatic == "" {
		return nil, nil
	}
	return decodeHexKey(c.Keys.PeerStatic, 32)
}

// PresharedKeyBytes decodes every configured psk and returns them in a map
// keyed by modifier number (the index protocol.Options.PresharedKeys uses);
// it does not build that fixed-size array itself.
func (c *Config) PresharedKeyBytes() (map[int][]byte, error) {
	out := make(map[int][]byte, len(c.Keys.PresharedKeys))
	for n, s := range c.Keys.PresharedKeys {
		b, err := decodeHexKey(s, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "preshared_keys[%d]", n)
		}
		out[n] = b
	}
	return out, nil
}
