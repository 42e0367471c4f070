package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/secretbox"

	"autonet/pkg/errdefs"
)

// EncryptedPrefix marks config values that must be unwrapped with the
// environment-seeded key before use.
const EncryptedPrefix = "ENCRYPTED:"

// EncryptionKeyEnv names the variable holding the base64 32-byte secretbox key.
const EncryptionKeyEnv = "AUTONET_ENCRYPTION_KEY"

// APIKey resolves a secret by name. Resolution order: AUTONET_<NAME>_KEY
// environment variable, then the given config value (decrypted when it
// carries the ENCRYPTED: prefix). A plaintext config value works but is
// logged as a warning; it is an anti-pattern, not a hard error.
func APIKey(name, configValue string, log *zap.Logger) (string, error) {
	env := "AUTONET_" + strings.ToUpper(name) + "_KEY"
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	if configValue == "" {
		return "", fmt.Errorf("api key %s not found in environment or config: %w", name, errdefs.ErrConfiguration)
	}
	if strings.HasPrefix(configValue, EncryptedPrefix) {
		plain, err := DecryptValue(strings.TrimPrefix(configValue, EncryptedPrefix))
		if err != nil {
			return "", fmt.Errorf("decrypt api key %s: %w: %v", name, errdefs.ErrConfiguration, err)
		}
		return plain, nil
	}
	if log != nil {
		log.Warn("api key stored in plaintext; use encryption or environment variables",
			zap.String("key", name))
	}
	return configValue, nil
}

// EncryptValue seals a plaintext with the environment key and returns the
// base64 payload (nonce prepended), without the ENCRYPTED: prefix.
func EncryptValue(plain string) (string, error) {
	key, err := encryptionKey()
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptValue opens a base64 payload produced by EncryptValue.
func DecryptValue(encoded string) (string, error) {
	key, err := encryptionKey()
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(raw) < 24 {
		return "", fmt.Errorf("payload too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, key)
	if !ok {
		return "", fmt.Errorf("secretbox open failed")
	}
	return string(plain), nil
}

func encryptionKey() (*[32]byte, error) {
	encoded := os.Getenv(EncryptionKeyEnv)
	if encoded == "" {
		return nil, fmt.Errorf("%s not set: %w", EncryptionKeyEnv, errdefs.ErrConfiguration)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%s must be base64 of 32 bytes: %w", EncryptionKeyEnv, errdefs.ErrConfiguration)
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// GenerateEncryptionKey returns a fresh base64 key for operators to store.
func GenerateEncryptionKey() (string, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}
