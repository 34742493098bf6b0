package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"copytrader/src/model"
)

// ErrVault marks a credential decrypt failure: corrupted ciphertext or a
// key-rotation mismatch. It is a hard per-connection failure and is never
// silently defaulted.
var ErrVault = errors.New("vault: cannot decrypt credentials")

// Credentials is the plaintext credential set for one broker connection.
// It must not outlive the orchestrator call frame and must never be logged.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

func vaultKey() ([]byte, error) {
	config := GetConfig()
	key, err := base64.StdEncoding.DecodeString(config.BrokerCRKey)
	if err != nil {
		return nil, fmt.Errorf("decode BROKER_CREDENTIALS_KEY: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("BROKER_CREDENTIALS_KEY must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// EncryptString encrypts plaintext with the process-wide credentials key.
// Output is base64(nonce || ciphertext).
func EncryptString(plaintext string) (string, error) {
	key, err := vaultKey()
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. Any integrity or key mismatch
// surfaces as ErrVault.
func DecryptString(encoded string) (string, error) {
	key, err := vaultKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVault, err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrVault)
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVault, err)
	}
	return string(plaintext), nil
}

// DecryptConnection decrypts the credential set stored on a broker
// connection. The passphrase is decrypted only when present.
func DecryptConnection(conn *model.BrokerConnection) (Credentials, error) {
	var creds Credentials

	apiKey, err := DecryptString(conn.EncryptedAPIKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("api key for connection %d: %w", conn.ID, err)
	}
	apiSecret, err := DecryptString(conn.EncryptedAPISecret)
	if err != nil {
		return Credentials{}, fmt.Errorf("api secret for connection %d: %w", conn.ID, err)
	}

	creds.APIKey = apiKey
	creds.APISecret = apiSecret

	if conn.EncryptedPassphrase != "" {
		passphrase, err := DecryptString(conn.EncryptedPassphrase)
		if err != nil {
			return Credentials{}, fmt.Errorf("passphrase for connection %d: %w", conn.ID, err)
		}
		creds.Passphrase = passphrase
	}

	return creds, nil
}
