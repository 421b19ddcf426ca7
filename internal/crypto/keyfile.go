package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// The current supported version of the armored key file format.
const keyFileVersion = 1

const saltSize = 16

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// key file has been modified.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

// keyBlob is the on-disk JSON structure holding the sealed key and KDF salt.
type keyBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// deriveKEK stretches the passphrase into a key-encryption key.
// An empty passphrase goes through the same path so the file format is
// uniform; it simply offers no protection beyond file permissions.
func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, KeySize)
}

// SaveKey seals key under passphrase and writes the armored file, 0600.
func SaveKey(path string, key Key, passphrase string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	kek := deriveKEK(passphrase, salt)
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	blob := keyBlob{
		V:      keyFileVersion,
		Salt:   salt,
		Nonce:  nonce,
		Cipher: aead.Seal(nil, nonce, key, salt),
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadKey opens the armored key file with passphrase.
func LoadKey(path, passphrase string) (Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var blob keyBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	if blob.V > keyFileVersion {
		return nil, fmt.Errorf("unsupported key file version %d", blob.V)
	}
	kek := deriveKEK(passphrase, blob.Salt)
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	key, err := aead.Open(nil, blob.Nonce, blob.Cipher, blob.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	if len(key) != KeySize {
		return nil, ErrWrongPassphrase
	}
	return Key(key), nil
}
