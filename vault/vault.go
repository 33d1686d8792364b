// Package vault encrypts values at rest in the local tier. Values are
// JSON-serialized, sealed with AES-256-GCM under a device-local key, and
// stored as base64(nonce || ciphertext) in an encrypted_-prefixed slot.
// Legacy plaintext slots from before encryption was introduced are
// migrated on first read.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"qr-code-tracker/utils"

	"github.com/rs/zerolog/log"
)

const (
	encryptedPrefix = "encrypted_"
	deviceKeySlot   = "device_key"
	keySize         = 32
)

// SymmetricCipher seals and opens blobs under a symmetric key. Seal
// returns nonce || ciphertext; Open expects the same layout.
type SymmetricCipher interface {
	Seal(key, plaintext []byte) ([]byte, error)
	Open(key, blob []byte) ([]byte, error)
}

type gcmCipher struct{}

func (gcmCipher) Seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (gcmCipher) Open(key, blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, errors.New("blob shorter than nonce")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Vault wraps a PersistentMap with encryption at rest.
type Vault struct {
	store  PersistentMap
	cipher SymmetricCipher
}

func New(store PersistentMap) *Vault {
	return &Vault{store: store, cipher: gcmCipher{}}
}

// NewWithCipher injects a cipher, used by tests to simulate crypto
// failures.
func NewWithCipher(store PersistentMap, c SymmetricCipher) *Vault {
	return &Vault{store: store, cipher: c}
}

// deviceKey loads the device key from its well-known slot, generating and
// persisting it on first use. The key is re-read on every operation
// rather than cached; the slot is the source of truth.
func (v *Vault) deviceKey() ([]byte, error) {
	raw, ok, err := v.store.Get(deviceKeySlot)
	if err != nil {
		return nil, &utils.CryptoError{Op: "load key", Err: err}
	}
	if ok {
		key, err := base64.StdEncoding.DecodeString(string(raw))
		if err == nil && len(key) == keySize {
			return key, nil
		}
		log.Warn().Msg("Stored device key is corrupt, regenerating")
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, &utils.CryptoError{Op: "generate key", Err: err}
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := v.store.Set(deviceKeySlot, []byte(encoded)); err != nil {
		return nil, &utils.CryptoError{Op: "persist key", Err: err}
	}
	log.Info().Msg("Generated new device encryption key")
	return key, nil
}

// SetItem serializes value, encrypts it under the device key with a fresh
// nonce, and stores it in the encrypted slot for key. On any crypto
// failure it degrades to storing the plaintext serialization in the
// legacy slot; the failure is logged, not returned.
func (v *Vault) SetItem(key string, value any) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", key, err)
	}

	blob, cryptoErr := v.seal(plaintext)
	if cryptoErr != nil {
		log.Warn().Err(cryptoErr).Str("key", key).
			Msg("Encryption failed, storing plaintext (degraded security)")
		if err := v.store.Set(key, plaintext); err != nil {
			return &utils.StorageError{Tier: "local", Op: "set", Err: err}
		}
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(blob)
	if err := v.store.Set(encryptedPrefix+key, []byte(encoded)); err != nil {
		return &utils.StorageError{Tier: "local", Op: "set", Err: err}
	}
	return nil
}

// GetItem loads the value for key into dest. The encrypted slot is tried
// first; if it is absent but a legacy plaintext slot exists, the legacy
// value is returned after being migrated through SetItem and deleted.
// Returns false when neither slot yields a value.
func (v *Vault) GetItem(key string, dest any) (bool, error) {
	found, err := v.GetItemEncrypted(key, dest)
	if err != nil || found {
		return found, err
	}
	return v.GetItemLegacy(key, dest)
}

// GetItemEncrypted reads only the encrypted slot. Decryption failures are
// logged and reported as absent, never raised.
func (v *Vault) GetItemEncrypted(key string, dest any) (bool, error) {
	raw, ok, err := v.store.Get(encryptedPrefix + key)
	if err != nil {
		return false, &utils.StorageError{Tier: "local", Op: "get", Err: err}
	}
	if !ok {
		return false, nil
	}

	blob, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Encrypted slot is not valid base64")
		return false, nil
	}

	deviceKey, err := v.deviceKey()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Device key unavailable for decryption")
		return false, nil
	}

	plaintext, err := v.cipher.Open(deviceKey, blob)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Decryption failed, treating as absent")
		return false, nil
	}

	if err := json.Unmarshal(plaintext, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Decrypted payload is not valid JSON")
		return false, nil
	}
	return true, nil
}

// GetItemLegacy reads only the legacy plaintext slot, migrating a hit to
// the encrypted slot and deleting the plaintext copy. Idempotent: once
// migrated the legacy slot is gone and subsequent calls miss.
func (v *Vault) GetItemLegacy(key string, dest any) (bool, error) {
	raw, ok, err := v.store.Get(key)
	if err != nil {
		return false, &utils.StorageError{Tier: "local", Op: "get", Err: err}
	}
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Legacy slot is not valid JSON")
		return false, nil
	}

	// One-time migration: re-write through SetItem (now encrypted), then
	// drop the plaintext slot.
	var value any
	if err := json.Unmarshal(raw, &value); err == nil {
		if err := v.SetItem(key, value); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Legacy migration write failed")
			return true, nil
		}
		// Only drop the plaintext slot once the encrypted slot really
		// exists; a degraded SetItem falls back to the plaintext slot.
		if _, encOK, _ := v.store.Get(encryptedPrefix + key); !encOK {
			return true, nil
		}
		if err := v.store.Delete(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to delete legacy slot")
		} else {
			log.Info().Str("key", key).Msg("Migrated legacy plaintext slot to encrypted storage")
		}
	}
	return true, nil
}

func (v *Vault) seal(plaintext []byte) ([]byte, error) {
	deviceKey, err := v.deviceKey()
	if err != nil {
		return nil, err
	}
	blob, err := v.cipher.Seal(deviceKey, plaintext)
	if err != nil {
		return nil, &utils.CryptoError{Op: "encrypt", Err: err}
	}
	return blob, nil
}
