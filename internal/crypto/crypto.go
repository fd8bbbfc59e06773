// Package crypto implements the "symmetric encryption" and "password
// hashing" external collaborators named in spec.md §6. The CORE only
// ever calls these interfaces and treats their output as an opaque
// blob: event payloads that embed a *CryptoValue are preserved
// verbatim through append and replay, never interpreted.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/chacha20poly1305"
)

// CryptoValue is the opaque ciphertext blob carried inside event
// payloads. Algorithm and KeyID identify how to decrypt it without the
// core ever needing to; JSON round-trips it unchanged.
type CryptoValue struct {
	CryptoType int    `json:"cryptoType"`
	Algorithm  string `json:"algorithm"`
	KeyID      string `json:"keyID"`
	Crypted    []byte `json:"crypted"`
}

// EncryptionAlgorithm is the interface the Command Engine consumes for
// fields marked sensitive (spec.md §6). Implementations are swappable;
// the core never inspects plaintext or key material itself.
type EncryptionAlgorithm interface {
	Encrypt(plaintext []byte, keyID string) (*CryptoValue, error)
	Decrypt(value *CryptoValue) ([]byte, error)
	Algorithm() string
}

// aeadEncryption is the default EncryptionAlgorithm, grounded on
// golang.org/x/crypto's chacha20poly1305 AEAD (same family of primitive
// as the AES-GCM the reference codebase uses, chosen here because the
// example pack imports golang.org/x/crypto rather than a specific KMS
// client).
type aeadEncryption struct {
	keys map[string][]byte
}

// NewAEADEncryption builds an EncryptionAlgorithm backed by a static
// key ring. Real deployments resolve KeyID against a key management
// service; the core does not care which.
func NewAEADEncryption(keys map[string][]byte) (EncryptionAlgorithm, error) {
	for id, k := range keys {
		if len(k) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("crypto: key %q must be %d bytes", id, chacha20poly1305.KeySize)
		}
	}
	return &aeadEncryption{keys: keys}, nil
}

func (a *aeadEncryption) Algorithm() string { return "chacha20poly1305" }

func (a *aeadEncryption) Encrypt(plaintext []byte, keyID string) (*CryptoValue, error) {
	key, ok := a.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("crypto: unknown key %q", keyID)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nonce, nonce, plaintext, nil)
	return &CryptoValue{
		Algorithm: a.Algorithm(),
		KeyID:     keyID,
		Crypted:   ciphertext,
	}, nil
}

func (a *aeadEncryption) Decrypt(value *CryptoValue) ([]byte, error) {
	key, ok := a.keys[value.KeyID]
	if !ok {
		return nil, fmt.Errorf("crypto: unknown key %q", value.KeyID)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(value.Crypted) < aead.NonceSize() {
		return nil, errors.New("crypto: ciphertext too short")
	}
	nonce, ciphertext := value.Crypted[:aead.NonceSize()], value.Crypted[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

// EncodeBase64 is a convenience used by command handlers that want to
// log a masked reference to a CryptoValue without printing key bytes.
func EncodeBase64(v *CryptoValue) string {
	if v == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(v.Crypted)
}

// PasswordHasher is the "password hashing" external collaborator from
// spec.md §6. Used only inside command handlers, never inside
// projections or the event store.
type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, hash []byte) bool
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns the default PasswordHasher.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), b.cost)
}

func (b *bcryptHasher) Verify(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
