package cipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Version is the first byte of every sealed payload. It is authenticated
// together with the salt, so a rewritten version byte fails to open.
const Version byte = 0x01

const (
	keySize  = chacha20poly1305.KeySize
	saltSize = 16
	// version + salt + nonce + tag
	overhead = 1 + saltSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
)

// Placeholder is what callers render in place of a message that could not
// be decrypted.
const Placeholder = "Unable to decrypt - wrong key?"

var (
	// ErrDecryption covers every way a ciphertext can fail to open: wrong
	// passphrase, corrupted or foreign payload, or an empty plaintext.
	ErrDecryption = errors.New("cipher: unable to decrypt")

	ErrEmptyPassphrase = errors.New("cipher: passphrase required")

	// ErrInvalidPlaintext rejects text that is not valid UTF-8.
	ErrInvalidPlaintext = errors.New("cipher: plaintext is not valid UTF-8")
)

// Params controls the Argon2id cost used to stretch a passphrase into a key.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams follows the OWASP minimum for Argon2id.
var DefaultParams = Params{Time: 2, Memory: 19 * 1024, Threads: 1}

type Cipher struct {
	params Params
	rand   io.Reader
}

func New(params Params) *Cipher {
	return &Cipher{params: params, rand: rand.Reader}
}

var std = New(DefaultParams)

// Encrypt seals plaintext under passphrase with DefaultParams.
func Encrypt(plaintext, passphrase string) (string, error) {
	return std.Encrypt(plaintext, passphrase)
}

// Decrypt opens a ciphertext produced by Encrypt with DefaultParams.
func Decrypt(ciphertext, passphrase string) (string, error) {
	return std.Decrypt(ciphertext, passphrase)
}

// Encrypt returns base64(version || salt || nonce || sealed). Every call
// draws a fresh salt and nonce, so equal plaintexts never produce equal
// ciphertexts.
func (c *Cipher) Encrypt(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}
	if !utf8.ValidString(plaintext) {
		return "", ErrInvalidPlaintext
	}

	header := make([]byte, 1+saltSize+chacha20poly1305.NonceSizeX, overhead+len(plaintext))
	header[0] = Version
	if _, err := io.ReadFull(c.rand, header[1:]); err != nil {
		return "", fmt.Errorf("cipher: generating salt and nonce: %w", err)
	}
	salt := header[1 : 1+saltSize]
	nonce := header[1+saltSize:]

	aead, err := chacha20poly1305.NewX(c.deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("cipher: creating XChaCha20-Poly1305: %w", err)
	}

	sealed := aead.Seal(header, nonce, []byte(plaintext), header[:1+saltSize])
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext with passphrase. All failures wrap ErrDecryption.
// An empty plaintext is reported as a failure as well: a wrong key and an
// empty message are indistinguishable to the reader.
func (c *Cipher) Decrypt(ciphertext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("%w: %v", ErrDecryption, ErrEmptyPassphrase)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: payload is not base64", ErrDecryption)
	}
	if len(raw) < overhead {
		return "", fmt.Errorf("%w: payload is %d bytes, minimum is %d", ErrDecryption, len(raw), overhead)
	}
	if raw[0] != Version {
		return "", fmt.Errorf("%w: unsupported version %d", ErrDecryption, raw[0])
	}

	salt := raw[1 : 1+saltSize]
	nonce := raw[1+saltSize : 1+saltSize+chacha20poly1305.NonceSizeX]
	sealed := raw[1+saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(c.deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	plaintext, err := aead.Open(nil, nonce, sealed, raw[:1+saltSize])
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	if len(plaintext) == 0 {
		return "", fmt.Errorf("%w: empty plaintext", ErrDecryption)
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecryption)
	}
	return string(plaintext), nil
}

func (c *Cipher) deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, c.params.Time, c.params.Memory, c.params.Threads, keySize)
}
