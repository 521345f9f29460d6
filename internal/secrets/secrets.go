package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
)

const (
	keyEnv     = "CS_CREDENTIAL_KEY"
	prevKeyEnv = "CS_CREDENTIAL_PREV_KEY"
)

var (
	ErrNoKey   = errors.New("secrets: no encryption key configured")
	ErrDecrypt = errors.New("secrets: decrypt failed")
)

type envelope struct {
	Enc   string `json:"enc"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// Codec seals and opens source credentials with AES-GCM. The primary key
// comes from CS_CREDENTIAL_KEY; CS_CREDENTIAL_PREV_KEY is tried on open
// so keys can be rotated without re-encrypting every row up front.
type Codec struct {
	primary cipher.AEAD
	opens   []cipher.AEAD
}

func NewFromEnv() *Codec {
	c := &Codec{}
	seen := map[string]struct{}{}
	for i, raw := range []string{os.Getenv(keyEnv), os.Getenv(prevKeyEnv)} {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keyBytes := parseKey(key)
		if len(keyBytes) == 0 {
			continue
		}
		gcm := newGCM(keyBytes)
		if gcm == nil {
			continue
		}
		if i == 0 {
			c.primary = gcm
		}
		c.opens = append(c.opens, gcm)
	}
	return c
}

func (c *Codec) Ready() bool {
	return c != nil && c.primary != nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	if !c.Ready() {
		return "", ErrNoKey
	}
	nonce := make([]byte, c.primary.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := c.primary.Seal(nil, nonce, []byte(plaintext), nil)
	payload := envelope{
		Enc:   "aes-gcm-v1",
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(ct),
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if c == nil || len(c.opens) == 0 {
		return "", ErrNoKey
	}
	var payload envelope
	if err := json.Unmarshal([]byte(ciphertext), &payload); err != nil {
		return "", ErrDecrypt
	}
	if payload.Enc != "aes-gcm-v1" || payload.Nonce == "" || payload.Data == "" {
		return "", ErrDecrypt
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return "", ErrDecrypt
	}
	ct, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", ErrDecrypt
	}
	for _, gcm := range c.opens {
		if pt, err := gcm.Open(nil, nonce, ct, nil); err == nil {
			return string(pt), nil
		}
	}
	return "", ErrDecrypt
}

func parseKey(k string) []byte {
	// Prefer base64 key. fallback to raw bytes.
	keyBytes, err := base64.StdEncoding.DecodeString(k)
	if err != nil {
		keyBytes = []byte(k)
	}
	// Normalize key sizes accepted by AES.
	switch len(keyBytes) {
	case 16, 24, 32:
		return keyBytes
	}
	if len(keyBytes) < 16 {
		return nil
	}
	if len(keyBytes) < 24 {
		return keyBytes[:16]
	}
	if len(keyBytes) < 32 {
		return keyBytes[:24]
	}
	return keyBytes[:32]
}

func newGCM(keyBytes []byte) cipher.AEAD {
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil
	}
	return gcm
}
