package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// Storage keys for the two halves of the credential.
const (
	keyToken = "token"
	keyUser  = "user"
)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Values are encrypted with AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (all operations will return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Save stores the token and the JSON-encoded identity in a single transaction,
// replacing any previous credential.
func (r *CredentialRepo) Save(ctx context.Context, cred model.Credential) error {
	userJSON, err := json.Marshal(cred.Identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	encToken, err := r.encrypt(cred.Token)
	if err != nil {
		return err
	}
	encUser, err := r.encrypt(string(userJSON))
	if err != nil {
		return err
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save credential: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT OR REPLACE INTO credentials (key, value, updated_at) VALUES (?, ?, ?)`
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, kv := range [][2]string{{keyToken, encToken}, {keyUser, encUser}} {
		if _, err := tx.ExecContext(ctx, query, kv[0], kv[1], now); err != nil {
			return fmt.Errorf("save credential %q: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credential: %w", err)
	}
	return nil
}

// Load returns the stored credential, or (nil, nil) when none exists. A
// half-present or undecodable credential is cleared and reported as absent.
func (r *CredentialRepo) Load(ctx context.Context) (*model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT key, value, updated_at FROM credentials WHERE key IN (?, ?)`
	rows, err := r.db.Reader.QueryContext(ctx, query, keyToken, keyUser)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	var updatedAt time.Time
	for rows.Next() {
		var key, encrypted, ts string
		if err := rows.Scan(&key, &encrypted, &ts); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		plaintext, err := r.decrypt(encrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential %q: %w", key, err)
		}
		values[key] = plaintext

		if t, err := parseTime(ts); err == nil && t.After(updatedAt) {
			updatedAt = t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	if len(values) == 0 {
		return nil, nil
	}

	token, hasToken := values[keyToken]
	userJSON, hasUser := values[keyUser]
	if !hasToken || !hasUser || token == "" {
		slog.Warn("discarding incomplete stored credential", "has_token", hasToken, "has_user", hasUser)
		return nil, r.Clear(ctx)
	}

	var identity model.Identity
	if err := json.Unmarshal([]byte(userJSON), &identity); err != nil || identity.Login == "" {
		slog.Warn("discarding undecodable stored identity", "error", err)
		return nil, r.Clear(ctx)
	}

	return &model.Credential{
		Token:     token,
		Identity:  identity,
		UpdatedAt: updatedAt,
	}, nil
}

// Clear removes both halves of the credential.
func (r *CredentialRepo) Clear(ctx context.Context) error {
	if r.key == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	const query = `DELETE FROM credentials WHERE key IN (?, ?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, keyToken, keyUser); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := newGCM(r.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := newGCM(r.key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
