package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// Signer issues and verifies expiring download tokens for stored files.
// A token is "<base64 name>.<unix expiry>.<hex hmac>".
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long issued tokens stay valid.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token granting access to name until the returned expiry.
func (s *Signer) Sign(name string) (string, time.Time, error) {
	if name == "" {
		return "", time.Time{}, errors.New("file name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encoded, ts, s.mac(encoded, ts)}, "."), expiresAt, nil
}

// Verify validates a token and returns the file name it grants.
func (s *Signer) Verify(token string) (string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", time.Time{}, ErrInvalidToken
	}
	encoded, ts, signature := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(s.mac(encoded, ts)), []byte(signature)) {
		return "", time.Time{}, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	name, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	expiresAt := time.Unix(unix, 0)
	if s.now().After(expiresAt) {
		return "", time.Time{}, ErrTokenExpired
	}
	return string(name), expiresAt, nil
}

func (s *Signer) mac(encoded, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
