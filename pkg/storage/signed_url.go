package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token errors are deliberately indistinct to callers serving downloads:
// the handler maps all of them to the same forbidden response.
var (
	ErrTokenInvalid = errors.New("download token invalid")
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner issues and verifies download tokens for export artifacts.
// The token itself is the credential: downloads carry no bearer token, so a
// link can be handed to a browser or pasted into a spreadsheet import.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive ttl falls back to a day,
// matching the artifact retention window.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate issues a token of the form jobID.expiry.path.sig where path is
// base64url of the relative file path and sig is an HMAC over the first
// three fields.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("signer: job id and path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signer: secret is not configured")
	}
	expiresAt := time.Now().Add(s.ttl)
	fields := []string{
		jobID,
		strconv.FormatInt(expiresAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString([]byte(relPath)),
	}
	fields = append(fields, s.sign(fields))
	return strings.Join(fields, "."), expiresAt, nil
}

// Parse verifies a token and returns its contents. allowExpired skips the
// expiry check, which cleanup routines use to resolve paths for stale
// artifacts.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	fields := strings.Split(token, ".")
	if len(fields) != 4 {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	if !hmac.Equal([]byte(s.sign(fields[:3])), []byte(fields[3])) {
		return "", "", time.Time{}, ErrTokenInvalid
	}

	expUnix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(fields[2])
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	return fields[0], string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(fields []string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(fields, ".")))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
