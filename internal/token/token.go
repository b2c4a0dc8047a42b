package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Verification failure reasons. Any single failure is terminal; a
// token is never partially honored.
var (
	ErrMalformed       = errors.New("malformed token")
	ErrBadSignature    = errors.New("bad token signature")
	ErrExpired         = errors.New("token expired")
	ErrContextMismatch = errors.New("token context mismatch")
)

// DefaultStreamTTL is the lifetime of a streaming grant.
const DefaultStreamTTL = 600 * time.Second

// Payload is the signed content of a stream token.
type Payload struct {
	UserID   uuid.UUID `json:"user_id"`
	ModuleID uuid.UUID `json:"module_id"`
	Expiry   int64     `json:"expiry"`
}

// Service signs and verifies opaque expiring grants and exposes the
// keyed digest shared by the audit ledger and certificates. All
// methods are pure functions of their inputs and the secret.
type Service struct {
	secret []byte
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Issue returns base64url(payload) + "." + hex(hmac_sha256(secret, payload)).
func (s *Service) Issue(principalID, resourceID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultStreamTTL
	}
	payload := Payload{
		UserID:   principalID,
		ModuleID: resourceID,
		Expiry:   time.Now().Add(ttl).Unix(),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payloadBytes) + "." + s.sign(payloadBytes), nil
}

// Verify checks structure, signature, expiry and binding, in that
// order, against the expected principal and resource.
func (s *Service) Verify(token string, principalID, resourceID uuid.UUID, now time.Time) (Payload, error) {
	payloadB64, sig, ok := splitToken(token)
	if !ok {
		return Payload{}, ErrMalformed
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Payload{}, ErrMalformed
	}

	if !hmac.Equal([]byte(sig), []byte(s.sign(payloadBytes))) {
		return Payload{}, ErrBadSignature
	}

	var payload Payload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return Payload{}, ErrMalformed
	}

	if now.Unix() > payload.Expiry {
		return Payload{}, ErrExpired
	}

	if payload.UserID != principalID || payload.ModuleID != resourceID {
		return Payload{}, ErrContextMismatch
	}

	return payload, nil
}

// Digest is the keyed hash primitive: hex sha256 over the
// concatenated parts followed by the secret.
func (s *Service) Digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	h.Write(s.secret)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestTime formats a timestamp for hashing. Whole seconds only, so
// the digest survives storage round-trips.
func DigestTime(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func (s *Service) sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func splitToken(token string) (payload, sig string, ok bool) {
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			if i == 0 || i == len(token)-1 {
				return "", "", false
			}
			payload, sig = token[:i], token[i+1:]
			// A second separator means garbage.
			for j := i + 1; j < len(token); j++ {
				if token[j] == '.' {
					return "", "", false
				}
			}
			return payload, sig, true
		}
	}
	return "", "", false
}
