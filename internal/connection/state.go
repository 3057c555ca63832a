package connection

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// stateTTL bounds how long an authorization round-trip may take before
// the state token lapses.
const stateTTL = 15 * time.Minute

var (
	errStateMalformed = errors.New("malformed state token")
	errStateExpired   = errors.New("state token expired")
	errStateSignature = errors.New("state token signature mismatch")
)

// stateSigner issues and verifies the OAuth state parameter. The token is
// self-contained (user id, nonce, expiry, HMAC) so any instance behind the
// load balancer can verify a callback no matter which instance initiated
// the flow.
type stateSigner struct {
	secret []byte
	now    func() time.Time
}

func newStateSigner(secret string) *stateSigner {
	return &stateSigner{secret: []byte(secret), now: time.Now}
}

// Issue builds a signed state token for the user.
func (s *stateSigner) Issue(userID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	payload := fmt.Sprintf("%s:%s:%d",
		base64.RawURLEncoding.EncodeToString([]byte(userID)),
		hex.EncodeToString(nonce),
		s.now().Add(stateTTL).Unix())
	return payload + ":" + s.sign(payload), nil
}

// Verify checks the signature and expiry and returns the embedded user id.
func (s *stateSigner) Verify(token string) (string, error) {
	idx := strings.LastIndex(token, ":")
	if idx < 0 {
		return "", errStateMalformed
	}
	payload, signature := token[:idx], token[idx+1:]

	if !hmac.Equal([]byte(signature), []byte(s.sign(payload))) {
		return "", errStateSignature
	}

	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return "", errStateMalformed
	}
	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", errStateMalformed
	}
	if s.now().Unix() > expiry {
		return "", errStateExpired
	}

	userID, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", errStateMalformed
	}
	return string(userID), nil
}

func (s *stateSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
