// ABOUTME: Pairing state machine guarding every authenticated route.
// ABOUTME: One secret per process, one token per process, first pairing wins.

package pairing

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"sync"
)

// ErrWrongCode indicates the supplied pairing code did not match the secret.
// Attempts are unlimited: wrong codes cause no state change and no lockout.
var ErrWrongCode = errors.New("invalid pairing code")

// alphabet excludes visually ambiguous characters (0/O, 1/I/L) so codes and
// tokens survive being read off a screen and typed on a phone.
const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	secretLength = 6
	tokenLength  = 32
)

// Authority owns the pairing secret and the single issued access token for
// the life of the process. There is no un-pairing, rotation, or expiry.
type Authority struct {
	mu     sync.Mutex
	secret string
	paired bool
	token  string
}

// New creates an authority with a fresh random pairing secret.
func New() *Authority {
	return &Authority{secret: randomString(secretLength)}
}

// NewWithSecret creates an authority with a fixed secret. Used by tests and
// by deployments that pin the code externally.
func NewWithSecret(secret string) *Authority {
	return &Authority{secret: secret}
}

// Secret returns the pairing code clients must present. The relay transport
// also sends it when registering with the broker.
func (a *Authority) Secret() string {
	return a.secret
}

// Paired reports whether a client has successfully paired.
func (a *Authority) Paired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paired
}

// AttemptPair validates the supplied code and returns the access token.
// The first correct attempt issues a fresh token; every later correct attempt
// returns the same token unchanged, so a second pairing request cannot
// invalidate an in-flight client. A wrong code fails without state change.
func (a *Authority) AttemptPair(code string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if code != a.secret {
		return "", ErrWrongCode
	}
	if a.paired {
		return a.token, nil
	}

	a.token = randomString(tokenLength)
	a.paired = true
	return a.token, nil
}

// Authorize reports whether the supplied bearer token matches the issued one.
// Pure and side-effect free; always false before the first pairing.
func (a *Authority) Authorize(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.paired || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) == 1
}

// randomString draws n characters from the unambiguous alphabet using
// crypto/rand.
func randomString(n int) string {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure means the platform entropy source is
			// broken; nothing sensible to do but stop.
			panic("pairing: reading random source: " + err.Error())
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf)
}
