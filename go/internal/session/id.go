package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

const (
	sessionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	sessionIDLength   = 8
	minSessionIDLen   = 4
	maxSessionIDLen   = 32

	// DefaultDeepLinkScheme is the URL scheme the mobile app registers.
	DefaultDeepLinkScheme = "focusnest"
	deepLinkHost          = "buddy"
)

// GenerateSessionID returns a short random lowercase base36 token.
func GenerateSessionID() (string, error) {
	var b strings.Builder
	b.Grow(sessionIDLength)
	base := big.NewInt(int64(len(sessionIDAlphabet)))
	for i := 0; i < sessionIDLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("failed to generate session id: %w", err)
		}
		b.WriteByte(sessionIDAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidateSessionID checks that id is a plausible session token.
func ValidateSessionID(id string) error {
	if len(id) < minSessionIDLen || len(id) > maxSessionIDLen {
		return fmt.Errorf("%w: session id must be %d-%d characters", ErrInvalidArgument, minSessionIDLen, maxSessionIDLen)
	}
	for _, r := range id {
		if !strings.ContainsRune(sessionIDAlphabet, r) {
			return fmt.Errorf("%w: session id must be lowercase alphanumeric", ErrInvalidArgument)
		}
	}
	return nil
}

// BuildDeepLink returns the shareable scheme://buddy/<id> link.
func BuildDeepLink(scheme, id string) string {
	if scheme == "" {
		scheme = DefaultDeepLinkScheme
	}
	return fmt.Sprintf("%s://%s/%s", scheme, deepLinkHost, id)
}

// ParseDeepLink extracts the session id from a scheme://buddy/<id> link.
// Any app scheme is accepted except http and https. A bare session id is
// accepted as well.
func ParseDeepLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		if err := ValidateSessionID(raw); err != nil {
			return "", err
		}
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed link: %v", ErrInvalidArgument, err)
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return "", fmt.Errorf("%w: web urls are not buddy links", ErrInvalidArgument)
	}
	if u.Host != deepLinkHost {
		return "", fmt.Errorf("%w: link does not point to a buddy session", ErrInvalidArgument)
	}
	id := strings.Trim(u.Path, "/")
	if err := ValidateSessionID(id); err != nil {
		return "", err
	}
	return id, nil
}
