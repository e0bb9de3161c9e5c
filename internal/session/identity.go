package session

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/gridrealm/server/internal/protocol"
)

// MaxIdentityLen bounds a normalized identity, in runes.
const MaxIdentityLen = 32

// NormalizeIdentity maps a client-supplied identity to the key used for
// every comparison: NFKC, then Unicode case folding. "Ａlice" and "ALICE"
// claim the same player.
func NormalizeIdentity(raw string) (string, error) {
	// A Caser carries state, so each call gets its own.
	id := cases.Fold().String(norm.NFKC.String(strings.TrimSpace(raw)))
	if id == "" {
		return "", fmt.Errorf("empty identity: %w", protocol.ErrBadRequest)
	}
	if utf8.RuneCountInString(id) > MaxIdentityLen {
		return "", fmt.Errorf("identity longer than %d characters: %w", MaxIdentityLen, protocol.ErrBadRequest)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("identity contains control characters: %w", protocol.ErrBadRequest)
		}
	}
	return id, nil
}
