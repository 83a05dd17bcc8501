package encode

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
)

// Fingerprint returns the hex BLAKE2b-256 digest of the canonical encoding
// of ss. Two trees have the same fingerprint exactly when they encode to
// the same bytes.
func Fingerprint(ss *ast.StyleSheet) (string, error) {
	data, err := MarshalCBOR(ss)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SourceKey returns the hex BLAKE2b-256 digest of a stylesheet's source text.
func SourceKey(src []byte) string {
	sum := blake2b.Sum256(src)
	return hex.EncodeToString(sum[:])
}
