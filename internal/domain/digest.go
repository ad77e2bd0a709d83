package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ActionDigest fingerprints a tool name plus its exact parameters. The
// action engine matches compliance decisions against this digest, so an
// approval covers one action only.
func ActionDigest(toolName string, parameters map[string]any) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	// json.Marshal sorts map keys, giving a canonical encoding.
	if encoded, err := json.Marshal(parameters); err == nil {
		h.Write(encoded)
	}
	return hex.EncodeToString(h.Sum(nil))
}
