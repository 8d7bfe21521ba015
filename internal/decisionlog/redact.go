package decisionlog

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// hashActor redacts a caller subject identifier before it reaches the
// decision log: the raw `sub` claim can be a PII-bearing identifier (an
// email address, in some issuers), and decision_log is meant to be safe to
// ship to a slower-retention analytics sink.
func hashActor(issuer, subject string) string {
	if subject == "" {
		return ""
	}
	hasher := blake3.New()
	hasher.Write([]byte(issuer))
	hasher.Write([]byte{0})
	hasher.Write([]byte(subject))
	return hex.EncodeToString(hasher.Sum(nil))[:32]
}
