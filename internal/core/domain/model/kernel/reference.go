package kernel

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// referenceTimeLayout renders YYYYMMDDHHMMSS.
const referenceTimeLayout = "20060102150405"

// NewReference builds a human-readable business number such as
// ORD20240102153045A1B2C3: prefix, UTC timestamp, then suffixLen random upper-case
// hex characters. Uniqueness is enforced by storage; callers regenerate on conflict.
func NewReference(prefix string, at time.Time, suffixLen int) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	if suffixLen > len(random) {
		suffixLen = len(random)
	}
	return prefix + at.UTC().Format(referenceTimeLayout) + strings.ToUpper(random[:suffixLen])
}
