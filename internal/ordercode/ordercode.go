// Package ordercode mints human-readable order codes of the form
// ORD<base36 millis><random suffix>, uppercased. The code is shown to
// shoppers and support staff; the storage key is a separate uuid.
package ordercode

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	prefix    = "ORD"
	suffixLen = 5
	alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generate returns a fresh order code. The timestamp component keeps codes
// roughly sortable; the random suffix makes collisions practically
// impossible without a global counter. Callers still verify uniqueness
// against the store before committing.
func Generate() (string, error) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)

	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random suffix: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}

	return strings.ToUpper(prefix + ts + string(buf)), nil
}
