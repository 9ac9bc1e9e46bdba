package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultNumberPrefix = "ORD"

// NumberGenerator returns a new human-readable order number.
type NumberGenerator func(now time.Time) string

// NewNumberGenerator builds <prefix>-<unix seconds>-<6 hex chars> numbers.
func NewNumberGenerator(prefix string) NumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = defaultNumberPrefix
	}
	return func(now time.Time) string {
		suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		return fmt.Sprintf("%s-%d-%s", prefix, now.Unix(), suffix)
	}
}
