package market

import (
	"fmt"
	"time"
)

// timestampFormats is the ordered list of accepted timestamp layouts. The
// order is a contract, not an implementation detail: formats are attempted
// top to bottom and the first that parses wins, which decides how ambiguous
// strings (e.g. a bare date) are interpreted.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05+00:00",
	"2006-01-02",
}

// ParseTimestamp parses s against the known layouts in priority order.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format: %q", s)
}
