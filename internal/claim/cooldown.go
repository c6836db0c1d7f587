package claim

import (
	"regexp"
	"strings"
	"time"
)

// cooldownLayout is the dialog's next-availability format, MM/DD/YYYY HH:MM.
const cooldownLayout = "01/02/2006 15:04"

var cooldownPattern = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+(\d{2}:\d{2})`)

// ParseCooldown scans the first line of a dialog message for a date and time
// of the form MM/DD/YYYY HH:MM. The match alone decides cooldown; the parsed
// timestamp is best-effort diagnostics and stays zero when the matched text
// is not a real date.
func ParseCooldown(message string) (time.Time, bool) {
	if message == "" {
		return time.Time{}, false
	}
	firstLine := message
	if i := strings.IndexAny(message, "\r\n"); i >= 0 {
		firstLine = message[:i]
	}
	m := cooldownPattern.FindStringSubmatch(firstLine)
	if m == nil {
		return time.Time{}, false
	}
	at, err := time.ParseInLocation(cooldownLayout, m[1]+" "+m[2], time.Local)
	if err != nil {
		return time.Time{}, true
	}
	return at, true
}
