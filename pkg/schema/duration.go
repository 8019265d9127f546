package schema

import (
	"fmt"
	"strings"
	"time"
)

// FormatISODuration renders a duration as an ISO-8601 duration string of the
// form P[nD]T[nH][nM][n.fS], seconds at one-decimal precision. Zero-valued
// components are omitted, except that a T segment always carries at least
// one numeric component ("PT0.0S" for zero, "P1DT0.0S" for exactly one day).
// Negative durations are clamped to zero.
func FormatISODuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	total := d.Seconds()
	days := int(total / 86400)
	hours := int(total/3600) % 24
	minutes := int(total/60) % 60
	secs := total - float64(days*86400+hours*3600+minutes*60)

	var b strings.Builder
	b.WriteString("P")
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	b.WriteString("T")
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	if secs > 0 || (hours == 0 && minutes == 0) {
		fmt.Fprintf(&b, "%.1fS", secs)
	}
	return b.String()
}
