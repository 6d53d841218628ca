package httpdate

import (
	"net/http"
	"strings"
)

// Parse reads an HTTP-date in IMF-fixdate, RFC 850 or asctime form and
// returns milliseconds since the Unix epoch. Unparseable input reports false.
func Parse(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	t, err := http.ParseTime(s)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}
