// Package cache decides whether an HTTP response may be stored by a shared
// cache and whether a stored copy may be served without revalidation, following
// the rfc7234 storability and freshness rules.
package cache

import (
	"errors"
	"strconv"
	"strings"

	"github.com/capsaicin/scanrules/internal/directive"
	"github.com/capsaicin/scanrules/internal/httpdate"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const (
	NoteHeuristicLifetime = "In the absence of an explicitly specified caching lifetime directive in the response, " +
		"a liberal lifetime heuristic of 1 year was assumed. This is permitted by rfc7234."
	NoteStaleRetrieveNotBlocked = "The response is stale, and stale responses are not configured to be re-validated or blocked, " +
		"using the 'must-revalidate', 'proxy-revalidate', 's-maxage', or 'max-age' response 'Cache-Control' directives."

	heuristicLifetime int64 = 31536000
)

var errNilMessage = errors.New("nil message")

// Status codes a cache may store without explicit freshness information.
var defaultCacheable = map[int]bool{
	200: true, 203: true, 204: true, 206: true,
	300: true, 301: true,
	404: true, 405: true, 410: true, 414: true,
	501: true,
}

// Classify runs the storability and freshness gates in order and returns the
// first decision reached. Malformed header values are treated as absent.
func Classify(msg *httpmsg.Message) (Decision, error) {
	if msg == nil {
		return nil, errNilMessage
	}
	req := msg.Request
	resp := msg.Response

	method := strings.ToUpper(req.Method)
	if method != "GET" && method != "HEAD" && method != "POST" {
		return NonStorable{Evidence: req.Method + " "}, nil
	}

	status := resp.StatusCode
	if class := status / 100; class < 1 || class > 5 {
		return NonStorable{Evidence: strconv.Itoa(status)}, nil
	}

	var all []string
	all = append(all, req.Header.Values("Pragma")...)
	all = append(all, req.Header.Values("Cache-Control")...)
	all = append(all, resp.Header.Values("Pragma")...)
	all = append(all, resp.Header.Values("Cache-Control")...)
	for _, tok := range directive.Tokenize(all) {
		if directive.Is(tok, "no-store") {
			return NonStorable{Evidence: tok}, nil
		}
	}

	cacheControl := resp.Header.Values("Cache-Control")
	tokens := directive.Tokenize(cacheControl)

	if directive.Contains(tokens, "private") {
		return NonStorable{Evidence: "private"}, nil
	}

	if req.Header.Has("Authorization") && !authorizedStorable(tokens) {
		return NonStorable{Evidence: "Authorization:"}, nil
	}

	if !storable(resp, tokens) {
		return NonStorable{Evidence: strconv.Itoa(status)}, nil
	}

	if directive.Contains(tokens, "no-cache") {
		return StorableNonCacheable{Evidence: "no-cache"}, nil
	}

	lifetime, evidence, note := freshnessLifetime(resp, cacheControl)
	if lifetime > 0 {
		return StorableCacheable{Evidence: evidence, Note: note}, nil
	}

	for _, tok := range tokens {
		if directive.Is(tok, "must-revalidate") || directive.Is(tok, "proxy-revalidate") ||
			directive.HasPrefix(tok, "s-maxage=") || directive.HasPrefix(tok, "max-age=") {
			return StorableNonCacheable{Evidence: tok}, nil
		}
	}
	return StorableCacheable{Note: NoteStaleRetrieveNotBlocked}, nil
}

func authorizedStorable(tokens []string) bool {
	for _, tok := range tokens {
		if directive.Is(tok, "must-revalidate") || directive.Is(tok, "public") || directive.HasPrefix(tok, "s-maxage=") {
			return true
		}
	}
	return false
}

func storable(resp httpmsg.Response, tokens []string) bool {
	if resp.Header.Has("Expires") {
		return true
	}
	for _, tok := range tokens {
		if directive.HasPrefix(tok, "max-age=") || directive.HasPrefix(tok, "s-maxage=") || directive.Is(tok, "public") {
			return true
		}
	}
	return defaultCacheable[resp.StatusCode]
}

// freshnessLifetime returns the lifetime in seconds with the evidence and
// optional note that justify it.
func freshnessLifetime(resp httpmsg.Response, cacheControl []string) (int64, string, string) {
	if v, tok, ok := singleAge(directive.Tokenize(cacheControl), "s-maxage="); ok {
		return v, tok, ""
	}
	if v, tok, ok := singleAge(directive.TokenizeWithCommas(cacheControl), "max-age="); ok {
		return v, tok, ""
	}
	if v, evidence, ok := expiresLifetime(resp.Header); ok {
		return v, evidence, ""
	}
	return heuristicLifetime, "", NoteHeuristicLifetime
}

// singleAge finds the one parseable delta-seconds value for the directive.
// Unparseable values are ignored; more than one parseable value invalidates
// the directive.
func singleAge(tokens []string, prefix string) (int64, string, bool) {
	var (
		found    int
		value    int64
		evidence string
	)
	for _, tok := range tokens {
		if !directive.HasPrefix(tok, prefix) {
			continue
		}
		raw, _, _ := strings.Cut(tok[len(prefix):], ",")
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}
		found++
		value = n
		evidence = tok
	}
	if found != 1 {
		return 0, "", false
	}
	return value, evidence, true
}

func expiresLifetime(h httpmsg.Header) (int64, string, bool) {
	expires := h.Values("Expires")
	dates := h.Values("Date")
	if len(expires) != 1 || len(dates) > 1 {
		return 0, "", false
	}

	expiresMs, ok := httpdate.Parse(expires[0])
	if !ok {
		// An unparseable Expires means already expired, with or without a
		// Date header. Do not move this below the Date check.
		return 0, expires[0], true
	}
	if len(dates) == 0 {
		return 0, "", false
	}
	dateMs, ok := httpdate.Parse(dates[0])
	if !ok {
		return 0, "", false
	}
	return (expiresMs - dateMs) / 1000, expires[0], true
}
