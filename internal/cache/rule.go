package cache

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const (
	PluginID = 10049

	nameNonStorable          = "Non-Storable Content"
	nameStorableNonCacheable = "Storable but Non-Cacheable Content"
	nameStorableCacheable    = "Storable and Cacheable Content"

	reference = "https://datatracker.ietf.org/doc/html/rfc7234\n" +
		"https://datatracker.ietf.org/doc/html/rfc7231\n" +
		"https://www.w3.org/Protocols/rfc2616/rfc2616-sec13.html"
)

// Rule is the passive rule that reports the cache decision for every message.
type Rule struct {
	logger zerolog.Logger
}

func NewRule(logger zerolog.Logger) *Rule {
	return &Rule{logger: logger.With().Int("plugin", PluginID).Logger()}
}

func (r *Rule) ID() int { return PluginID }

func (r *Rule) Name() string { return "Content Cacheability" }

// Scan raises exactly one alert for msg, or none if classification fails.
func (r *Rule) Scan(msg *httpmsg.Message, sink alert.Sink) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("panic", fmt.Sprint(rec)).Msg("cache classification aborted")
		}
	}()

	d, err := Classify(msg)
	if err != nil {
		r.logger.Error().Err(err).Msg("cache classification failed")
		return
	}

	uri := msg.Request.URI
	r.logger.Debug().Str("uri", uri).Stringer("decision", d.Kind()).Str("evidence", EvidenceOf(d)).Msg("classified")
	sink.Raise(newAlert(uri, d))
}

func newAlert(uri string, d Decision) alert.Alert {
	a := alert.Alert{
		PluginID:   PluginID,
		Risk:       alert.RiskInfo,
		Confidence: alert.ConfidenceMedium,
		URI:        uri,
		Evidence:   EvidenceOf(d),
		Reference:  reference,
		CWEID:      524,
		WASCID:     13,
	}

	switch v := d.(type) {
	case NonStorable:
		a.Name = nameNonStorable
		a.Solution = "The content may be marked as storable by ensuring that the following conditions are met:\n" +
			"The request method is understood by the cache and defined as being cacheable (GET, HEAD, and POST).\n" +
			"The response status code is understood by the cache.\n" +
			"The \"no-store\" cache directive does not appear in request or response header fields.\n" +
			"The \"private\" response directive does not appear in the response for a shared cache.\n" +
			"The \"Authorization\" header field does not appear in the request, unless explicitly allowed by the response.\n" +
			"The response contains an Expires header, a max-age or s-maxage directive, a public directive, " +
			"or a status code that is cacheable by default."
	case StorableNonCacheable:
		a.Name = nameStorableNonCacheable
		a.Solution = "Where the content is intended to be cached, remove the directives that prevent a stored copy " +
			"from being served without revalidation."
	case StorableCacheable:
		a.Name = nameStorableCacheable
		a.OtherInfo = v.Note
		a.Solution = "Validate that the response does not contain sensitive, personal or user-specific information. " +
			"If it does, consider the use of the following HTTP response headers, to limit, or prevent the content " +
			"being stored and retrieved from the cache by another user:\n" +
			"Cache-Control: no-cache, no-store, must-revalidate, private\n" +
			"Pragma: no-cache\n" +
			"Expires: 0"
	}
	return a
}
