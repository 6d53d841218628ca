package openapi

import (
	"net/url"

	"github.com/rs/zerolog"
)

// ControlTypeAttribute is the field attribute carrying the parameter type.
const ControlTypeAttribute = "Control Type"

// ValueProvider supplies values for generated request parameters.
type ValueProvider interface {
	GetValue(uri *url.URL, name, defaultValue string, definedValues []string, envAttributes, fieldAttributes map[string]string) string
}

type ValueGenerator struct {
	provider ValueProvider
	logger   zerolog.Logger
}

// NewValueGenerator wraps provider, which may be nil.
func NewValueGenerator(provider ValueProvider, logger zerolog.Logger) *ValueGenerator {
	return &ValueGenerator{provider: provider, logger: logger}
}

func (g *ValueGenerator) Value(name, typ, defaultValue string) string {
	if g.provider == nil {
		g.logger.Debug().
			Str("name", name).
			Str("type", typ).
			Str("default", defaultValue).
			Msg("returning default value")
		return defaultValue
	}

	value := g.provider.GetValue(nil, name, defaultValue, nil, map[string]string{}, map[string]string{
		ControlTypeAttribute: typ,
	})
	g.logger.Debug().
		Str("name", name).
		Str("type", typ).
		Str("default", defaultValue).
		Str("value", value).
		Msg("returning provided value")
	return value
}

// StaticProvider answers from a fixed name→value table, falling back to the
// default for unknown names.
type StaticProvider map[string]string

func (p StaticProvider) GetValue(_ *url.URL, name, defaultValue string, _ []string, _, _ map[string]string) string {
	if v, ok := p[name]; ok {
		return v
	}
	return defaultValue
}
