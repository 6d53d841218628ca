package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capsaicin/scanrules/internal/alert"
)

func TestParseRuleOptions(t *testing.T) {
	data := []byte(`
threshold: high
csrf:
  ignore_list: [" search ", "", "login"]
  attribute_name: data-no-csrf
session_tokens: [JSESSIONID]
users: [guest, root]
username_payloads: [foobar]
error_payloads: ["custom failure"]
field_values:
  email: a@b.c
disabled_rules: [40003]
`)

	opts, err := ParseRuleOptions(data)
	require.NoError(t, err)

	assert.Equal(t, alert.ThresholdHigh, opts.AlertThreshold())
	assert.Equal(t, []string{"search", "login"}, opts.CSRF.IgnoreList)
	assert.Equal(t, "data-no-csrf", opts.CSRF.AttributeName)
	assert.Equal(t, []string{"JSESSIONID"}, opts.SessionTokens)
	assert.Equal(t, []string{"guest", "root"}, opts.Users)
	assert.Equal(t, []string{"foobar"}, opts.UsernamePayloads)
	assert.Equal(t, []string{"custom failure"}, opts.ErrorPayloads)
	assert.Equal(t, "a@b.c", opts.FieldValues["email"])
	assert.False(t, opts.RuleEnabled(40003))
	assert.True(t, opts.RuleEnabled(10049))
}

func TestParseRuleOptionsDefaults(t *testing.T) {
	opts, err := ParseRuleOptions(nil)
	require.NoError(t, err)

	assert.Equal(t, alert.ThresholdMedium, opts.AlertThreshold())
	assert.Contains(t, opts.SessionTokens, "jsessionid")
	assert.Empty(t, opts.Users)
}

func TestParseRuleOptionsErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":     "thresold: low\n",
		"bad threshold":   "threshold: extreme\n",
		"malformed yaml":  "users: [guest\n",
		"bad rule id":     "disabled_rules: [-1]\n",
		"wrong type list": "users: guest\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRuleOptions([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestDefaultRuleOptionsIsolated(t *testing.T) {
	a := DefaultRuleOptions()
	a.SessionTokens[0] = "changed"

	b := DefaultRuleOptions()
	assert.Equal(t, "asp.net_sessionid", b.SessionTokens[0])
}
