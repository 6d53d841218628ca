package scanner

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const CRLFInjectionID = 40003

var crlfTags = []string{"OWASP_2021_A03", "OWASP_2017_A01", "WSTG-v42-INPV-15"}

type CRLFRule struct {
	logger   zerolog.Logger
	newToken func() string
}

func NewCRLFRule(logger zerolog.Logger) *CRLFRule {
	return &CRLFRule{
		logger:   logger.With().Int("plugin", CRLFInjectionID).Logger(),
		newToken: uuid.NewString,
	}
}

func (r *CRLFRule) ID() int { return CRLFInjectionID }

func (r *CRLFRule) Name() string { return "CRLF Injection" }

func crlfPayloads(cookie string) []string {
	line := "Set-cookie: " + cookie
	return []string{
		line,
		"any\r\n" + line,
		"any?\r\n" + line,
		"any\n" + line,
		"any?\n" + line,
		"any\r\n" + line + "\r\n",
		"any?\r\n" + line + "\r\n",
	}
}

type queryParam struct {
	name string
	raw  string
}

func splitQuery(raw string) []queryParam {
	var params []queryParam
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		params = append(params, queryParam{name: name, raw: part})
	}
	return params
}

// Scan replaces each query parameter in turn with header-splitting payloads
// and looks for the injected cookie in the response header block.
func (r *CRLFRule) Scan(ctx context.Context, base *httpmsg.Message, client Sender, sink alert.Sink) error {
	target, err := url.Parse(base.Request.URI)
	if err != nil {
		return err
	}

	params := splitQuery(target.RawQuery)
	if len(params) == 0 {
		return nil
	}

	cookie := "Tamper=" + r.newToken()
	payloads := crlfPayloads(cookie)
	pattern := regexp.MustCompile(`(?i)\nSet-cookie: ` + regexp.QuoteMeta(cookie))

	for i, param := range params {
		for _, payload := range payloads {
			if err := ctx.Err(); err != nil {
				return err
			}

			parts := make([]string, len(params))
			for j, p := range params {
				parts[j] = p.raw
			}
			parts[i] = url.QueryEscape(param.name) + "=" + url.QueryEscape(payload)

			u := *target
			u.RawQuery = strings.Join(parts, "&")

			req, err := newRequest(ctx, base.Request, u.String())
			if err != nil {
				return err
			}

			msg, err := client.Send(ctx, req)
			if err != nil {
				r.logger.Debug().Err(err).Str("param", param.name).Msg("payload request failed")
				continue
			}

			match := pattern.FindString(msg.Response.HeaderBlock())
			if match == "" {
				continue
			}

			sink.Raise(alert.Alert{
				PluginID:   CRLFInjectionID,
				Name:       r.Name(),
				Risk:       alert.RiskMedium,
				Confidence: alert.ConfidenceMedium,
				URI:        msg.Request.URI,
				Param:      param.name,
				Attack:     payload,
				Evidence:   strings.TrimSpace(match),
				OtherInfo:  "The response contains a header injected through the parameter value.",
				Solution: "Type check the submitted parameter carefully. Do not allow CRLF to be injected " +
					"by filtering CRLF.",
				Reference: "https://owasp.org/www-community/attacks/HTTP_Response_Splitting",
				CWEID:     113,
				WASCID:    25,
				Tags:      crlfTags,
			})
			break
		}
	}
	return nil
}
