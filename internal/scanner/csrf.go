package scanner

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const AntiCSRFTokenID = 20012

var csrfTags = []string{"OWASP_2021_A05", "OWASP_2017_A06", "WSTG-v42-SESS-05"}

type htmlForm struct {
	startTag string
	attrs    map[string]string
	hidden   map[string]string
}

func (f htmlForm) attr(name string) (string, bool) {
	v, ok := f.attrs[strings.ToLower(name)]
	return v, ok
}

// parseForms returns every form in document order with its hidden inputs.
// Inputs outside a form are ignored.
func parseForms(body []byte) []htmlForm {
	var forms []htmlForm
	cur := -1

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return forms
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Form:
				form := htmlForm{
					startTag: raw,
					attrs:    make(map[string]string),
					hidden:   make(map[string]string),
				}
				for _, a := range tok.Attr {
					if _, seen := form.attrs[a.Key]; !seen {
						form.attrs[a.Key] = a.Val
					}
				}
				forms = append(forms, form)
				cur = len(forms) - 1
			case atom.Input:
				if cur < 0 {
					continue
				}
				var typ, name, value string
				var hasName bool
				for _, a := range tok.Attr {
					switch a.Key {
					case "type":
						typ = a.Val
					case "name":
						name, hasName = a.Val, true
					case "value":
						value = a.Val
					}
				}
				if strings.EqualFold(typ, "hidden") && hasName {
					forms[cur].hidden[name] = value
				}
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Form {
				cur = -1
			}
		}
	}
}

type CSRFRule struct {
	threshold      alert.Threshold
	ignoreList     []string
	attributeName  string
	attributeValue string
	sessionTokens  []string
	logger         zerolog.Logger
}

func NewCSRFRule(opts config.RuleOptions, logger zerolog.Logger) *CSRFRule {
	return &CSRFRule{
		threshold:      opts.AlertThreshold(),
		ignoreList:     opts.CSRF.IgnoreList,
		attributeName:  opts.CSRF.AttributeName,
		attributeValue: opts.CSRF.AttributeValue,
		sessionTokens:  opts.SessionTokens,
		logger:         logger.With().Int("plugin", AntiCSRFTokenID).Logger(),
	}
}

func (r *CSRFRule) ID() int { return AntiCSRFTokenID }

func (r *CSRFRule) Name() string { return "Absence of Anti-CSRF Tokens" }

func (r *CSRFRule) ignored(f htmlForm) bool {
	id, hasID := f.attr("id")
	name, hasName := f.attr("name")
	for _, ignore := range r.ignoreList {
		if (hasID && ignore == id) || (hasName && ignore == name) {
			r.logger.Debug().Str("form", ignore).Msg("ignoring form")
			return true
		}
	}
	return false
}

func (r *CSRFRule) annotated(f htmlForm) bool {
	if r.attributeName == "" {
		return false
	}
	v, ok := f.attr(r.attributeName)
	return ok && (r.attributeValue == "" || r.attributeValue == v)
}

func (r *CSRFRule) isSessionCookie(name string) bool {
	for _, token := range r.sessionTokens {
		if strings.EqualFold(token, name) {
			return true
		}
	}
	return false
}

// resend repeats the baseline request carrying only session cookies.
func (r *CSRFRule) resend(ctx context.Context, base *httpmsg.Message, client Sender) (*httpmsg.Message, error) {
	req, err := newRequest(ctx, base.Request, base.Request.URI)
	if err != nil {
		return nil, err
	}

	cookies := req.Cookies()
	req.Header.Del("Cookie")
	for _, c := range cookies {
		if r.isSessionCookie(c.Name) {
			r.logger.Debug().Str("cookie", c.Name).Msg("keeping session cookie")
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	return client.Send(ctx, req)
}

// Scan fetches the page a second time and treats a form as protected only
// when one of its hidden values changed between the two responses.
func (r *CSRFRule) Scan(ctx context.Context, base *httpmsg.Message, client Sender, sink alert.Sink) error {
	if !base.Response.IsHTML() {
		return nil
	}
	if r.threshold != alert.ThresholdLow && base.Request.Method == http.MethodGet {
		return nil
	}

	forms := parseForms(base.Response.Body)

	var second []htmlForm
	fetched := false

	for i, form := range forms {
		if r.ignored(form) {
			continue
		}

		if !fetched {
			msg, err := r.resend(ctx, base, client)
			if err != nil {
				return fmt.Errorf("resend %s: %w", base.Request.URI, err)
			}
			second = parseForms(msg.Response.Body)
			fetched = true
		}
		if i >= len(second) {
			continue
		}

		vulnerable := true
		for name, value := range second[i].hidden {
			if old, ok := form.hidden[name]; ok && old != value {
				r.logger.Debug().Str("token", name).Msg("found anti-CSRF token")
				vulnerable = false
				break
			}
		}
		if !vulnerable {
			continue
		}

		a := alert.Alert{
			PluginID:   AntiCSRFTokenID,
			Name:       r.Name(),
			Risk:       alert.RiskMedium,
			Confidence: alert.ConfidenceMedium,
			URI:        base.Request.URI,
			Evidence:   form.startTag,
			Solution: "Use a vetted library or framework that does not allow this weakness to occur, " +
				"and make sure every state changing form carries an unpredictable per session token.",
			Reference: "https://cheatsheetseries.owasp.org/cheatsheets/Cross-Site_Request_Forgery_Prevention_Cheat_Sheet.html",
			CWEID:     352,
			WASCID:    9,
			Tags:      csrfTags,
		}
		if r.annotated(form) {
			a.Risk = alert.RiskInfo
			a.OtherInfo = "This form is marked as not needing an anti-CSRF token."
		}
		sink.Raise(a)
	}
	return nil
}
