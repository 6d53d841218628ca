package scanner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/httpmsg"
	"github.com/capsaicin/scanrules/internal/transport"
)

const staticForm = `<html><body>
<form id="login" action="/login" method="post">
<input type="text" name="user">
<input type="hidden" name="token" value="static">
</form>
</body></html>`

func formServer(t *testing.T, body func(n int32) string, requests *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(requests, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body(n)))
	}))
	t.Cleanup(server.Close)
	return server
}

func htmlBase(uri, method, body string, header httpmsg.Header) *httpmsg.Message {
	return &httpmsg.Message{
		Request: httpmsg.Request{Method: method, URI: uri, Header: header},
		Response: httpmsg.Response{
			StatusCode: 200,
			Header:     httpmsg.Header{{Name: "Content-Type", Value: "text/html"}},
			Body:       []byte(body),
		},
	}
}

func csrfOptions(threshold string) config.RuleOptions {
	opts := config.DefaultRuleOptions()
	opts.Threshold = threshold
	return opts
}

func TestCSRFRule_StaticToken(t *testing.T) {
	var requests int32
	server := formServer(t, func(int32) string { return staticForm }, &requests)
	client := transport.NewClient(transport.Options{})

	base := htmlBase(server.URL+"/login", "POST", staticForm, nil)
	collector := alert.NewCollector()

	err := NewCSRFRule(csrfOptions("MEDIUM"), zerolog.Nop()).Scan(context.Background(), base, client, collector)
	require.NoError(t, err)

	alerts := collector.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AntiCSRFTokenID, alerts[0].PluginID)
	assert.Equal(t, alert.RiskMedium, alerts[0].Risk)
	assert.Equal(t, alert.ConfidenceMedium, alerts[0].Confidence)
	assert.Equal(t, `<form id="login" action="/login" method="post">`, alerts[0].Evidence)
	assert.Equal(t, 352, alerts[0].CWEID)
	assert.Equal(t, 9, alerts[0].WASCID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestCSRFRule_RotatingToken(t *testing.T) {
	rotating := func(n int32) string {
		return fmt.Sprintf(`<form id="login"><input type="hidden" name="token" value="t%d"></form>`, n)
	}

	var requests int32
	server := formServer(t, rotating, &requests)
	client := transport.NewClient(transport.Options{})

	base := htmlBase(server.URL+"/login", "POST", rotating(0), nil)
	collector := alert.NewCollector()

	err := NewCSRFRule(csrfOptions("MEDIUM"), zerolog.Nop()).Scan(context.Background(), base, client, collector)
	require.NoError(t, err)
	assert.Zero(t, collector.Len())
}

func TestCSRFRule_SecurityAnnotation(t *testing.T) {
	page := `<form id="search" data-no-csrf="true"><input type="hidden" name="q" value="x"></form>`

	tests := []struct {
		name     string
		value    string
		expected alert.Risk
	}{
		{"any value", "", alert.RiskInfo},
		{"matching value", "true", alert.RiskInfo},
		{"other value", "false", alert.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			server := formServer(t, func(int32) string { return page }, &requests)
			client := transport.NewClient(transport.Options{})

			opts := csrfOptions("MEDIUM")
			opts.CSRF.AttributeName = "data-no-csrf"
			opts.CSRF.AttributeValue = tt.value

			collector := alert.NewCollector()
			err := NewCSRFRule(opts, zerolog.Nop()).Scan(context.Background(), htmlBase(server.URL, "POST", page, nil), client, collector)
			require.NoError(t, err)

			alerts := collector.Alerts()
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.expected, alerts[0].Risk)
		})
	}
}

func TestCSRFRule_IgnoreList(t *testing.T) {
	var requests int32
	server := formServer(t, func(int32) string { return staticForm }, &requests)
	client := transport.NewClient(transport.Options{})

	opts := csrfOptions("MEDIUM")
	opts.CSRF.IgnoreList = []string{"login"}

	collector := alert.NewCollector()
	err := NewCSRFRule(opts, zerolog.Nop()).Scan(context.Background(), htmlBase(server.URL, "POST", staticForm, nil), client, collector)
	require.NoError(t, err)

	assert.Zero(t, collector.Len())
	assert.Zero(t, atomic.LoadInt32(&requests))
}

func TestCSRFRule_Skips(t *testing.T) {
	var requests int32
	server := formServer(t, func(int32) string { return staticForm }, &requests)
	client := transport.NewClient(transport.Options{})

	t.Run("GET at medium threshold", func(t *testing.T) {
		collector := alert.NewCollector()
		err := NewCSRFRule(csrfOptions("MEDIUM"), zerolog.Nop()).Scan(context.Background(), htmlBase(server.URL, "GET", staticForm, nil), client, collector)
		require.NoError(t, err)
		assert.Zero(t, collector.Len())
	})

	t.Run("non HTML response", func(t *testing.T) {
		base := htmlBase(server.URL, "POST", staticForm, nil)
		base.Response.Header = httpmsg.Header{{Name: "Content-Type", Value: "application/json"}}
		collector := alert.NewCollector()
		err := NewCSRFRule(csrfOptions("LOW"), zerolog.Nop()).Scan(context.Background(), base, client, collector)
		require.NoError(t, err)
		assert.Zero(t, collector.Len())
	})

	assert.Zero(t, atomic.LoadInt32(&requests))

	t.Run("GET at low threshold", func(t *testing.T) {
		collector := alert.NewCollector()
		err := NewCSRFRule(csrfOptions("LOW"), zerolog.Nop()).Scan(context.Background(), htmlBase(server.URL, "GET", staticForm, nil), client, collector)
		require.NoError(t, err)
		assert.Equal(t, 1, collector.Len())
	})
}

func TestCSRFRule_KeepsOnlySessionCookies(t *testing.T) {
	var mu sync.Mutex
	var gotCookie, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotCookie = r.Header.Get("Cookie")
		gotMethod = r.Method
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(staticForm))
	}))
	defer server.Close()

	client := transport.NewClient(transport.Options{})
	header := httpmsg.Header{
		{Name: "Cookie", Value: "JSESSIONID=abc; tracking=xyz"},
		{Name: "X-Test", Value: "1"},
	}

	err := NewCSRFRule(csrfOptions("MEDIUM"), zerolog.Nop()).Scan(context.Background(), htmlBase(server.URL+"/login", "POST", staticForm, header), client, alert.NewCollector())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "JSESSIONID=abc", gotCookie)
	assert.Equal(t, "POST", gotMethod)
}

func TestCSRFRule_ResendFailure(t *testing.T) {
	client := transport.NewClient(transport.Options{Timeout: time.Second})
	base := htmlBase("http://127.0.0.1:1/login", "POST", staticForm, nil)

	err := NewCSRFRule(csrfOptions("MEDIUM"), zerolog.Nop()).Scan(context.Background(), base, client, alert.NewCollector())
	assert.Error(t, err)
}

func TestParseForms(t *testing.T) {
	page := `<input type="hidden" name="outside" value="1">
<FORM name="a"><input TYPE="HIDDEN" name="one" value="1"><input type="hidden" value="noname"><input type="hidden" name="empty"></FORM>
<form id="b"><input type="text" name="visible" value="v"></form>`

	forms := parseForms([]byte(page))
	require.Len(t, forms, 2)

	assert.Equal(t, `<FORM name="a">`, forms[0].startTag)
	assert.Equal(t, map[string]string{"one": "1", "empty": ""}, forms[0].hidden)
	name, ok := forms[0].attr("NAME")
	assert.True(t, ok)
	assert.Equal(t, "a", name)

	assert.Empty(t, forms[1].hidden)
	id, _ := forms[1].attr("id")
	assert.Equal(t, "b", id)
}
