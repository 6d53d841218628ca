package scanner

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

// Sender performs one outbound request and returns the completed exchange.
type Sender interface {
	Send(ctx context.Context, req *http.Request) (*httpmsg.Message, error)
}

// ActiveRule derives new requests from a baseline exchange and raises alerts
// from what comes back. A returned error means the rule could not finish for
// this target; alerts already raised stand.
type ActiveRule interface {
	ID() int
	Name() string
	Scan(ctx context.Context, base *httpmsg.Message, client Sender, sink alert.Sink) error
}

// newRequest rebuilds req as a net/http request aimed at uri. Hop headers
// that net/http manages itself are left out.
func newRequest(ctx context.Context, req httpmsg.Request, uri string) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body *bytes.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	var out *http.Request
	var err error
	if body != nil {
		out, err = http.NewRequestWithContext(ctx, method, uri, body)
	} else {
		out, err = http.NewRequestWithContext(ctx, method, uri, nil)
	}
	if err != nil {
		return nil, err
	}

	for _, f := range req.Header {
		switch strings.ToLower(f.Name) {
		case "host", "content-length", "connection", "transfer-encoding":
			continue
		}
		out.Header.Add(f.Name, f.Value)
	}
	return out, nil
}
