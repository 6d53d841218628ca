package httpmsg

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

type Request struct {
	Method string
	URI    string
	Proto  string
	Header Header
	Body   []byte
}

type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Header     Header
	Body       []byte
}

// Message is one request/response exchange. Rules treat it as read-only.
type Message struct {
	Request  Request
	Response Response
}

func (r Response) StatusLine() string {
	proto := r.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	line := proto + " " + strconv.Itoa(r.StatusCode)
	if r.Reason != "" {
		line += " " + r.Reason
	}
	return line
}

// HeaderBlock renders the status line and header fields as they would appear
// on the wire.
func (r Response) HeaderBlock() string {
	return r.StatusLine() + "\r\n" + r.Header.String()
}

func (r Response) ContentType() string {
	return strings.ToLower(r.Header.Get("Content-Type"))
}

func (r Response) IsHTML() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "html")
}

func (r Response) IsImage() bool {
	return strings.HasPrefix(r.ContentType(), "image/")
}

func (r Response) IsJavaScript() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "javascript") || strings.Contains(ct, "ecmascript")
}

func (r Response) IsCSS() bool {
	return strings.Contains(r.ContentType(), "text/css")
}

func splitHead(raw string) (lines []string, body []byte) {
	raw = strings.TrimLeft(raw, "\r\n")
	head := raw
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if idx := strings.Index(raw, sep); idx >= 0 {
			head = raw[:idx]
			body = []byte(raw[idx+len(sep):])
			break
		}
	}
	head = strings.ReplaceAll(head, "\r\n", "\n")
	return strings.Split(head, "\n"), body
}

// ParseRequest reads a raw request head (and optional body). Malformed header
// lines are skipped; only a broken request line is an error.
func ParseRequest(raw string) (Request, error) {
	lines, body := splitHead(raw)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return Request{}, fmt.Errorf("empty request")
	}

	parts := strings.Fields(lines[0])
	if len(parts) < 2 {
		return Request{}, fmt.Errorf("malformed request line: %q", lines[0])
	}

	req := Request{
		Method: parts[0],
		URI:    parts[1],
		Header: parseFields(lines[1:]),
		Body:   body,
	}
	if len(parts) > 2 {
		req.Proto = parts[2]
	}
	return req, nil
}

func ParseResponse(raw string) (Response, error) {
	lines, body := splitHead(raw)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return Response{}, fmt.Errorf("empty response")
	}

	parts := strings.SplitN(strings.TrimSpace(lines[0]), " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return Response{}, fmt.Errorf("malformed status line: %q", lines[0])
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return Response{}, fmt.Errorf("malformed status code %q: %w", parts[1], err)
	}

	resp := Response{
		Proto:      parts[0],
		StatusCode: code,
		Header:     parseFields(lines[1:]),
		Body:       body,
	}
	if len(parts) == 3 {
		resp.Reason = parts[2]
	}
	return resp, nil
}

func fromHTTPHeader(h http.Header) Header {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out Header
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, Field{Name: k, Value: v})
		}
	}
	return out
}

// FromHTTP builds a Message from a completed net/http exchange. The response
// body must already have been read into body; the request body is recovered
// through GetBody when the request has one.
func FromHTTP(req *http.Request, resp *http.Response, body []byte) *Message {
	msg := &Message{}
	if req != nil {
		msg.Request = Request{
			Method: req.Method,
			URI:    req.URL.String(),
			Proto:  req.Proto,
			Header: fromHTTPHeader(req.Header),
		}
		if req.GetBody != nil {
			if rc, err := req.GetBody(); err == nil {
				msg.Request.Body, _ = io.ReadAll(rc)
				rc.Close()
			}
		}
		if req.Host != "" && !msg.Request.Header.Has("Host") {
			msg.Request.Header = append(Header{{Name: "Host", Value: req.Host}}, msg.Request.Header...)
		}
	}
	if resp != nil {
		msg.Response = Response{
			Proto:      resp.Proto,
			StatusCode: resp.StatusCode,
			Reason:     strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))),
			Header:     fromHTTPHeader(resp.Header),
			Body:       body,
		}
	}
	return msg
}
