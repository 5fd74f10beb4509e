// Package template renders the Mustache-style templates used by
// mqtt_publish.body/topic, api_listen.response_body, execute.replace_args,
// and next_event_template. Rendering is pure: it never performs I/O or
// mutates any of the values it reads.
package template

import (
	"strings"

	"github.com/cbroglie/mustache"
	"github.com/songokas/hvents/pkg/models"
)

// RequestContext supplies the request/url/segments scope available while
// rendering a template triggered by an api_listen event.
type RequestContext struct {
	Method string            `json:"method"`
	Path   string             `json:"path"`
	Query  map[string]string `json:"query"`
	Body   string            `json:"body"`
}

// Scope is the variable scope a template is rendered against: data, state,
// metadata, request, url, segments.
type Scope struct {
	Data     interface{}       `json:"data"`
	State    map[string]string `json:"state"`
	Metadata map[string]string `json:"metadata"`
	Request  *RequestContext   `json:"request,omitempty"`
	URL      string            `json:"url,omitempty"`
	Segments []string          `json:"segments,omitempty"`
}

// NewScope builds a render scope from a payload and state snapshot, with no
// request context (the common case for time/mqtt/file triggered chains).
func NewScope(p models.Payload) Scope {
	state := map[string]string{}
	if p.State != nil {
		state = p.State.Snapshot()
	}
	return Scope{
		Data:     dataValue(p.Data),
		State:    state,
		Metadata: p.Metadata,
	}
}

// WithRequest decorates a scope with the request/url/segments variables
// available when the triggering event came from an api_listen route.
func (s Scope) WithRequest(method, path, body string, query map[string]string) Scope {
	s.Request = &RequestContext{Method: method, Path: path, Query: query, Body: body}
	s.URL = path
	s.Segments = splitSegments(path)
	return s
}

func splitSegments(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func dataValue(d models.Data) interface{} {
	switch d.Kind {
	case models.DataKindText:
		return d.Text
	case models.DataKindBytes:
		return string(d.Bytes)
	case models.DataKindStructured:
		return d.Structured
	default:
		return ""
	}
}

// Render renders tmpl against scope. An unresolved variable renders as
// empty, matching Mustache's default behavior; template syntax errors are
// returned so the caller can terminate the chain and log them.
func Render(tmpl string, scope Scope) (string, error) {
	return mustache.Render(tmpl, scope)
}
