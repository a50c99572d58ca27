package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Descriptor is an immutable description of a pending call to the portal
// backend. The retried flag is owned by the pipeline and set at most once per
// descriptor, which is what rules out retry loops even when the same
// descriptor instance is shared between the original submission and its
// replay.
type Descriptor struct {
	ID     string
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
	// Silent suppresses the failure notification for this request
	Silent bool

	retried bool
}

func NewDescriptor(method string, rawURL string, header http.Header, body []byte) (*Descriptor, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}
	if header == nil {
		header = http.Header{}
	}
	return &Descriptor{
		ID:     uuid.NewString(),
		Method: method,
		URL:    parsedURL,
		Header: header,
		Body:   body,
	}, nil
}

func (d *Descriptor) Retried() bool {
	return d.retried
}

func (d *Descriptor) markRetried() {
	d.retried = true
}

// request materializes a fresh http.Request for one submission attempt. Every
// attempt gets its own body reader and its own copy of the headers so that a
// replay never observes mutations from the previous attempt.
func (d *Descriptor) request(ctx context.Context, accessToken string) (*http.Request, error) {
	var body *bytes.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = d.Header.Clone()
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return req, nil
}
