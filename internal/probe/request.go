package probe

import (
	"errors"
	"fmt"
	"net/url"
)

// Request is the input of one probe: where to POST and what to send.
type Request struct {
	URL  string
	Body []byte
}

// NewRequest validates target and returns a Request carrying a private copy
// of body.
func NewRequest(target string, body []byte) (Request, error) {
	if target == "" {
		return Request{}, errors.New("target URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return Request{}, fmt.Errorf("parsing target URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return Request{}, fmt.Errorf("target URL %q must be absolute", target)
	}

	b := make([]byte, len(body))
	copy(b, body)
	return Request{URL: target, Body: b}, nil
}
