package summarizer

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// classifyingDoer sits between the model client and the network and turns
// transport failures and throttling answers into typed errors before the
// client gets to flatten them.
type classifyingDoer struct {
	client *http.Client
}

func (d *classifyingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, err
		}
		return nil, &Error{Kind: KindConnection, Err: err}
	}

	var kind Kind
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		kind = KindRateLimit
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		kind = KindConnection
	default:
		return resp, nil
	}

	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, &Error{
		Kind: kind,
		Err:  fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
	}
}
