package servicehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPProvider dispatches method/params as a JSON POST to baseURL+"/"+method,
// the shape the teacher's own HTTP service clients use: a thin client over
// net/http with status-code based failure classification (2xx success,
// 4xx fails fast, 5xx is retriable).
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider constructs a provider for simple JSON-over-HTTP services
// (weather, translation). client may be nil to use http.DefaultClient.
func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{baseURL: baseURL, httpClient: client}
}

func (p *HTTPProvider) Execute(ctx context.Context, method string, params map[string]any) (any, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, &ProviderError{StatusCode: 400, Retriable: false, Err: err}
	}

	url := p.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{StatusCode: 400, Retriable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Transport-level failures (DNS, connection refused, timeout) are
		// retriable; they carry no status code.
		return nil, &ProviderError{StatusCode: 0, Retriable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Retriable:  false,
			Err:        fmt.Errorf("%s: %s", resp.Status, respBody),
		}
	}
	if resp.StatusCode >= 500 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Retriable:  true,
			Err:        fmt.Errorf("%s: %s", resp.Status, respBody),
		}
	}

	var result map[string]any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, &ProviderError{StatusCode: resp.StatusCode, Retriable: false, Err: err}
		}
	}
	return result, nil
}
