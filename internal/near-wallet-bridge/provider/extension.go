package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const jsonRPCVersion = "2.0"

type rpcReq struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResp struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	} `json:"error,omitempty"`
}

// ExtensionClient talks to the wallet extension's local bridge endpoint using
// JSON-RPC 2.0 over HTTP.
type ExtensionClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewExtensionClient(endpoint string, timeout time.Duration) *ExtensionClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ExtensionClient{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *ExtensionClient) Endpoint() string { return c.endpoint }

func (c *ExtensionClient) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	id := uuid.NewString()
	body, err := json.Marshal(rpcReq{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "extension: encode %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "extension: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "extension: %s", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("extension: %s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var rr rpcResp
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, errors.Wrapf(err, "extension: decode %s", method)
	}
	if rr.ID != "" && rr.ID != id {
		return nil, errors.Newf("extension: %s: response id %q does not match request id %q", method, rr.ID, id)
	}
	if rr.Error != nil {
		return nil, &RequestFailedError{
			Method:  method,
			Code:    rr.Error.Code,
			Message: rr.Error.Message,
			Payload: rr.Error.Data,
		}
	}
	return rr.Result, nil
}
