package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	relayStatusPending = "pending"
	relayStatusDone    = "done"
	relayStatusFailed  = "failed"

	defaultPollInterval = 1500 * time.Millisecond
)

type relaySubmitReq struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
	Origin string `json:"origin,omitempty"`
}

type relaySubmitResp struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

type relayPollResp struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  *remoteError    `json:"error"`
}

// PollingRelay submits a request to the wallet's relay, hands the approval
// link to the user and polls until the wallet answers.
type PollingRelay struct {
	baseURL    string
	origin     string
	interval   time.Duration
	httpClient *http.Client
	approvals  ApprovalNotifier
}

type PollingOption func(*PollingRelay)

func WithPollInterval(d time.Duration) PollingOption {
	return func(p *PollingRelay) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithOrigin(origin string) PollingOption {
	return func(p *PollingRelay) { p.origin = strings.TrimSpace(origin) }
}

func WithApprovalNotifier(n ApprovalNotifier) PollingOption {
	return func(p *PollingRelay) { p.approvals = n }
}

func WithHTTPClient(c *http.Client) PollingOption {
	return func(p *PollingRelay) {
		if c != nil {
			p.httpClient = c
		}
	}
}

func NewPollingRelay(baseURL string, opts ...PollingOption) *PollingRelay {
	p := &PollingRelay{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		interval:   defaultPollInterval,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PollingRelay) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	id := uuid.NewString()

	var submitted relaySubmitResp
	if err := p.do(ctx, http.MethodPost, p.baseURL+"/request", relaySubmitReq{
		ID:     id,
		Method: method,
		Params: params,
		Origin: p.origin,
	}, &submitted); err != nil {
		return nil, errors.Wrapf(err, "relay: submit %s", method)
	}
	if submitted.ID != "" {
		id = submitted.ID
	}

	if p.approvals != nil {
		if submitted.Link != "" {
			p.approvals.Pending(PendingRequest{ID: id, Method: method, Link: submitted.Link, CreatedAt: time.Now().UTC()})
		}
		defer p.approvals.Settled(id)
	}
	log.Info("relay request submitted", "id", id, "method", method)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	pollURL := p.baseURL + "/response/" + url.PathEscape(id)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var polled relayPollResp
		if err := p.do(ctx, http.MethodGet, pollURL, nil, &polled); err != nil {
			return nil, errors.Wrapf(err, "relay: poll %s", method)
		}

		switch strings.ToLower(polled.Status) {
		case relayStatusDone:
			return polled.Result, nil
		case relayStatusFailed:
			if polled.Error == nil {
				return nil, &RequestFailedError{Method: method, Message: "wallet reported failure"}
			}
			return nil, polled.Error.toRequestFailed(method)
		case relayStatusPending, "":
			continue
		default:
			return nil, errors.Newf("relay: %s: unknown status %q", method, polled.Status)
		}
	}
}

func (p *PollingRelay) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
