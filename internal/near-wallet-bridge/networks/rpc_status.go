package networks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// CheckRPC asks a NEAR RPC node for its status.
func CheckRPC(ctx context.Context, rpcURL string) (NodeStatus, error) {
	out := NodeStatus{RPCURL: strings.TrimSpace(rpcURL)}
	if out.RPCURL == "" {
		return out, errors.New("missing rpcUrl")
	}

	u, err := url.Parse(out.RPCURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return out, errors.New("invalid rpcUrl")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return out, errors.Newf("unsupported rpcUrl scheme: %s", u.Scheme)
	}

	// small timeout so UI feels snappy
	httpClient := &http.Client{Timeout: 7 * time.Second}

	body, err := json.Marshal(rpcReq{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "status",
		Params:  []any{},
	})
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, out.RPCURL, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return out, errors.Wrap(err, "rpc status")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, errors.Newf("rpc status: http %d", resp.StatusCode)
	}

	var rr rpcResp
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return out, errors.Wrap(err, "rpc decode")
	}
	if rr.Error != nil {
		return out, errors.Newf("rpc status error: %s", rr.Error.Message)
	}

	var st statusResult
	if err := json.Unmarshal(rr.Result, &st); err != nil {
		return out, errors.Wrap(err, "status result")
	}
	if st.ChainID == "" {
		return out, errors.New("status result has no chain_id")
	}

	out.ChainID = st.ChainID
	out.LatestBlockHeight = st.SyncInfo.LatestBlockHeight
	out.Version = strings.TrimSpace(st.Version.Version)
	return out, nil
}
