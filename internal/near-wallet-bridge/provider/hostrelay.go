package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/tidwall/gjson"
)

type relayEnvelope struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

type relayReply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *remoteError    `json:"error"`
}

// HostRelay forwards wallet requests through the embedded messaging host's
// websocket bridge. One request is in flight at a time.
type HostRelay struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewHostRelay(url string, header http.Header) *HostRelay {
	return &HostRelay{
		url:    strings.TrimSpace(url),
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (r *HostRelay) URL() string { return r.url }

func (r *HostRelay) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.connectLocked(ctx)
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// Unblock a pending read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	id := uuid.NewString()
	if err := conn.WriteJSON(relayEnvelope{ID: id, Method: method, Params: params}); err != nil {
		r.dropLocked()
		return nil, errors.Wrapf(err, "host relay: send %s", method)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.dropLocked()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !deadline.IsZero() && !time.Now().Before(deadline) {
				return nil, context.DeadlineExceeded
			}
			return nil, errors.Wrapf(err, "host relay: read %s", method)
		}

		// The host may push unrelated events on the same socket.
		if gjson.GetBytes(data, "id").String() != id {
			continue
		}

		var reply relayReply
		if err := json.Unmarshal(data, &reply); err != nil {
			return nil, errors.Wrapf(err, "host relay: decode %s", method)
		}
		if reply.Error != nil {
			return nil, reply.Error.toRequestFailed(method)
		}
		return reply.Result, nil
	}
}

func (r *HostRelay) connectLocked(ctx context.Context) (*websocket.Conn, error) {
	if r.conn != nil {
		return r.conn, nil
	}
	conn, resp, err := r.dialer.DialContext(ctx, r.url, r.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "host relay: dial %s", r.url)
	}
	log.Info("host relay connected", "url", r.url)
	r.conn = conn
	return conn, nil
}

func (r *HostRelay) dropLocked() {
	if r.conn == nil {
		return
	}
	_ = r.conn.Close()
	r.conn = nil
}

// Close releases the socket. Safe to call more than once.
func (r *HostRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	_ = r.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := r.conn.Close()
	r.conn = nil
	return err
}
