package http

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/contract"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/ui"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
)

func isLoopbackRequest(r *http.Request) bool {
	ra := r.RemoteAddr

	h, _, err := net.SplitHostPort(ra)
	if err != nil {
		ip := net.ParseIP(ra)
		return ip != nil && ip.IsLoopback()
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func isSafeLocalHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	return host == "127.0.0.1" || host == "localhost" || host == "::1"
}

func normalizeOrigin(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	u, err := url.Parse(in)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host))
}

func readJSONBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{OK: true, Data: data})
}

func respondError(c *gin.Context, status int, err error, data any) {
	c.AbortWithStatusJSON(status, apiResponse{OK: false, Error: err.Error(), Data: data})
}

// statusFor maps bridge errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrInvalidTransaction),
		errors.Is(err, ui.ErrUnknownNetwork),
		errors.Is(err, contract.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrNotConnected),
		errors.Is(err, ui.ErrNetworkLocked),
		errors.Is(err, contract.ErrTransactionCancelled):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, wallet.ErrConnectFailed),
		errors.Is(err, wallet.ErrRemoteRequestFailed),
		errors.Is(err, wallet.ErrMalformedResult):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
