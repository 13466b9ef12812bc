package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/khanhnv2901/netguard/internal/shared/constants"
)

// IPLookup asks an external "echo my IP" service which address it sees.
type IPLookup interface {
	Lookup(ctx context.Context, url string) (netip.Addr, error)
}

// HTTPIPLookup performs the lookup with a single GET request.
type HTTPIPLookup struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPIPLookup returns a lookup client bounded by timeout (10s when zero).
func NewHTTPIPLookup(timeout time.Duration) *HTTPIPLookup {
	if timeout <= 0 {
		timeout = constants.ExternalIPTimeout
	}
	return &HTTPIPLookup{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// Lookup implements IPLookup.
func (h *HTTPIPLookup) Lookup(ctx context.Context, url string) (netip.Addr, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = constants.ExternalIPTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("User-Agent", "netguard")

	resp, err := client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return netip.Addr{}, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.ExternalIPBodyLimit))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to read response body: %w", err)
	}
	return ParseIPBody(body)
}

var errUnrecognizedBody = errors.New("response is neither a bare IP nor a JSON object with an \"ip\" field")

// ParseIPBody accepts either a bare textual IP or a JSON object carrying an "ip" key.
func ParseIPBody(body []byte) (netip.Addr, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return netip.Addr{}, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '{' {
		var payload struct {
			IP *string `json:"ip"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return netip.Addr{}, fmt.Errorf("invalid JSON response: %w", err)
		}
		if payload.IP == nil {
			return netip.Addr{}, errUnrecognizedBody
		}
		addr, err := netip.ParseAddr(*payload.IP)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("invalid IP %q in JSON response: %w", *payload.IP, err)
		}
		return addr.Unmap(), nil
	}

	addr, err := netip.ParseAddr(string(trimmed))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", errUnrecognizedBody, truncate(string(trimmed), 64))
	}
	return addr.Unmap(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
