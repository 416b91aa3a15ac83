package clusterproto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/dreamware/distmem/internal/wire"
)

// httpClient is shared by every Client so connections are pooled the same
// way the teacher's package-level httpClient was.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// Client sends wire.Envelope requests to one remote Director or Shard and
// decodes its reply payload.
type Client struct {
	// Addr is the remote's base address, e.g. "http://127.0.0.1:9001".
	Addr string
}

// NewClient returns a Client targeting addr.
func NewClient(addr string) *Client {
	return &Client{Addr: addr}
}

// Send posts env to the remote's /rpc endpoint and decodes the reply
// payload into out (which may be nil if the caller doesn't need the
// reply body, e.g. for a QUIT).
func (c *Client) Send(ctx context.Context, env wire.Envelope, out any) error {
	reqBody, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "clusterproto: marshal envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Addr+"/rpc", bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrap(err, "clusterproto: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "clusterproto: rpc to %s", c.Addr)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.Errorf("clusterproto: %s/rpc: http %d", c.Addr, resp.StatusCode)
	}

	var reply wire.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return errors.Wrap(err, "clusterproto: decode reply envelope")
	}
	if out == nil {
		return nil
	}
	return reply.Decode(out)
}

// PostJSON sends an arbitrary JSON body to a plain (non-envelope) path on
// the remote, for endpoints that aren't part of the tagged RPC surface.
// Nothing in this module calls it outside its tests. Kept as a thin
// free function, same shape as the teacher's internal/cluster.PostJSON.
func PostJSON(ctx context.Context, url string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "clusterproto: marshal body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrap(err, "clusterproto: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "clusterproto: do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("clusterproto: http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON issues a GET and decodes the JSON response, same shape as the
// teacher's internal/cluster.GetJSON.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "clusterproto: build request")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "clusterproto: do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("clusterproto: http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
