// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package api implements the client side of the ledger API. Errors
// arriving over the wire are translated back into their domain
// equivalents, so callers can test them with errors.Is exactly as if
// the services were local.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"github.com/poolferry/poolferry/apiserver/params"
	"github.com/poolferry/poolferry/core/asset"
)

// Client talks to a single API server.
type Client struct {
	baseURL *url.URL
	client  *http.Client
}

// NewClient returns a client addressing the server at the given base
// URL, for example "http://localhost:17170".
func NewClient(serverURL string) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, errors.Annotate(err, "parsing server URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.NotValidf("server URL %q", serverURL)
	}
	return &Client{
		baseURL: parsed,
		client:  &http.Client{},
	}, nil
}

// Migrate upgrades the calling converter to a freshly provisioned
// instance and returns the server's account of the completed run.
func (c *Client) Migrate(ctx context.Context, caller asset.Address) (*params.MigrationResult, error) {
	var result params.MigrationResult
	err := c.call(ctx, "POST", "/migration", params.MigrationRequest{
		Caller: caller.String(),
	}, &result)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

// MigrateOld upgrades the nominated converter on behalf of caller.
// This is the path taken by operators retiring converters too old to
// request their own upgrade.
func (c *Client) MigrateOld(ctx context.Context, caller, oldConverter asset.Address, version string) (*params.MigrationResult, error) {
	var result params.MigrationResult
	err := c.call(ctx, "POST", "/migration", params.MigrationRequest{
		Caller:       caller.String(),
		OldConverter: oldConverter.String(),
		Version:      version,
	}, &result)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

// Converter returns the settings, reserves and holdings of the
// converter at the given address.
func (c *Client) Converter(ctx context.Context, address asset.Address) (*params.ConverterResult, error) {
	var result params.ConverterResult
	err := c.call(ctx, "GET", "/converter/"+address.String(), nil, &result)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

// TransferOwnership nominates newOwner as the next administrator of
// the converter. The nomination stands until accepted or replaced.
func (c *Client) TransferOwnership(ctx context.Context, caller, converter, newOwner asset.Address) error {
	return errors.Trace(c.call(ctx, "POST", "/converter/"+converter.String()+"/transfer-ownership",
		params.TransferOwnershipRequest{
			Caller:   caller.String(),
			NewOwner: newOwner.String(),
		}, nil))
}

// AcceptOwnership completes an ownership transfer previously offered
// to the caller.
func (c *Client) AcceptOwnership(ctx context.Context, caller, converter asset.Address) error {
	return errors.Trace(c.call(ctx, "POST", "/converter/"+converter.String()+"/accept-ownership",
		params.AcceptOwnershipRequest{
			Caller: caller.String(),
		}, nil))
}

// Withdraw sweeps amount of the given asset out of the guard at the
// given address and into destination.
func (c *Client) Withdraw(ctx context.Context, caller, guard, assetID, destination asset.Address, amount int64) error {
	return errors.Trace(c.call(ctx, "POST", "/guard/"+guard.String()+"/withdraw",
		params.WithdrawRequest{
			Caller:      caller.String(),
			Asset:       assetID.String(),
			Destination: destination.String(),
			Amount:      amount,
		}, nil))
}

func (c *Client) call(ctx context.Context, method, path string, body, into interface{}) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Trace(err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, payload)
	if err != nil {
		return errors.Trace(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Trace(decodeError(resp))
	}
	if into == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return errors.Trace(err)
	}
	return errors.Trace(json.NewDecoder(resp.Body).Decode(into))
}

func decodeError(resp *http.Response) error {
	var result params.ErrorResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Errorf("server returned status %d", resp.StatusCode)
	}
	if result.Error == nil {
		return errors.Errorf("server returned status %d without explanation", resp.StatusCode)
	}
	return params.TranslateWellKnownError(result.Error)
}

// Watcher streams migration milestones from the server.
type Watcher struct {
	conn *websocket.Conn
}

// Watch opens the milestone event stream.
func (c *Client) Watch(ctx context.Context) (*Watcher, error) {
	target := *c.baseURL
	switch target.Scheme {
	case "http":
		target.Scheme = "ws"
	case "https":
		target.Scheme = "wss"
	}
	target.Path = "/watch"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, errors.Annotate(err, "dialling event stream")
	}
	if err := readInitialError(conn); err != nil {
		conn.Close()
		return nil, errors.Trace(err)
	}
	return &Watcher{conn: conn}, nil
}

// Next blocks until a milestone arrives or the stream closes.
func (w *Watcher) Next() (params.MigrationEvent, error) {
	var event params.MigrationEvent
	if err := w.conn.ReadJSON(&event); err != nil {
		return params.MigrationEvent{}, errors.Trace(err)
	}
	return event, nil
}

// Close tears down the stream. Any blocked Next returns an error.
func (w *Watcher) Close() error {
	return w.conn.Close()
}

// The server reports the health of a new stream in its first message,
// before any events flow.
func readInitialError(conn *websocket.Conn) error {
	var result params.ErrorResult
	if err := conn.ReadJSON(&result); err != nil {
		return errors.Annotate(err, "reading initial stream response")
	}
	if result.Error != nil {
		return errors.Trace(params.TranslateWellKnownError(result.Error))
	}
	return nil
}
