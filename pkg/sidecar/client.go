package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// Client talks to a Substrate API Sidecar instance, which decodes chain data with the node's metadata.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(c *Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause"`
}

// BalanceInfo returns the free, reserved and frozen balance of an account.
func (c *Client) BalanceInfo(ctx context.Context, address string) (*BalanceInfo, error) {
	var info BalanceInfo
	if err := c.get(ctx, "/accounts/"+url.PathEscape(address)+"/balance-info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Block returns a block with its extrinsics and events. id is a block number or hash.
func (c *Client) Block(ctx context.Context, id string) (*Block, error) {
	var block Block
	if err := c.get(ctx, "/blocks/"+url.PathEscape(id), nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	return c.Block(ctx, fmt.Sprintf("%d", number))
}

func (c *Client) FinalizedHead(ctx context.Context) (*Block, error) {
	var block Block
	if err := c.get(ctx, "/blocks/head", url.Values{"finalized": []string{"true"}}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// StorageItem reads a decoded storage value. keys are the map keys of the item, at is an optional block hash or number.
func (c *Client) StorageItem(ctx context.Context, pallet, item string, keys []string, at string) (*StorageItem, error) {
	query := url.Values{}
	for _, k := range keys {
		query.Add("keys[]", k)
	}
	if at != "" {
		query.Set("at", at)
	}
	var storage StorageItem
	path := fmt.Sprintf("/pallets/%s/storage/%s", url.PathEscape(pallet), url.PathEscape(item))
	if err := c.get(ctx, path, query, &storage); err != nil {
		return nil, err
	}
	return &storage, nil
}

// RuntimeMetadata returns the runtime metadata. at is an optional block hash or number.
func (c *Client) RuntimeMetadata(ctx context.Context, at string) (*Metadata, error) {
	query := url.Values{}
	if at != "" {
		query.Set("at", at)
	}
	var raw rawMetadata
	if err := c.get(ctx, "/runtime/metadata", query, &raw); err != nil {
		return nil, err
	}
	return raw.parse()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "sidecar %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(core.ErrEntityNotFound, "sidecar %s", path)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			if apiErr.Cause != "" {
				return errors.Errorf("sidecar %s: %d %s: %s", path, resp.StatusCode, apiErr.Message, apiErr.Cause)
			}
			return errors.Errorf("sidecar %s: %d %s", path, resp.StatusCode, apiErr.Message)
		}
		return errors.Errorf("sidecar %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(err, "decode sidecar %s", path)
	}
	return nil
}
