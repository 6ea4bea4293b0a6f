// Package drand talks to a drand HTTP relay and converts between wall-clock time and beacon rounds.
package drand

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Info describes a beacon chain.
type Info struct {
	PublicKey   string `json:"public_key"`
	Period      int64  `json:"period"`
	GenesisTime int64  `json:"genesis_time"`
	Hash        string `json:"hash"`
	SchemeID    string `json:"schemeID"`
}

// Beacon is one published pulse.
type Beacon struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"`
	Signature  string `json:"signature"`
}

type Client struct {
	baseURL    string
	chainHash  string
	httpClient *http.Client
	logger     *zap.Logger

	mu   sync.Mutex
	info *Info
}

func NewClient(baseURL, chainHash string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		chainHash:  chainHash,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.chainHash, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "drand %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("drand %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(err, "decode drand %s", path)
	}
	return nil
}

// Latest returns the most recent pulse.
func (c *Client) Latest(ctx context.Context) (Beacon, error) {
	var b Beacon
	if err := c.get(ctx, "public/latest", &b); err != nil {
		return Beacon{}, err
	}
	return b, nil
}

// Info returns the chain parameters. They never change and are fetched once.
func (c *Client) Info(ctx context.Context) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil {
		return *c.info, nil
	}
	var info Info
	if err := c.get(ctx, "info", &info); err != nil {
		return Info{}, err
	}
	if info.Period <= 0 {
		return Info{}, errors.Errorf("drand info: bad period %d", info.Period)
	}
	c.info = &info
	c.logger.Info("drand chain info loaded", zap.Int64("genesis", info.GenesisTime), zap.Int64("period", info.Period))
	return info, nil
}

// RoundAt returns the round published at t: floor((t - genesis) / period) + 1, never below 1.
func RoundAt(info Info, t time.Time) uint64 {
	elapsed := t.Unix() - info.GenesisTime
	if elapsed < 0 || info.Period <= 0 {
		return 1
	}
	return uint64(elapsed/info.Period) + 1
}

// TimeOfRound returns when round is published.
func TimeOfRound(info Info, round uint64) time.Time {
	if round <= 1 {
		return time.Unix(info.GenesisTime, 0).UTC()
	}
	return time.Unix(info.GenesisTime+int64(round-1)*info.Period, 0).UTC()
}

func (c *Client) GetRoundAtTime(ctx context.Context, t time.Time) (uint64, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return 0, err
	}
	return RoundAt(info, t), nil
}

func (c *Client) GetTimeOfRound(ctx context.Context, round uint64) (time.Time, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return TimeOfRound(info, round), nil
}
