package netio

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const (
	defaultPath     = "/netio.json"
	defaultTimeout  = 5 * time.Second
	defaultOutputID = 1
)

var ErrOutputNotFound = errors.New("netio: output not found")

// Status is the subset of the PowerBOX JSON API the sampler needs.
type Status struct {
	Outputs []Output `json:"Outputs"`
}

type Output struct {
	ID     int     `json:"ID"`
	Name   string  `json:"Name"`
	State  int     `json:"State"`
	Load   float64 `json:"Load"`   // watts
	Energy float64 `json:"Energy"` // cumulative Wh
}

type Reading struct {
	OutputID  int
	Name      string
	LoadWatts float64
	EnergyWh  float64
	At        time.Time
}

type Config struct {
	Endpoint string
	OutputID int
	Timeout  time.Duration
	Logger   logger.Logger
}

type Client struct {
	url      string
	outputID int
	client   *http.Client
	logger   logger.Logger
}

func NewClient(cfg Config) (*Client, error) {
	u, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.OutputID <= 0 {
		cfg.OutputID = defaultOutputID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		url:      u,
		outputID: cfg.OutputID,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger.OrNoop(cfg.Logger),
	}, nil
}

func (c *Client) URL() string {
	return c.url
}

// Read polls the meter once and returns the configured output.
func (c *Client) Read(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Reading{}, errors.Wrap(err, "netio: new request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Reading{}, errors.Wrapf(err, "netio: get %s", c.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Reading{}, errors.Errorf("netio: get %s: status %d", c.url, resp.StatusCode)
	}
	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return Reading{}, errors.Wrap(err, "netio: read body")
	}
	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return Reading{}, errors.Wrap(err, "netio: decode status")
	}
	for _, o := range status.Outputs {
		if o.ID == c.outputID {
			return Reading{
				OutputID:  o.ID,
				Name:      o.Name,
				LoadWatts: o.Load,
				EnergyWh:  o.Energy,
				At:        time.Now(),
			}, nil
		}
	}
	return Reading{}, errors.Wrapf(ErrOutputNotFound, "id=%d", c.outputID)
}

func normalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("netio: empty endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "netio: parse endpoint %q", endpoint)
	}
	if u.Host == "" {
		return "", errors.Errorf("netio: endpoint %q has no host", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultPath
	}
	return u.String(), nil
}
