package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"yap-client/internal/config"
	"yap-client/internal/utils"
)

const requestIDHeader = "X-Request-Id"

// Client talks to the feed API. Every call returns either its result or an
// *utils.AppError telling transport failures, server errors and local
// validation apart. Mutating calls are never retried.
type Client struct {
	cfg     *config.APIConfig
	http    *http.Client
	jar     http.CookieJar
	metrics *utils.MetricsCollector
}

// NewClient builds a client with its own cookie jar, so each Client is one
// browser-like session. metrics may be nil.
func NewClient(cfg *config.APIConfig, metrics *utils.MetricsCollector) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultAPIConfig()
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid API base URL")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}
	if metrics == nil {
		metrics = utils.NewMetricsCollector()
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Jar:     jar,
		},
		jar:     jar,
		metrics: metrics,
	}, nil
}

func (c *Client) Metrics() *utils.MetricsCollector {
	return c.metrics
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do issues one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body interface{}, out interface{}) (err error) {
	endpoint := c.cfg.Endpoint(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return utils.NewAppError(utils.KindUnexpected, utils.ErrInvalidInput, "failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return utils.NewAppError(utils.KindUnexpected, utils.ErrInvalidInput, "failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(op, start, err)
	}()

	log := utils.Log.WithFields(logrus.Fields{
		"op":         op,
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed before a response arrived")
		return utils.NewTransportError(method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.NewTransportError(method+" "+path, err)
	}

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		message := eb.Message
		if message == "" {
			message = eb.Error
		}
		log.WithFields(logrus.Fields{"status": resp.StatusCode, "message": message}).Info("server rejected request")
		return utils.NewServerError(resp.StatusCode, message)
	}

	log.WithField("status", resp.StatusCode).Debug("request done")

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return utils.NewDecodeError(op, err)
	}
	return nil
}
