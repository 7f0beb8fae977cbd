// Package client calls a remote detection service.
package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-detect/api"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/pkg/errors"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	RequestID  string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detection service returned %d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
}

// Client talks to the HTTP routes in package api.
type Client struct {
	*resty.Client
}

// New returns a client for the service at cfg.BaseURL.
func New(cfg config.ClientConfig) *Client {
	r := resty.New().
		SetLogger(logger.S()).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Accept", "application/json")

	return &Client{Client: r}
}

// Detect uploads an encoded image to the named detector.
//
// Arguments:
//   - ctx: Cancels the request.
//   - kind: The detector to route to.
//   - data: JPEG, PNG or WebP bytes.
//   - opts: Threshold overrides, forwarded as query parameters.
//
// Returns:
//   - *api.DetectResponse: The decoded response.
//   - error: A *StatusError for non-2xx answers, or a transport error.
func (c *Client) Detect(ctx context.Context, kind detector.Kind, data []byte, opts ...detector.Option) (*api.DetectResponse, error) {
	var result api.DetectResponse
	req := c.R().
		SetContext(ctx).
		SetHeader(api.HeaderRequestID, uuid.NewString()).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		SetResult(&result).
		SetError(&api.ErrorResponse{})

	o := detector.Apply(opts...)
	if o.SelectThreshold != nil {
		req.SetQueryParam(api.QueryThreshold, formatFloat(*o.SelectThreshold))
	}
	if o.NMSThreshold != nil {
		req.SetQueryParam(api.QueryNMSThreshold, formatFloat(*o.NMSThreshold))
	}

	resp, err := req.Post(api.PathDetect + string(kind))
	if err := check(resp, err); err != nil {
		return nil, errors.Wrapf(err, "detect with %s", kind)
	}
	return &result, nil
}

// Detectors lists the detectors the service has loaded.
func (c *Client) Detectors(ctx context.Context) ([]string, error) {
	var result api.DetectorsResponse
	resp, err := c.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&api.ErrorResponse{}).
		Get(api.PathDetectors)
	if err := check(resp, err); err != nil {
		return nil, errors.Wrap(err, "list detectors")
	}
	return result.Detectors, nil
}

// Health returns nil when the service answers its health check.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.R().SetContext(ctx).Get(api.PathHealth)
	return errors.Wrap(check(resp, err), "health")
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "couldn't connect with detection service")
	}
	if !resp.IsError() {
		return nil
	}

	se := &StatusError{
		StatusCode: resp.StatusCode(),
		RequestID:  resp.Header().Get(api.HeaderRequestID),
		Message:    resp.Status(),
	}
	if body, ok := resp.Error().(*api.ErrorResponse); ok && body.Error != "" {
		se.Message = body.Error
		if body.RequestID != "" {
			se.RequestID = body.RequestID
		}
	}
	return se
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
