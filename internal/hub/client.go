// Package hub implements the PubSubHubbub subscription client.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

// ErrHubRejected is returned when the hub answers a subscription request
// with a non-success status. Rejections are not retried; the hub's async
// verification would fail anyway.
var ErrHubRejected = errors.New("hub rejected request")

// Mode is the hub.mode form value.
type Mode string

// Modes supported by the hub protocol.
const (
	ModeSubscribe   Mode = "subscribe"
	ModeUnsubscribe Mode = "unsubscribe"
)

const (
	topicTemplate  = "https://www.youtube.com/xml/feeds/videos.xml?channel_id=%s"
	retryBaseDelay = time.Second
	retryMaxDelay  = time.Minute
)

// HTTPClient is the subset of http.Client the hub client needs. It exists
// so tests can substitute a mock transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues subscribe/unsubscribe requests against a PubSubHubbub hub.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Client struct {
	http         HTTPClient
	hubURL       string
	callbackURL  string
	leaseSeconds int
}

// NewClient creates a hub client. The callback URL is fixed per deployment.
func NewClient(httpClient HTTPClient, hubURL, callbackURL string, leaseSeconds int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:         httpClient,
		hubURL:       hubURL,
		callbackURL:  callbackURL,
		leaseSeconds: leaseSeconds,
	}
}

// TopicURL derives the hub topic for a channel id.
func TopicURL(channelID string) string {
	return fmt.Sprintf(topicTemplate, channelID)
}

// ChannelIDFromTopic extracts the channel id back out of a topic URL.
func ChannelIDFromTopic(topic string) (string, error) {
	u, err := url.Parse(topic)
	if err != nil {
		return "", fmt.Errorf("parse topic URL: %w", err)
	}
	id := u.Query().Get("channel_id")
	if id == "" {
		return "", fmt.Errorf("topic URL missing channel_id: %s", topic)
	}
	return id, nil
}

// Subscribe requests a push subscription for the channel's upload feed.
// Transient failures are retried with capped backoff until ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, channelID string) error {
	return c.request(ctx, ModeSubscribe, channelID)
}

// Unsubscribe requests removal of the channel's push subscription, with the
// same retry policy as Subscribe.
func (c *Client) Unsubscribe(ctx context.Context, channelID string) error {
	return c.request(ctx, ModeUnsubscribe, channelID)
}

func (c *Client) request(ctx context.Context, mode Mode, channelID string) error {
	form := url.Values{}
	form.Set("hub.callback", c.callbackURL)
	form.Set("hub.topic", TopicURL(channelID))
	form.Set("hub.verify", "async")
	form.Set("hub.mode", string(mode))
	form.Set("hub.lease_seconds", strconv.Itoa(c.leaseSeconds))
	encoded := form.Encode()

	delay := retryBaseDelay
	for {
		resp, err := c.post(ctx, encoded)
		if err == nil {
			return c.handleResponse(resp, mode, channelID)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Log.Warn("hub request failed, retrying",
			zap.Error(err),
			zap.String("mode", string(mode)),
			zap.String("channel_id", channelID),
		)

		if err := sleep(ctx, jitter(delay)); err != nil {
			return err
		}
		if delay *= 2; delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

func (c *Client) post(ctx context.Context, form string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hubURL, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.http.Do(req)
}

func (c *Client) handleResponse(resp *http.Response, mode Mode, channelID string) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusNoContent, http.StatusOK:
		logger.Log.Info("hub accepted request",
			zap.String("mode", string(mode)),
			zap.String("channel_id", channelID),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil
	default:
		logger.Log.Warn("hub rejected request",
			zap.String("mode", string(mode)),
			zap.String("channel_id", channelID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(body)),
		)
		return fmt.Errorf("%w: status code %d - %s", ErrHubRejected, resp.StatusCode, string(body))
	}
}

func jitter(d time.Duration) time.Duration {
	half := int64(d) / 2
	return time.Duration(half + rand.Int63n(int64(d)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
