package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sikuli-bot/src/failure"
	"sikuli-bot/src/logger"
)

// Notifier delivers a finished message somewhere people will read it.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ZulipNotifier posts stream messages through the Zulip REST API.
type ZulipNotifier struct {
	site       string
	email      string
	apiKey     string
	stream     string
	topic      string
	httpClient *http.Client
}

// NewZulipNotifier creates a notifier for <site>/api/v1/messages.
func NewZulipNotifier(site, email, apiKey, stream, topic string) *ZulipNotifier {
	return &ZulipNotifier{
		site:   strings.TrimRight(site, "/"),
		email:  email,
		apiKey: apiKey,
		stream: stream,
		topic:  topic,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type zulipResponse struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	ID     int64  `json:"id"`
}

// Preflighter is implemented by notifiers that can tell before a run
// whether they will be able to deliver.
type Preflighter interface {
	Preflight() error
}

// Preflight reports missing credentials.
func (z *ZulipNotifier) Preflight() error {
	if z.email == "" || z.apiKey == "" {
		return &failure.UserError{
			Message: "Zulip credentials missing",
			Hint:    "Export ZULIP_EMAIL and ZULIP_API_KEY, or set notify.enabled: false.",
			Err:     failure.ErrConfig,
		}
	}
	return nil
}

// Notify posts message to the configured stream and topic.
func (z *ZulipNotifier) Notify(ctx context.Context, message string) error {
	if err := z.Preflight(); err != nil {
		return err
	}
	form := url.Values{}
	form.Set("type", "stream")
	form.Set("to", z.stream)
	form.Set("topic", z.topic)
	form.Set("content", message)

	req, err := http.NewRequestWithContext(ctx, "POST", z.site+"/api/v1/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", failure.ErrNotifyFailed, err)
	}
	req.SetBasicAuth(z.email, z.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", failure.ErrNotifyFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var zr zulipResponse
	_ = json.Unmarshal(body, &zr)

	if resp.StatusCode != http.StatusOK || zr.Result != "success" {
		msg := zr.Msg
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("%w: Zulip API error %d: %s", failure.ErrNotifyFailed, resp.StatusCode, msg)
	}
	return nil
}

// LogNotifier writes messages to a logger instead of chat. It stands in
// for Zulip on dry runs and when notifications are disabled.
type LogNotifier struct {
	Logger logger.Logger
}

func (l *LogNotifier) Notify(ctx context.Context, message string) error {
	l.Logger.Info("Message not sent:\n%s", message)
	return nil
}
