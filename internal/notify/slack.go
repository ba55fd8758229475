// Package notify はお問い合わせやストーリー提案の受付を運営チームへ通知する。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/resilience"
)

// Notifier は受付内容の通知インターフェース。
type Notifier interface {
	NotifyContact(ctx context.Context, msg *model.ContactMessage) error
	NotifySuggestion(ctx context.Context, s *model.StorySuggestion) error
}

// Block Kitの文字数上限
const (
	maxSectionTextLength = 3000
	maxFallbackLength    = 150
)

// SlackNotifier はSlack Incoming Webhookへ通知を送る。
// Webhookの制限（1秒1件）に合わせて送信間隔を調整する。
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
}

// NewSlackNotifier はSlackNotifierを生成する。
func NewSlackNotifier(webhookURL string, timeout time.Duration, breaker *resilience.CircuitBreaker) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		breaker:    breaker,
	}
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(text string) slackText {
	return slackText{Type: "mrkdwn", Text: text}
}

// NotifyContact はお問い合わせの受付を通知する。
func (n *SlackNotifier) NotifyContact(ctx context.Context, msg *model.ContactMessage) error {
	name := strings.TrimSpace(msg.FirstName + " " + msg.LastName)
	payload := slackPayload{
		Text: truncate(fmt.Sprintf("New contact message: %s", msg.Subject), maxFallbackLength),
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: "New contact message"}},
			{Type: "section", Fields: []slackText{
				mrkdwn("*From:*\n" + name),
				mrkdwn("*Email:*\n" + msg.Email),
				mrkdwn("*Subject:*\n" + msg.Subject),
			}},
			{Type: "section", Text: ptr(mrkdwn(truncate(msg.Message, maxSectionTextLength)))},
			{Type: "context", Elements: []slackText{mrkdwn("Received " + msg.CreatedAt.Format(time.RFC3339))}},
		},
	}
	return n.send(ctx, payload)
}

// NotifySuggestion はストーリー提案の受付を通知する。
func (n *SlackNotifier) NotifySuggestion(ctx context.Context, s *model.StorySuggestion) error {
	fields := []slackText{
		mrkdwn("*Parent:*\n" + s.ParentName),
		mrkdwn("*Email:*\n" + s.Email),
	}
	if s.ChildName != "" {
		fields = append(fields, mrkdwn("*Child:*\n"+s.ChildName))
	}
	if s.ChildAge != "" {
		fields = append(fields, mrkdwn("*Age:*\n"+s.ChildAge))
	}

	body := "*Idea:*\n" + s.StoryIdea
	for _, extra := range []struct{ label, value string }{
		{"Themes", s.Themes},
		{"Characters", s.Characters},
		{"Details", s.AdditionalDetails},
	} {
		if extra.value != "" {
			body += fmt.Sprintf("\n*%s:* %s", extra.label, extra.value)
		}
	}

	payload := slackPayload{
		Text: truncate("New story suggestion from "+s.ParentName, maxFallbackLength),
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: "New story suggestion"}},
			{Type: "section", Fields: fields},
			{Type: "section", Text: ptr(mrkdwn(truncate(body, maxSectionTextLength)))},
			{Type: "context", Elements: []slackText{mrkdwn("Received " + s.CreatedAt.Format(time.RFC3339))}},
		},
	}
	return n.send(ctx, payload)
}

// send はレート制限とサーキットブレーカーを通してWebhookへPOSTする。
func (n *SlackNotifier) send(ctx context.Context, payload slackPayload) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("Slack通知の送信待機が中断されました: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Slack通知のエンコードに失敗しました: %w", err)
	}

	post := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("Slackリクエストの作成に失敗しました: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("Slackへの送信に失敗しました: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("Slackがステータス%dを返しました: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return nil
	}

	if n.breaker == nil {
		return post()
	}
	return n.breaker.Do(post)
}

// truncate はrune数がmaxを超える場合に末尾を"..."で切り詰める。
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

func ptr[T any](v T) *T {
	return &v
}

// NopNotifier は何もしないNotifier。Webhook未設定時に使う。
type NopNotifier struct{}

// NotifyContact は何もしない。
func (NopNotifier) NotifyContact(context.Context, *model.ContactMessage) error { return nil }

// NotifySuggestion は何もしない。
func (NopNotifier) NotifySuggestion(context.Context, *model.StorySuggestion) error { return nil }

var (
	_ Notifier = (*SlackNotifier)(nil)
	_ Notifier = NopNotifier{}
)
