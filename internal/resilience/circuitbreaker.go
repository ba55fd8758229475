// Package resilience は外部サービス呼び出しを保護するサーキットブレーカーを提供する。
package resilience

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen はブレーカーが開いているため呼び出しを行わなかったことを表す。
var ErrOpen = gobreaker.ErrOpenState

// Config はサーキットブレーカーの設定。
type Config struct {
	Name             string
	MaxRequests      uint32        // half-open状態で許可する試行回数
	Interval         time.Duration // closed状態で失敗カウントをリセットする周期
	Timeout          time.Duration // open状態からhalf-openへ移るまでの待ち時間
	FailureThreshold float64       // 開放する失敗率
	MinRequests      uint32        // 失敗率を評価する最小リクエスト数
}

// DefaultConfig は外部HTTP APIの既定設定を返す。
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// NewsletterConfig はニュースレター配信API向けの設定を返す。
// 登録はユーザー操作の応答待ちになるため早めに開放する。
func NewsletterConfig() Config {
	return Config{
		Name:             "beehiiv",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      3,
	}
}

// WebhookConfig はSlack通知向けの設定を返す。
func WebhookConfig() Config {
	return DefaultConfig("slack-webhook")
}

// CircuitBreaker はgobreakerのラッパー。
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New は設定からCircuitBreakerを生成する。状態遷移はWARNでログに残す。
func New(cfg Config, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Do はfnをブレーカー経由で実行する。開放中はfnを呼ばずにErrOpenを返す。
func (cb *CircuitBreaker) Do(fn func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// Name はブレーカー名を返す。
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen はブレーカーが開いているかを返す。
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
