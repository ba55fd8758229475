// Package newsletter はニュースレター登録を扱う。
// 配信はbeehiivに委ね、登録の記録と状態管理をこのサービスで行う。
package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/snoozies/dreamyhaven/internal/resilience"
)

// defaultBaseURL はbeehiiv APIのベースURL。
const defaultBaseURL = "https://api.beehiiv.com/v2"

// Subscriber は配信サービスへの購読登録インターフェース。
type Subscriber interface {
	// Subscribe はメールアドレスを購読者として登録し、配信サービス側の購読者IDを返す。
	Subscribe(ctx context.Context, email string) (string, error)
}

// BeehiivClient はbeehiiv Subscriptions APIのクライアント。
type BeehiivClient struct {
	httpClient    *http.Client
	logger        *slog.Logger
	breaker       *resilience.CircuitBreaker
	baseURL       string // テスト用に差し替え可能
	publicationID string
	apiKey        string
}

// NewBeehiivClient はBeehiivClientを生成する。
func NewBeehiivClient(httpClient *http.Client, publicationID, apiKey string, breaker *resilience.CircuitBreaker, logger *slog.Logger) *BeehiivClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeehiivClient{
		httpClient:    httpClient,
		logger:        logger,
		breaker:       breaker,
		baseURL:       defaultBaseURL,
		publicationID: publicationID,
		apiKey:        apiKey,
	}
}

type subscribeRequest struct {
	Email              string `json:"email"`
	ReactivateExisting bool   `json:"reactivate_existing"`
	SendWelcomeEmail   bool   `json:"send_welcome_email"`
	UTMSource          string `json:"utm_source"`
}

type subscribeResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// Subscribe はbeehiivに購読者を登録する。既に解約済みのアドレスは再開扱いにする。
func (c *BeehiivClient) Subscribe(ctx context.Context, email string) (string, error) {
	var id string
	call := func() error {
		var err error
		id, err = c.subscribe(ctx, email)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(call)
	} else {
		err = call()
	}
	if err != nil {
		c.logger.Error("beehiivへの購読登録に失敗しました", slog.String("error", err.Error()))
		return "", err
	}
	return id, nil
}

func (c *BeehiivClient) subscribe(ctx context.Context, email string) (string, error) {
	body, err := json.Marshal(subscribeRequest{
		Email:              email,
		ReactivateExisting: true,
		SendWelcomeEmail:   true,
		UTMSource:          "website",
	})
	if err != nil {
		return "", fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/publications/%s/subscriptions", strings.TrimRight(c.baseURL, "/"), c.publicationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("beehiiv APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("beehiiv APIがステータス%dを返しました: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out subscribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("beehiivレスポンスのパースに失敗しました: %w", err)
	}
	return out.Data.ID, nil
}

var _ Subscriber = (*BeehiivClient)(nil)
