package importer

import (
	"fmt"
	"net/http"
	"time"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop はインポート元の停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は上記以外のステータス。
	FetchResultUnknown
)

// String はメトリクスのラベルに使う名前を返す。
func (r FetchResult) String() string {
	switch r {
	case FetchResultOK:
		return "ok"
	case FetchResultNotModified:
		return "not_modified"
	case FetchResultStop:
		return "stopped"
	case FetchResultBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

const (
	initialBackoff        = 30 * time.Minute
	maxBackoff            = 12 * time.Hour
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == http.StatusOK:
		return FetchResultOK
	case statusCode == http.StatusNotModified:
		return FetchResultNotModified
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone,
		statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return FetchResultStop
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づく待ち時間を返す。
// 初回30分から2倍ずつ増やし、12時間で頭打ちにする。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// applyStop はインポート元を停止状態にする。再開は管理画面から行う。
func applyStop(src *model.ImportSource, reason string) {
	src.FetchStatus = model.FetchStatusStopped
	src.ErrorMessage = reason
}

// applyBackoff は連続エラー回数を増やし、次回フェッチを指数的に先送りする。
func applyBackoff(src *model.ImportSource, reason string, now time.Time) {
	src.ConsecutiveErrors++
	src.ErrorMessage = reason
	src.NextFetchAt = now.Add(CalculateBackoff(src.ConsecutiveErrors - 1))
}

// applySuccess はエラー状態をリセットし、次のcron実行で再び対象になるようにする。
func applySuccess(src *model.ImportSource, now time.Time) {
	src.ConsecutiveErrors = 0
	src.ErrorMessage = ""
	src.NextFetchAt = now
}

// applyParseFailure はパース失敗を数え、閾値に達したらインポート元を停止する。
// 閾値未満の間はバックオフせず次のcron実行で再試行する。
func applyParseFailure(src *model.ImportSource, reason string, now time.Time) {
	src.ConsecutiveErrors++
	src.ErrorMessage = fmt.Sprintf("パース失敗 (%d回連続): %s", src.ConsecutiveErrors, reason)
	src.NextFetchAt = now
	if src.ConsecutiveErrors >= parseFailureThreshold {
		applyStop(src, fmt.Sprintf("パース失敗が%d回連続したため取り込みを停止しました: %s", src.ConsecutiveErrors, reason))
	}
}
