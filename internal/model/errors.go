// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, story, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeStoryNotFound    = "STORY_NOT_FOUND"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInvalidStory     = "INVALID_STORY"
	ErrCodeSlugTaken        = "SLUG_TAKEN"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidUpload    = "INVALID_UPLOAD"
	ErrCodeUploadFailed     = "UPLOAD_FAILED"
	ErrCodeInvalidForm      = "INVALID_FORM"
	ErrCodeSubscribeFailed  = "SUBSCRIBE_FAILED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeAdminOnly        = "ADMIN_ONLY"
	ErrCodeSourceNotFound   = "SOURCE_NOT_FOUND"
	ErrCodeFeedNotDetected  = "FEED_NOT_DETECTED"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeDuplicateSource  = "DUPLICATE_SOURCE"
	ErrCodeSourceNotStopped = "SOURCE_NOT_STOPPED"
	ErrCodePostNotFound     = "POST_NOT_FOUND"
	ErrCodeCSRFInvalid      = "CSRF_INVALID"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// FetchError はストーリーストアへの到達失敗、応答不正、クエリ拒否を表す。
// 空の結果とは区別され、呼び出し元はエラー状態として扱う。
type FetchError struct {
	Op  string // 失敗した操作名（例: "GetAllStories"）
	Err error
}

// NewFetchError はFetchErrorを生成する。
func NewFetchError(op string, err error) *FetchError {
	return &FetchError{Op: op, Err: err}
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: ストーリーストアの呼び出しに失敗しました: %v", e.Op, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError はストーリーの制約違反またはレコード形状の不一致を表す。
type ValidationError struct {
	Field     string
	Value     string // 問題のあった値（重複時のslugなど）
	Reason    string
	Duplicate bool // slugの一意制約違反
	Err       error
}

// NewValidationError はValidationErrorを生成する。
func NewValidationError(field, reason string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: err}
}

// NewDuplicateSlugError はslug重複のValidationErrorを生成する。
func NewDuplicateSlugError(slug string, err error) *ValidationError {
	return &ValidationError{
		Field:     "slug",
		Value:     slug,
		Reason:    fmt.Sprintf("slug %q is already in use", slug),
		Duplicate: true,
		Err:       err,
	}
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ストーリーの検証に失敗しました (%s): %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("ストーリーの検証に失敗しました (%s): %s", e.Field, e.Reason)
}

// Unwrap は原因エラーを返す。
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsFetchError はエラーチェーンにFetchErrorが含まれるかを判定する。
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsValidationError はエラーチェーンにValidationErrorが含まれるかを判定する。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewStoryNotFoundError はストーリー未検出エラーを生成する。
func NewStoryNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeStoryNotFound,
		Message:  fmt.Sprintf("We couldn't find the story %q.", slug),
		Category: "story",
		Action:   "Head back to the story library and pick another bedtime tale.",
	}
}

// NewStoreUnavailableError はストア障害時のエラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "Stories are temporarily unavailable.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewInvalidStoryError はストーリー入力の検証エラーを生成する。
func NewInvalidStoryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStory,
		Message:  fmt.Sprintf("The story could not be saved: %s", reason),
		Category: "validation",
		Action:   "Check the title and slug, then submit the story again.",
	}
}

// NewSlugTakenError はslug重複エラーを生成する。
func NewSlugTakenError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeSlugTaken,
		Message:  fmt.Sprintf("The slug %q is already used by another story.", slug),
		Category: "validation",
		Action:   "Choose a different slug or edit the existing story.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "The request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON request body.",
	}
}

// NewInvalidUploadError はアップロード内容の検証エラーを生成する。
func NewInvalidUploadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUpload,
		Message:  fmt.Sprintf("The file could not be accepted: %s", reason),
		Category: "validation",
		Action:   "Upload an image for thumbnails or an audio file for narrations.",
	}
}

// NewUploadFailedError はアセット保存の失敗エラーを生成する。
func NewUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  "The file could not be stored.",
		Category: "system",
		Action:   "Please try the upload again in a moment.",
	}
}

// NewInvalidFormError はフォーム入力の検証エラーを生成する。
func NewInvalidFormError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidForm,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "Please fill in all required fields and try again.",
	}
}

// NewSubscribeFailedError はニュースレター登録失敗エラーを生成する。
func NewSubscribeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSubscribeFailed,
		Message:  "We couldn't sign you up right now.",
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewAdminOnlyError は管理者以外のログイン試行エラーを生成する。
func NewAdminOnlyError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeAdminOnly,
		Message:  fmt.Sprintf("%s is not allowed to manage stories.", email),
		Category: "auth",
		Action:   "Sign in with an administrator account.",
	}
}

// NewSourceNotFoundError はインポート元未検出エラーを生成する。
func NewSourceNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("Import source %s was not found.", id),
		Category: "story",
		Action:   "Check the source ID.",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("No RSS/Atom feed was found at %s.", url),
		Category: "story",
		Action:   "Enter the feed URL directly or a page that links to its feed.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Enter a URL starting with http:// or https://.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "Access to the given URL is blocked by the security policy.",
		Category: "validation",
		Action:   "Use a publicly reachable website URL.",
	}
}

// NewFetchFailedError は外部URL取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("The URL could not be fetched: %s", reason),
		Category: "story",
		Action:   "Check the URL and try again later.",
	}
}

// NewDuplicateSourceError は登録済みインポート元の再登録エラーを生成する。
func NewDuplicateSourceError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSource,
		Message:  "This feed is already registered as an import source.",
		Category: "story",
		Action:   "Check the import source list.",
	}
}

// NewSourceNotStoppedError は停止中でないインポート元の再開エラーを生成する。
func NewSourceNotStoppedError() *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotStopped,
		Message:  "The import source is not stopped.",
		Category: "story",
		Action:   "Only stopped sources can be resumed.",
	}
}

// NewPostNotFoundError はブログ記事未検出エラーを生成する。
func NewPostNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("We couldn't find the article %q.", slug),
		Category: "story",
		Action:   "Head back to the blog and pick another article.",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "The form token is missing or expired.",
		Category: "auth",
		Action:   "Reload the page and submit again.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "The token does not allow this operation.",
		Category: "auth",
		Action:   "Issue a new token with the required scope.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Something went wrong on our side.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
