// Package asset はストーリーのサムネイル画像と朗読音声をオブジェクトストレージへ保存する。
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// バケット名
const (
	BucketImages = "story-images"
	BucketAudio  = "story-audio"
)

// cacheControl はアップロードしたオブジェクトに付与するCache-Control値。
const cacheControl = "max-age=3600"

var (
	// ErrUnknownBucket は許可されていないバケットを指定したことを表す。
	ErrUnknownBucket = errors.New("不明なバケットです")
	// ErrContentType はバケットに対してファイル形式が合わないことを表す。
	ErrContentType = errors.New("バケットに保存できないファイル形式です")
)

// Store はアセットの保存先を抽象化する。
type Store interface {
	// Upload はオブジェクトを保存し、公開URLを返す。同名オブジェクトは上書きする。
	Upload(ctx context.Context, bucket, name, contentType string, r io.Reader) (string, error)
}

// bucketTypes はバケットごとに許可するMIMEタイプの大分類。
var bucketTypes = map[string]string{
	BucketImages: "image/",
	BucketAudio:  "audio/",
}

// ValidateUpload はバケット名とContent-Typeの組み合わせを検証する。
func ValidateUpload(bucket, contentType string) error {
	prefix, ok := bucketTypes[bucket]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, prefix) {
		return fmt.Errorf("%w: %s に %q は保存できません", ErrContentType, bucket, contentType)
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName はアップロード時刻のミリ秒とファイル名からオブジェクト名を組み立てる。
// ファイル名はディレクトリ部分を除き、英数字と . _ - 以外を "-" に置き換える。
func ObjectName(now time.Time, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "file"
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + base
}

// Uploader はファイル検証と命名を行ってからStoreへ保存する。
type Uploader struct {
	store Store
	now   func() time.Time
}

// NewUploader はUploaderを生成する。
func NewUploader(store Store) *Uploader {
	return &Uploader{store: store, now: time.Now}
}

// Upload はファイルを検証してバケットへ保存し、公開URLを返す。
func (u *Uploader) Upload(ctx context.Context, bucket, filename, contentType string, r io.Reader) (string, error) {
	if err := ValidateUpload(bucket, contentType); err != nil {
		return "", err
	}
	name := ObjectName(u.now(), filename)
	url, err := u.store.Upload(ctx, bucket, name, contentType, r)
	if err != nil {
		return "", fmt.Errorf("アセットの保存に失敗しました (%s/%s): %w", bucket, name, err)
	}
	return url, nil
}
