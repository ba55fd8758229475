package asset

import (
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore はSupabase Storageのバケットへアセットを保存する。
type SupabaseStore struct {
	client *storage_go.Client
}

// NewSupabaseStore はSupabaseStoreを生成する。
// clientはsupabase.Client.Storageまたはstorage_go.NewClientで生成したものを渡す。
func NewSupabaseStore(client *storage_go.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// Upload はオブジェクトをupsertで保存し、公開URLを返す。
func (s *SupabaseStore) Upload(ctx context.Context, bucket, name, contentType string, r io.Reader) (string, error) {
	// storage-goはcontextを受け取らないため、送信前に中断を確認する
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cache := cacheControl
	upsert := true
	if _, err := s.client.UploadFile(bucket, name, r, storage_go.FileOptions{
		CacheControl: &cache,
		ContentType:  &contentType,
		Upsert:       &upsert,
	}); err != nil {
		return "", fmt.Errorf("Supabase Storageへのアップロードに失敗しました: %w", err)
	}

	return s.client.GetPublicUrl(bucket, name).SignedURL, nil
}

var _ Store = (*SupabaseStore)(nil)
