package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter はS3互換ストレージへのPutObjectを抽象化する。*s3.Clientが満たす。
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options はS3互換ストレージ（Cloudflare R2を含む）への接続設定。
type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client は静的認証情報とカスタムエンドポイントでS3クライアントを生成する。
// R2はパススタイルのアドレッシングとregion "auto"を要求する。
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	}), nil
}

// S3Store はS3互換ストレージのバケットへアセットを保存する。
// 公開URLはpublicBaseURL/バケット/オブジェクト名で組み立てる。
type S3Store struct {
	client        ObjectPutter
	publicBaseURL string
}

// NewS3Store はS3Storeを生成する。
func NewS3Store(client ObjectPutter, publicBaseURL string) *S3Store {
	return &S3Store{
		client:        client,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Upload はオブジェクトを保存し、公開URLを返す。
func (s *S3Store) Upload(ctx context.Context, bucket, name, contentType string, r io.Reader) (string, error) {
	// SDKの署名にはシーク可能なボディが必要なため、一度メモリに読み込む
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("アップロード内容の読み込みに失敗しました: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		CacheControl:  aws.String(cacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("S3へのアップロードに失敗しました: %w", err)
	}

	return s.publicBaseURL + "/" + bucket + "/" + name, nil
}

var _ Store = (*S3Store)(nil)
