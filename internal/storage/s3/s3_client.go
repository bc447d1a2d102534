package s3

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"customsdesk/internal/config"
	"customsdesk/internal/port"
)

// defaultPresignExpiry applies when a caller passes a non-positive expiry.
const defaultPresignExpiry = 15 * time.Minute

type documentBucket struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
}

// NewS3Client creates an S3-backed ObjectStorage. A custom endpoint switches
// to path-style addressing for MinIO and LocalStack.
func NewS3Client(cfg *config.S3Config) (port.ObjectStorage, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(static))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config for document bucket %s: %w", cfg.Bucket, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &documentBucket{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = 2
		}),
	}, nil
}

func (b *documentBucket) Upload(ctx context.Context, in port.UploadInput) (*port.UploadOutput, error) {
	put := &s3.PutObjectInput{
		Bucket:      aws.String(in.Bucket),
		Key:         aws.String(in.Key),
		Body:        in.Body,
		ContentType: aws.String(in.ContentType),
		Metadata:    in.Metadata,
	}
	if in.Size > 0 {
		put.ContentLength = aws.Int64(in.Size)
	}

	out, err := b.uploader.Upload(ctx, put)
	if err != nil {
		return nil, fmt.Errorf("s3 put %s/%s: %w", in.Bucket, in.Key, err)
	}
	return &port.UploadOutput{Location: out.Location, ETag: aws.ToString(out.ETag)}, nil
}

func (b *documentBucket) Delete(ctx context.Context, bucket, key string) error {
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (b *documentBucket) GetPresignedURL(ctx context.Context, in port.PresignInput) (string, error) {
	expiry := time.Duration(in.ExpirySeconds) * time.Second
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}

	get := &s3.GetObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
	}
	if in.DownloadName != "" {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": in.DownloadName})
		get.ResponseContentDisposition = aws.String(disposition)
	}

	req, err := b.presigner.PresignGetObject(ctx, get, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", in.Key, err)
	}
	return req.URL, nil
}
