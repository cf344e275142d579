package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/speleodb/speleodb/pkg/block"
	"github.com/speleodb/speleodb/pkg/logging"
)

const BlockstoreType = "s3"

// Adapter stores artifacts in a single S3 (or S3-compatible) bucket.
type Adapter struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
}

func NewAdapter(client *s3.Client, bucket string) *Adapter {
	return &Adapter{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
	}
}

func (a *Adapter) log(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx)
}

func (a *Adapter) Put(ctx context.Context, key string, reader io.Reader) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		a.log(ctx).WithError(err).
			WithField(logging.StorageKeyFieldKey, key).
			Error("failed to put S3 object")
	}
	return err
}

func (a *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if isErrNotFound(err) {
		return nil, block.ErrDataNotFound
	}
	if err != nil {
		a.log(ctx).WithError(err).
			WithField(logging.StorageKeyFieldKey, key).
			Error("failed to get S3 object")
		return nil, err
	}
	return out.Body, nil
}

func (a *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if isErrNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) GetPreSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := a.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		a.log(ctx).WithError(err).
			WithField(logging.StorageKeyFieldKey, key).
			Error("could not pre-sign request")
		return "", fmt.Errorf("%w: %s", block.ErrSigningFailed, err)
	}
	return req.URL, nil
}

func (a *Adapter) BlockstoreType() string {
	return BlockstoreType
}

func isErrNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
