package factory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/speleodb/speleodb/pkg/block"
	"github.com/speleodb/speleodb/pkg/block/mem"
	"github.com/speleodb/speleodb/pkg/block/params"
	"github.com/speleodb/speleodb/pkg/block/s3"
	"github.com/speleodb/speleodb/pkg/logging"
)

// BuildBlockAdapter returns the configured blockstore adapter.
func BuildBlockAdapter(ctx context.Context, p params.Params) (block.Adapter, error) {
	logger := logging.Default().WithField("type", p.Type)
	switch p.Type {
	case mem.BlockstoreType, "":
		logger.Info("initialized blockstore adapter")
		return mem.New(ctx), nil
	case s3.BlockstoreType:
		return buildS3Adapter(ctx, logger, p.S3)
	default:
		return nil, fmt.Errorf("unknown blockstore type %q", p.Type)
	}
}

func buildS3Adapter(ctx context.Context, logger logging.Logger, p params.S3) (block.Adapter, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if p.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(p.Region))
	}
	if p.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.AccessKeyID, p.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if p.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.Endpoint)
		}
		o.UsePathStyle = p.ForcePathStyle
	})
	logger.WithField("bucket", p.Bucket).Info("initialized blockstore adapter")
	return s3.NewAdapter(client, p.Bucket), nil
}
