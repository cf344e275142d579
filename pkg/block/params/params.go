package params

// S3 holds connection parameters for the s3 blockstore adapter.
// Endpoint overrides the AWS endpoint for S3-compatible stores (minio etc.),
// which usually also require ForcePathStyle.
type S3 struct {
	Region          string
	Bucket          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// Params selects and configures a blockstore adapter.
type Params struct {
	Type string
	S3   S3
}
