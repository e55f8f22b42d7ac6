package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/buildtimes/pkg/config"
	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Reader = (*s3Reader)(nil)

type s3Reader struct {
	log    logrus.FieldLogger
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Reader creates a Reader over bucket/prefix of S3-compatible storage.
func NewS3Reader(log logrus.FieldLogger, cfg *config.S3Config) Reader {
	return &s3Reader{
		log:    log.WithField("component", "s3-reader"),
		client: NewS3Client(cfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

func (r *s3Reader) Location() string {
	return "s3://" + path.Join(r.bucket, r.prefix)
}

// ListDirs lists common prefixes one level below dir.
func (r *s3Reader) ListDirs(ctx context.Context, dir string) ([]string, error) {
	prefix := dirPrefix(r.prefix, dir)

	var names []string

	err := r.listPages(ctx, prefix, func(page *s3.ListObjectsV2Output) {
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				names = append(names, path.Base(strings.TrimRight(*cp.Prefix, "/")))
			}
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

// ListFiles lists object keys directly below dir.
func (r *s3Reader) ListFiles(ctx context.Context, dir string) ([]string, error) {
	prefix := dirPrefix(r.prefix, dir)

	var names []string

	err := r.listPages(ctx, prefix, func(page *s3.ListObjectsV2Output) {
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			name := strings.TrimPrefix(*obj.Key, prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}

			names = append(names, name)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

func (r *s3Reader) listPages(
	ctx context.Context,
	prefix string,
	fn func(page *s3.ListObjectsV2Output),
) error {
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(r.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing s3://%s/%s: %w", r.bucket, prefix, err)
		}

		fn(page)
	}

	return nil
}

// ReadFile fetches a single object.
func (r *s3Reader) ReadFile(ctx context.Context, name string) ([]byte, error) {
	key := objectKey(r.prefix, name)

	r.log.WithField("key", key).Debug("Fetching object")

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("getting object %q: %w", key, fs.ErrNotExist)
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

// objectKey joins the reader prefix and a relative name into an S3 key.
func objectKey(prefix, name string) string {
	name = strings.Trim(name, "/")

	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "/" + name
	}
}

// dirPrefix returns the listing prefix for dir, always ending in "/"
// unless it addresses the bucket root.
func dirPrefix(prefix, dir string) string {
	key := objectKey(prefix, dir)
	if key == "" {
		return ""
	}

	return key + "/"
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	// Some S3-compatible implementations return a generic error with
	// "NoSuchKey" in the message rather than the typed error.
	return strings.Contains(err.Error(), "NoSuchKey")
}

// NewS3Client builds an S3 client from the given settings. Static
// credentials are used when both key and secret are set; otherwise
// requests are sent unsigned.
func NewS3Client(cfg *config.S3Config) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = config.DefaultS3Region
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
