// Package artifact reads and writes CLI artifacts (replay scripts, bench
// reports) on the local filesystem or in S3.
//
// A location is either a path or an s3://bucket/key URI:
//
//	store := artifact.New(artifact.OptionsFromEnv())
//	rc, err := store.Open(ctx, "s3://ci-artifacts/scripts/add_remove.yaml")
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Location names an artifact.
type Location struct {
	Bucket string // Set for S3 locations
	Key    string
	Path   string // Set for local files
}

// Parse parses a path or an s3://bucket/key URI.
func Parse(s string) (Location, error) {
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		if s == "" {
			return Location{}, fmt.Errorf("artifact: empty location")
		}
		return Location{Path: s}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("artifact: %q: want s3://bucket/key", s)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// IsS3 reports whether l is in S3.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Options configures the S3 client.
type Options struct {
	// Region is the AWS region. Default: us-east-1.
	Region string

	// Endpoint overrides the S3 endpoint, e.g. for MinIO. Path-style
	// addressing is used when set.
	Endpoint string

	// Credentials signs requests. Default: anonymous.
	Credentials aws.CredentialsProvider

	// HTTPClient sends the requests. Default: http.DefaultClient.
	HTTPClient *http.Client
}

// OptionsFromEnv reads AWS_REGION, AWS_ENDPOINT_URL_S3 (or
// AWS_ENDPOINT_URL) and the static credential variables.
func OptionsFromEnv() Options {
	opts := Options{
		Region:   os.Getenv("AWS_REGION"),
		Endpoint: os.Getenv("AWS_ENDPOINT_URL_S3"),
	}
	if opts.Endpoint == "" {
		opts.Endpoint = os.Getenv("AWS_ENDPOINT_URL")
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		opts.Credentials = StaticCredentials(id, os.Getenv("AWS_SECRET_ACCESS_KEY"), os.Getenv("AWS_SESSION_TOKEN"))
	}
	return opts
}

// StaticCredentials returns a provider for fixed keys.
func StaticCredentials(id, secret, session string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    session,
			Source:          "domafic",
		}, nil
	})
}

// Store opens and writes artifacts. The S3 client is created on first use.
type Store struct {
	opts Options

	once   sync.Once
	client *s3.Client
}

// New creates a Store.
func New(opts Options) *Store {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Credentials == nil {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	return &Store{opts: opts}
}

func (s *Store) s3() *s3.Client {
	s.once.Do(func() {
		o := s3.Options{
			Region:      s.opts.Region,
			Credentials: s.opts.Credentials,
			HTTPClient:  s.opts.HTTPClient,
		}
		if s.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.Endpoint)
			o.UsePathStyle = true
		}
		s.client = s3.New(o)
	})
	return s.client
}

// Open opens the artifact at location.
func (s *Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := Parse(location)
	if err != nil {
		return nil, err
	}
	if !loc.IsS3() {
		return os.Open(loc.Path)
	}

	out, err := s.s3().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: get %s: %w", loc, err)
	}
	return out.Body, nil
}

// Write stores data at location, replacing any existing artifact.
func (s *Store) Write(ctx context.Context, location string, data []byte, contentType string) error {
	loc, err := Parse(location)
	if err != nil {
		return err
	}
	if !loc.IsS3() {
		return os.WriteFile(loc.Path, data, 0o644)
	}

	_, err = s.s3().PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("artifact: put %s: %w", loc, err)
	}
	return nil
}
