package blobsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Stdio is the reference naming stdin for reads and stdout for writes.
const Stdio = "-"

var (
	// ErrTooLarge is returned when a blob exceeds the size limit.
	ErrTooLarge = errors.New("blobsource: blob too large")

	// ErrNoS3 is returned for s3:// references when no S3 client is set.
	ErrNoS3 = errors.New("blobsource: s3 not configured")
)

// ObjectAPI is the subset of *s3.Client used by Source.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Source reads and writes blobs named by a reference:
//
//	-                 stdin (read) or stdout (write)
//	s3://bucket/key   an S3 object
//	anything else     a local file path
type Source struct {
	S3     ObjectAPI
	Stdin  io.Reader
	Stdout io.Writer

	// MaxSize bounds Read. 0 means no limit.
	MaxSize int64
}

// New creates a Source on the process stdio with the given S3 client,
// which may be nil.
func New(client ObjectAPI, maxSize int64) *Source {
	return &Source{
		S3:      client,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		MaxSize: maxSize,
	}
}

// ParseS3 splits "s3://bucket/key". ok is false for other references.
func ParseS3(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open returns a reader for ref. The caller closes it.
func (s *Source) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if ref == Stdio {
		return io.NopCloser(s.Stdin), nil
	}
	if strings.HasPrefix(ref, "s3://") {
		bucket, key, ok := ParseS3(ref)
		if !ok {
			return nil, fmt.Errorf("blobsource: invalid s3 reference %q", ref)
		}
		if s.S3 == nil {
			return nil, ErrNoS3
		}
		out, err := s.S3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("s3 get %s failed: %w", ref, err)
		}
		return out.Body, nil
	}
	return os.Open(ref)
}

// Read returns the whole blob named by ref, failing with ErrTooLarge past
// MaxSize.
func (s *Source) Read(ctx context.Context, ref string) ([]byte, error) {
	rc, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if s.MaxSize <= 0 {
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(io.LimitReader(rc, s.MaxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.MaxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Write stores data under ref.
func (s *Source) Write(ctx context.Context, ref string, data []byte) error {
	if ref == Stdio {
		_, err := s.Stdout.Write(data)
		return err
	}
	if strings.HasPrefix(ref, "s3://") {
		bucket, key, ok := ParseS3(ref)
		if !ok {
			return fmt.Errorf("blobsource: invalid s3 reference %q", ref)
		}
		if s.S3 == nil {
			return ErrNoS3
		}
		_, err := s.S3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/octet-stream"),
		})
		if err != nil {
			return fmt.Errorf("s3 put %s failed: %w", ref, err)
		}
		return nil
	}
	return os.WriteFile(ref, data, 0644)
}
