package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// S3Store keeps blobs as objects in one bucket. S3 has no directories, so
// EnsureDir is a no-op.
type S3Store struct {
	client   s3iface.S3API
	uploader *s3manager.Uploader
	bucket   string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	client := s3.New(sess)
	return &S3Store{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   cfg.Bucket,
	}, nil
}

func (s *S3Store) EnsureDir(_ context.Context, prefix string) error {
	_, err := CleanKey(prefix)
	return err
}

func (s *S3Store) Put(ctx context.Context, key string, content io.Reader, contentType string) (int64, error) {
	key, err := CleanKey(key)
	if err != nil {
		return 0, err
	}
	counter := &countingReader{r: content}
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   counter,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return 0, fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return counter.n, nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isS3NotFound(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isS3NotFound(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("s3 head %s: %w", key, err)
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) RemoveAll(ctx context.Context, prefix string) error {
	prefix, err := CleanKey(prefix)
	if err != nil {
		return err
	}

	var batchErr error
	var keyErrs []error
	err = s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + "/"),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		if len(page.Contents) == 0 {
			return true
		}
		ids := make([]*s3.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, &s3.ObjectIdentifier{Key: obj.Key})
		}
		var out *s3.DeleteObjectsOutput
		out, batchErr = s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if batchErr != nil {
			return false
		}
		// Quiet mode reports only the keys that failed.
		for _, e := range out.Errors {
			keyErrs = append(keyErrs, fmt.Errorf("%s: %s %s",
				aws.StringValue(e.Key), aws.StringValue(e.Code), aws.StringValue(e.Message)))
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("s3 list %s: %w", prefix, err)
	}
	if batchErr != nil {
		return fmt.Errorf("s3 delete %s: %w", prefix, batchErr)
	}
	if len(keyErrs) > 0 {
		return fmt.Errorf("s3 delete %s: %d objects left: %w", prefix, len(keyErrs), errors.Join(keyErrs...))
	}
	return nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
