package uploads

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3Store keeps uploads in an S3 bucket, keyed by upload name.
type S3Store struct {
	bucket   string
	uploader *s3manager.Uploader
	svc      *s3.S3
}

func NewS3Store(bucket string) (*S3Store, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-west-1"
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create aws session")
	}
	return &S3Store{
		bucket:   bucket,
		uploader: s3manager.NewUploader(sess),
		svc:      s3.New(sess),
	}, nil
}

func (s *S3Store) Save(ctx context.Context, name string, contentType string, r io.Reader) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        io.LimitReader(r, maxFileSizeMB<<20),
		ContentType: aws.String(contentType),
	})
	return errors.Wrapf(err, "failed to upload %s to s3", name)
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	return errors.Wrapf(err, "failed to delete %s from s3", name)
}
