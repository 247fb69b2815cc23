package sheet

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source fetches export files dropped in an S3 bucket.
type S3Source struct {
	client *s3.Client
	bucket string
}

// NewS3Source creates an S3-backed file source.
func NewS3Source(ctx context.Context, bucket, region, profile string) (*S3Source, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Source{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// FetchCSV downloads an object and decodes it as a CSV grid, enforcing
// the same constraints as local files.
func (s *S3Source) FetchCSV(ctx context.Context, key string) (*Grid, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("heading s3://%s/%s: %w", s.bucket, key, err)
	}
	size := int64(0)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	if err := CheckConstraints(key, size); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	// Guard against objects that grew past the advertised length.
	grid, err := ReadCSV(io.LimitReader(out.Body, MaxFileSize+1))
	if err != nil {
		return nil, err
	}

	log.Printf("[Sheet] Fetched s3://%s/%s: %d rows", s.bucket, key, len(grid.Rows))
	return grid, nil
}
