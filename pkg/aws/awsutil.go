package aws

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	log "github.com/sirupsen/logrus"
)

// Client is an abstraction layer for interacting with AWS services.
type Client struct {
	s3 s3iface.S3API
}

// NewClient creates a new AWS client, expecting that the environment variables configure the settings.
// A non-empty region overrides the shared configuration.
func NewClient(region string) *Client {
	opts := session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}
	if region != "" {
		opts.Config.Region = aws.String(region)
	}
	sess := session.Must(session.NewSessionWithOptions(opts))
	return NewClientWithAPI(s3.New(sess))
}

// NewClientWithAPI wraps an existing S3 implementation.
func NewClientWithAPI(api s3iface.S3API) *Client {
	return &Client{s3: api}
}

// ObjectSize returns the content length of an object.
func (c *Client) ObjectSize(ctx context.Context, bucket, key string) (int64, error) {
	output, err := c.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		log.Errorf("error getting S3 head object (bucket: %s)(key: %s), err: %v", bucket, key, err)
		return 0, err
	}
	return aws.Int64Value(output.ContentLength), nil
}

// GetObject downloads a whole object. Objects larger than maxSize are refused
// before any body is transferred; zero means no limit.
func (c *Client) GetObject(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error) {
	if maxSize > 0 {
		size, err := c.ObjectSize(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		if size > maxSize {
			return nil, fmt.Errorf("s3://%s/%s is %d bytes, limit is %d", bucket, key, size, maxSize)
		}
	}
	output, err := c.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		log.Errorf("error getting S3 object (bucket: %s)(key: %s), err: %v", bucket, key, err)
		return nil, err
	}
	defer output.Body.Close()
	return ioutil.ReadAll(output.Body)
}
