// Package objectstore implements the IMS object-store gateway (§4.A): a
// uniform interface over an S3-compatible store, with two credential
// contexts ("ims" and "sts") because multi-part copies must run under
// the original uploader principal.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Cray-HPE/ims-sub000/internal/config"
	"github.com/Cray-HPE/ims-sub000/internal/model"
)

// CredentialContext selects which principal a Gateway call runs as.
type CredentialContext string

const (
	// ContextIMS is the service's own principal, used for most gateway
	// calls.
	ContextIMS CredentialContext = "ims"
	// ContextSTS is the uploader's principal, required for multi-part
	// copy operations that must be attributed to the original uploader.
	ContextSTS CredentialContext = "sts"
)

// HeadResult is what A.head returns: the object's etag and user metadata.
type HeadResult struct {
	ETag          string
	ContentLength int64
	Metadata      map[string]string
}

// Gateway is the object-store interface every IMS component depends on
// rather than talking to aws-sdk-go-v2 directly.
type Gateway interface {
	Head(ctx context.Context, bucket, key string) (HeadResult, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
	Delete(ctx context.Context, bucket, key string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// S3Gateway is the aws-sdk-go-v2 backed Gateway implementation.
type S3Gateway struct {
	ims     *s3.Client
	sts     *s3.Client
	presign *s3.PresignClient
}

// NewS3Gateway builds the two credential-context clients from opts, both
// pointed at the same S3-compatible endpoint.
func NewS3Gateway(ctx context.Context, opts config.S3Options) (*S3Gateway, error) {
	imsClient, err := newClient(ctx, opts.Endpoint, opts.AccessKey, opts.SecretKey, opts)
	if err != nil {
		return nil, fmt.Errorf("objectstore: building ims-context client: %w", err)
	}

	stsEndpoint := opts.STSEndpoint
	if stsEndpoint == "" {
		stsEndpoint = opts.Endpoint
	}
	stsClient, err := newClient(ctx, stsEndpoint, opts.STSAccessKey, opts.STSSecretKey, opts)
	if err != nil {
		return nil, fmt.Errorf("objectstore: building sts-context client: %w", err)
	}

	return &S3Gateway{
		ims:     imsClient,
		sts:     stsClient,
		presign: s3.NewPresignClient(imsClient),
	}, nil
}

func newClient(ctx context.Context, endpoint, accessKey, secretKey string, opts config.S3Options) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = true
		o.HTTPClient = &http.Client{Timeout: opts.ConnectTimeout + opts.ReadTimeout}
	}), nil
}

func (g *S3Gateway) clientFor(cc CredentialContext) *s3.Client {
	if cc == ContextSTS {
		return g.sts
	}
	return g.ims
}

// Head implements A.head, stripping surrounding quote characters from the
// returned etag (§4.A).
func (g *S3Gateway) Head(ctx context.Context, bucket, key string) (HeadResult, error) {
	out, err := g.ims.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return HeadResult{}, fmt.Errorf("objectstore: head %s/%s: %w", bucket, key, err)
	}
	var length int64
	if out.ContentLength != nil {
		length = *out.ContentLength
	}
	meta := make(map[string]string, len(out.Metadata))
	for k, v := range out.Metadata {
		meta[k] = v
	}
	return HeadResult{ETag: stripQuotes(out.ETag), ContentLength: length, Metadata: meta}, nil
}

// Get implements A.get.
func (g *S3Gateway) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := g.ims.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: reading body of %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put implements A.put.
func (g *S3Gateway) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := g.ims.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete implements A.delete.
func (g *S3Gateway) Delete(ctx context.Context, bucket, key string) error {
	_, err := g.ims.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return fmt.Errorf("objectstore: delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Copy implements A.copy, run under the STS credential context since the
// original uploader principal may be required for the copy to succeed.
func (g *S3Gateway) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	source := srcBucket + "/" + srcKey
	_, err := g.clientFor(ContextSTS).CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &dstBucket,
		Key:        &dstKey,
		CopySource: &source,
	})
	if err != nil {
		return fmt.Errorf("objectstore: copy %s to %s/%s: %w", source, dstBucket, dstKey, err)
	}
	return nil
}

// PresignGet implements A.presign_get.
func (g *S3Gateway) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key},
		s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("objectstore: presigning %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

func stripQuotes(etag *string) string {
	if etag == nil {
		return ""
	}
	return strings.Trim(*etag, `"`)
}

// ParseS3URL re-exports model.ParseS3URL so callers importing objectstore
// don't also need to import internal/model just to split a link path.
func ParseS3URL(raw string) (model.S3URL, error) {
	return model.ParseS3URL(raw)
}
