package minio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
// It follows the Go module path convention for OTel instrumentation libraries.
const tracerName = "github.com/StricklySoft/stricklysoft-functions/pkg/clients/minio"

// ObjectStore defines the object store operations the blob bindings use.
// It is satisfied by [*minio.Client] and by mock implementations for unit
// testing, enabling dependency injection via [NewFromStore] without a real
// object store.
type ObjectStore interface {
	// PutObject uploads an object to a bucket.
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)

	// GetObject retrieves an object from a bucket. The returned object
	// is a lazy reader; errors surface on the first Read.
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)

	// StatObject returns metadata about an object without fetching it.
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)

	// RemoveObject deletes an object from a bucket.
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error

	// BucketExists reports whether a bucket exists.
	BucketExists(ctx context.Context, bucketName string) (bool, error)

	// MakeBucket creates a new bucket.
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error

	// ListBuckets lists all buckets owned by the authenticated user.
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
}

// Compile-time interface compliance check. This ensures that *minio.Client
// satisfies the ObjectStore interface at compile time rather than at runtime.
var _ ObjectStore = (*minio.Client)(nil)

// Client is the platform's object store client with OpenTelemetry tracing
// and structured error handling. It wraps an [ObjectStore] (typically
// [*minio.Client]) and adds cross-cutting concerns transparently to all
// operations.
//
// A Client is safe for concurrent use by multiple goroutines. The Storage
// add-on creates one Client per function app and shares it across
// invocations.
type Client struct {
	store  ObjectStore
	config *Config
	tracer trace.Tracer
}

// NewClient creates a new object store client. It validates the
// configuration and constructs a minio-go client; no network call is made
// until the first operation, so use [Client.Health] to verify reachability
// at bootstrap when required.
//
// Error codes returned:
//   - [sserr.CodeValidation]: invalid configuration
//   - [sserr.CodeInternalStorage]: client construction failure
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation,
			"minio: invalid configuration")
	}

	store, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalStorage,
			"minio: failed to create client")
	}

	return &Client{
		store:  store,
		config: &cfg,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// NewFromStore creates a Client with a pre-existing [ObjectStore]. This
// constructor is intended for testing with mock implementations.
//
// The cfg parameter is stored but not validated; pass nil for a zero-value
// config in tests.
func NewFromStore(store ObjectStore, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		store:  store,
		config: cfg,
		tracer: otel.Tracer(tracerName),
	}
}

// PutObject uploads an object to a bucket, with OpenTelemetry tracing.
//
// All errors are wrapped as [*sserr.Error] with an appropriate error code:
//   - [sserr.CodeTimeoutDependency] if the context deadline is exceeded
//   - [sserr.CodeInternalStorage] for all other object store errors
func (c *Client) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	ctx, span := c.startSpan(ctx, "PutObject", bucketName, fmt.Sprintf("PUT %s/%s", bucketName, objectName))
	info, err := c.store.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
	finishSpan(span, err)
	if err != nil {
		return minio.UploadInfo{}, wrapError(err, "minio: put object failed")
	}
	return info, nil
}

// GetObject retrieves an object from a bucket, with OpenTelemetry tracing.
// The returned [*minio.Object] is a lazy reader the caller must Close;
// a missing object surfaces on the first Read, not here.
func (c *Client) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	ctx, span := c.startSpan(ctx, "GetObject", bucketName, fmt.Sprintf("GET %s/%s", bucketName, objectName))
	obj, err := c.store.GetObject(ctx, bucketName, objectName, opts)
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "minio: get object failed")
	}
	return obj, nil
}

// StatObject returns metadata about an object without fetching its
// content, with OpenTelemetry tracing. A missing object is returned as a
// [*sserr.Error] with code [sserr.CodeNotFoundResource].
func (c *Client) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	ctx, span := c.startSpan(ctx, "StatObject", bucketName, fmt.Sprintf("STAT %s/%s", bucketName, objectName))
	info, err := c.store.StatObject(ctx, bucketName, objectName, opts)
	finishSpan(span, err)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return minio.ObjectInfo{}, sserr.Wrapf(err, sserr.CodeNotFoundResource,
				"minio: object %s/%s not found", bucketName, objectName)
		}
		return minio.ObjectInfo{}, wrapError(err, "minio: stat object failed")
	}
	return info, nil
}

// RemoveObject deletes an object from a bucket, with OpenTelemetry tracing.
func (c *Client) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	ctx, span := c.startSpan(ctx, "RemoveObject", bucketName, fmt.Sprintf("DELETE %s/%s", bucketName, objectName))
	err := c.store.RemoveObject(ctx, bucketName, objectName, opts)
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "minio: remove object failed")
	}
	return nil
}

// EnsureBucket creates the bucket if it does not already exist, with
// OpenTelemetry tracing. It is safe to call at every bootstrap; an
// existing bucket is not an error.
func (c *Client) EnsureBucket(ctx context.Context, bucketName string) error {
	ctx, span := c.startSpan(ctx, "EnsureBucket", bucketName, fmt.Sprintf("ENSURE %s", bucketName))

	exists, err := c.store.BucketExists(ctx, bucketName)
	if err != nil {
		finishSpan(span, err)
		return wrapError(err, "minio: bucket existence check failed")
	}
	if exists {
		finishSpan(span, nil)
		return nil
	}

	err = c.store.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: c.config.Region})
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "minio: make bucket failed")
	}
	return nil
}

// Health verifies that the object store is reachable by listing buckets.
//
// Returns nil if the store is reachable, or a [*sserr.Error] with code
// [sserr.CodeInternalStorage] otherwise.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "", "LIST BUCKETS")
	_, err := c.store.ListBuckets(ctx)
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternalStorage,
			"minio: health check failed")
	}
	return nil
}

// Store returns the underlying [ObjectStore] interface for advanced use
// cases not covered by the Client's methods.
func (c *Client) Store() ObjectStore {
	return c.store
}

// startSpan creates a new OpenTelemetry span with standard object store
// semantic attributes.
func (c *Client) startSpan(ctx context.Context, operationName, bucketName, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "minio."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "s3"),
		attribute.String("db.statement", truncateStatement(statement)),
	}
	if bucketName != "" {
		attrs = append(attrs, attribute.String("s3.bucket", bucketName))
	}
	span.SetAttributes(attrs...)
	return ctx, span
}

// finishSpan records an error on the span (if any) and ends it. If err is
// nil, the span status is set to OK.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError converts an object store error to a platform [*sserr.Error]
// with an appropriate error code. [context.DeadlineExceeded] is classified
// as [sserr.CodeTimeoutDependency]; everything else as
// [sserr.CodeInternalStorage].
func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutDependency, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalStorage, message)
}
