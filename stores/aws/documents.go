package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"campus-store/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Bucket string
	Region string
	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint  string
	PathStyle bool
	// PublicRead grants anonymous read access to every written object.
	PublicRead bool
}

type documentStore struct {
	s3Client   *s3.Client
	bucket     string // Name of the S3 bucket
	publicRead bool
}

func NewDocumentStore(ctx context.Context, opts Options) (core.DocumentStore, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return NewDocumentStoreFromClient(s3Client, opts.Bucket, opts.PublicRead), nil
}

func NewDocumentStoreFromClient(client *s3.Client, bucket string, publicRead bool) core.DocumentStore {
	return &documentStore{s3Client: client, bucket: bucket, publicRead: publicRead}
}

func (s *documentStore) Get(ctx context.Context, key string) (*core.Document, error) {
	if err := core.ValidateKey(key); err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get "+key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Transient("reading body of "+key, err)
	}

	return &core.Document{
		Data:        *bytes.NewBuffer(data),
		ContentType: aws.ToString(resp.ContentType),
		Metadata:    resp.Metadata,
		Version:     aws.ToString(resp.ETag),
	}, nil
}

func (s *documentStore) Put(ctx context.Context, key string, document *core.Document, opts core.PutOptions) (string, error) {
	if err := core.ValidateKey(key); err != nil {
		return "", err
	}
	data := document.Data.Bytes()
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      document.Metadata,
	}
	if document.ContentType != "" {
		input.ContentType = aws.String(document.ContentType)
	}
	if opts.IfMatch != "" {
		input.IfMatch = aws.String(opts.IfMatch)
	}
	if opts.IfNotExists {
		input.IfNoneMatch = aws.String("*")
	}
	if s.publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	resp, err := s.s3Client.PutObject(ctx, input)
	if err != nil {
		return "", classify("put "+key, err)
	}
	logrus.WithFields(logrus.Fields{"key": key, "data_length": len(data)}).Debug("Uploaded document")
	return aws.ToString(resp.ETag), nil
}

func (s *documentStore) Delete(ctx context.Context, key string) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if cerr := classify("delete "+key, err); !core.IsCode(cerr, core.CodeNotFound) {
			return cerr
		}
	}
	return nil
}

// classify maps S3 API failures onto the core error codes.
func classify(msg string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return core.NotFound("object " + msg)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return core.NotFound("object " + msg)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return core.Conflict(msg, errors.Join(core.ErrVersionMismatch, err))
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccountProblem":
			return core.Permission(msg, err)
		case "NoSuchBucket":
			return core.Internal(msg, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return core.NotFound("object " + msg)
		case http.StatusPreconditionFailed, http.StatusConflict:
			return core.Conflict(msg, errors.Join(core.ErrVersionMismatch, err))
		case http.StatusForbidden, http.StatusUnauthorized:
			return core.Permission(msg, err)
		case http.StatusBadRequest:
			return core.Internal(msg, err)
		}
	}
	return core.Transient(msg, err)
}
