// Package blobstore adapts an S3-compatible object store (Cloudflare R2 in
// production) for label images and other pipeline blobs.
package blobstore

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
)

// Config configures the S3-compatible endpoint the adapter talks to.
type Config struct {
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Store puts, gets, and deletes objects against an S3-compatible endpoint.
// Errors from the underlying SDK surface transparently; the adapter does
// not retry internally.
type Store struct {
	client *s3.Client
	bucket string
}

// New constructs a Store from cfg. The region is always "auto", matching
// Cloudflare R2's S3-compatibility contract.
func New(cfg Config) *Store {
	client := s3.New(s3.Options{
		Region:       "auto",
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Store{client: client, bucket: cfg.Bucket}
}

// Put uploads data under key with the given content type.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return apperrors.BlobError("put", err)
	}
	return nil
}

// Get downloads the object stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperrors.BlobError("get", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperrors.BlobError("get_read", err)
	}
	return data, nil
}

// Delete removes the object stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperrors.BlobError("delete", err)
	}
	return nil
}
