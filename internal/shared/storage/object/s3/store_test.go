package s3

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/user/file.pdf", want: "root/user/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "user/file.pdf", want: "root/sub/user/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	puts []*s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, params)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.New("not implemented")
}

func TestPutUsesPublicBaseURL(t *testing.T) {
	fake := &fakeS3{}
	store := &Store{client: fake, bucket: "bucket", prefix: "root", publicURL: "https://cdn.example.com"}

	url, err := store.Put(context.Background(), "resumes/t/j.pdf", "application/pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "https://cdn.example.com/root/resumes/t/j.pdf" {
		t.Fatalf("unexpected url %q", url)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(fake.puts))
	}
	in := fake.puts[0]
	if aws.ToString(in.Key) != "root/resumes/t/j.pdf" || aws.ToString(in.ContentType) != "application/pdf" {
		t.Fatalf("unexpected input key=%s type=%s", aws.ToString(in.Key), aws.ToString(in.ContentType))
	}
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256 encryption, got %s", in.ServerSideEncryption)
	}
}

func TestPutPresignsWithoutPublicBaseURL(t *testing.T) {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	store := NewFromConfig(cfg, Options{Bucket: "bucket", KMSKeyID: "kms-1", URLExpiry: time.Hour})
	fake := &fakeS3{}
	store.client = fake

	raw, err := store.Put(context.Background(), "resumes/t/j.pdf", "application/pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.Path, "resumes/t/j.pdf") {
		t.Fatalf("expected key in url path, got %s", parsed.Path)
	}
	if parsed.Query().Get("X-Amz-Expires") != "3600" {
		t.Fatalf("expected 1h expiry, got %q", parsed.Query().Get("X-Amz-Expires"))
	}
	if fake.puts[0].ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected kms encryption")
	}
}

func TestPutWrapsClientError(t *testing.T) {
	store := &Store{client: &fakeS3{err: errors.New("boom")}, bucket: "bucket", publicURL: "https://cdn"}
	if _, err := store.Put(context.Background(), "k.pdf", "application/pdf", nil); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
