package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestObjectKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "durable/latestDocumentId.json", want: "durable/latestDocumentId.json"},
		{name: "prefix", prefix: "findoc", key: "durable/uploadedFiles.json", want: "findoc/durable/uploadedFiles.json"},
		{name: "leading slash on key", prefix: "findoc", key: "/durable/x.json", want: "findoc/durable/x.json"},
		{name: "empty key", prefix: "findoc", key: "", want: "findoc"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &Store{opts: Options{Prefix: tt.prefix}}
			if got := s.objectKey(tt.key); got != tt.want {
				t.Fatalf("objectKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestPutInputEncryption(t *testing.T) {
	plain := &Store{opts: Options{Bucket: "b"}}
	in := plain.putInput("k", "application/json", []byte("{}"))
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAes256 || in.SSEKMSKeyId != nil {
		t.Fatalf("expected AES256, got %v", in.ServerSideEncryption)
	}
	if aws.ToInt64(in.ContentLength) != 2 || aws.ToString(in.ContentType) != "application/json" {
		t.Fatalf("unexpected input %+v", in)
	}

	kms := &Store{opts: Options{Bucket: "b", KMSKeyID: "key-1"}}
	in = kms.putInput("k", "", nil)
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(in.SSEKMSKeyId) != "key-1" {
		t.Fatalf("expected SSE-KMS, got %v", in.ServerSideEncryption)
	}
	if in.ContentType != nil {
		t.Fatalf("content type should be unset")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Options{Bucket: "  "}); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
