package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3 implements S3API for testing.
type mockS3 struct {
	getFunc func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

// mockHTTP implements HTTPDoer for testing.
type mockHTTP struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTP) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return nil, errors.New("not implemented")
}

func TestResolve_S3(t *testing.T) {
	var gotBucket, gotKey string
	s3Mock := &mockS3{
		getFunc: func(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			gotBucket = *params.Bucket
			gotKey = *params.Key
			return &s3.GetObjectOutput{
				Body: io.NopCloser(strings.NewReader(`{"type":"Feature","id":"item-1"}`)),
			}, nil
		},
	}

	r := NewMultiResolver(s3Mock, nil)
	obj, err := r.Resolve(context.Background(), "s3://my-bucket/path/to/item.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBucket != "my-bucket" {
		t.Errorf("bucket = %q, want %q", gotBucket, "my-bucket")
	}
	if gotKey != "path/to/item.json" {
		t.Errorf("key = %q, want %q", gotKey, "path/to/item.json")
	}
	if obj.ID() != "item-1" {
		t.Errorf("id = %q, want %q", obj.ID(), "item-1")
	}
}

func TestResolve_HTTP(t *testing.T) {
	httpMock := &mockHTTP{
		doFunc: func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodGet {
				t.Errorf("method = %q, want GET", req.Method)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"type":"Collection","id":"sentinel-2"}`)),
			}, nil
		},
	}

	r := NewMultiResolver(nil, httpMock)
	obj, err := r.Resolve(context.Background(), "https://example.com/collection.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !obj.IsCollection() {
		t.Errorf("type = %q, want Collection", obj.Type())
	}
}

func TestResolve_HTTPErrorStatus(t *testing.T) {
	httpMock := &mockHTTP{
		doFunc: func(_ *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(strings.NewReader("not found")),
			}, nil
		},
	}

	r := NewMultiResolver(nil, httpMock)
	if _, err := r.Resolve(context.Background(), "https://example.com/missing.json"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestResolve_UnsupportedScheme(t *testing.T) {
	r := NewMultiResolver(&mockS3{}, &mockHTTP{})
	_, err := r.Resolve(context.Background(), "ftp://example.com/item.json")
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("error = %v, want ErrUnsupportedSource", err)
	}
}

func TestResolve_InvalidJSON(t *testing.T) {
	httpMock := &mockHTTP{
		doFunc: func(_ *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("{not json")),
			}, nil
		},
	}

	r := NewMultiResolver(nil, httpMock)
	if _, err := r.Resolve(context.Background(), "https://example.com/bad.json"); err == nil {
		t.Fatal("expected decode error")
	}
}
