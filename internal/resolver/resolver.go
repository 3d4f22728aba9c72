// Package resolver fetches catalog objects from the sources a trigger
// message may reference: S3 objects and HTTP(S) endpoints.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hala-systems/stac-ingest-service/internal/stac"
)

// ErrUnsupportedSource is returned for reference schemes the resolver does
// not recognise. Callers treat it as fatal for the whole invocation.
var ErrUnsupportedSource = errors.New("unsupported source")

// Resolver fetches a catalog object given a source reference.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (stac.CatalogObject, error)
}

// S3API abstracts the S3 operations used for dependency inversion.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// HTTPDoer abstracts HTTP client operations for dependency inversion.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MultiResolver resolves s3:// references via the S3 API and http(s)://
// references via an HTTP client.
type MultiResolver struct {
	s3Client   S3API
	httpClient HTTPDoer
}

// NewMultiResolver creates a MultiResolver.
func NewMultiResolver(s3Client S3API, httpClient HTTPDoer) *MultiResolver {
	return &MultiResolver{
		s3Client:   s3Client,
		httpClient: httpClient,
	}
}

// Resolve fetches and parses the catalog object at ref.
func (r *MultiResolver) Resolve(ctx context.Context, ref string) (stac.CatalogObject, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse reference %q: %w", ref, err)
	}

	switch {
	case u.Scheme == "s3":
		return r.resolveS3(ctx, u)
	case u.Scheme == "http" || u.Scheme == "https":
		return r.resolveHTTP(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, ref)
	}
}

// resolveS3 reads s3://bucket/key and decodes the body as JSON.
func (r *MultiResolver) resolveS3(ctx context.Context, u *url.URL) (stac.CatalogObject, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	out, err := r.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return decodeObject(out.Body)
}

// resolveHTTP fetches the URL and decodes the body as JSON.
func (r *MultiResolver) resolveHTTP(ctx context.Context, ref string) (stac.CatalogObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", ref, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("get %s: unexpected status %d", ref, resp.StatusCode)
	}

	return decodeObject(resp.Body)
}

func decodeObject(r io.Reader) (stac.CatalogObject, error) {
	var obj stac.CatalogObject
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode catalog object: %w", err)
	}
	return obj, nil
}
