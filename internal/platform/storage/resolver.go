package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

const (
	blobScheme           = "gs://"
	defaultDownloadTTL   = 15 * time.Minute
	maxDownloadSignedTTL = 15 * time.Minute
)

var (
	errNoSigner       = errors.New("storage: signer is required")
	errInvalidRef     = errors.New("storage: blob reference must look like gs://bucket/object")
	errExpiryTooLong  = errors.New("storage: expiry exceeds permitted maximum")
	errNotInitialised = errors.New("storage: resolver not initialised")
)

// ImageResolver converts gs:// blob references into time-limited download
// URLs. Resolved URLs are cached until shortly before they expire so repeated
// snapshot batches do not re-sign the same objects.
type ImageResolver struct {
	signer Signer
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]resolvedURL
}

type resolvedURL struct {
	url       string
	staleFrom time.Time
}

// ResolverOption customises resolver behaviour.
type ResolverOption func(*ImageResolver)

// WithDownloadTTL overrides the signed URL lifetime.
func WithDownloadTTL(ttl time.Duration) ResolverOption {
	return func(r *ImageResolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *ImageResolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewImageResolver constructs a resolver backed by the supplied signer.
func NewImageResolver(signer Signer, opts ...ResolverOption) (*ImageResolver, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}

	resolver := &ImageResolver{
		signer: signer,
		ttl:    defaultDownloadTTL,
		now:    time.Now,
		cache:  make(map[string]resolvedURL),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}
	if resolver.ttl > maxDownloadSignedTTL {
		return nil, errExpiryTooLong
	}
	return resolver, nil
}

// ResolveURL signs a GET URL for the referenced object.
func (r *ImageResolver) ResolveURL(ctx context.Context, ref string) (string, error) {
	if r == nil || r.signer == nil {
		return "", errNotInitialised
	}
	if ctx == nil {
		return "", errors.New("storage: context is required")
	}

	bucket, object, err := splitBlobRef(ref)
	if err != nil {
		return "", err
	}

	key := bucket + "/" + object
	now := r.now()

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok && now.Before(cached.staleFrom) {
		r.mu.Unlock()
		return cached.url, nil
	}
	r.mu.Unlock()

	expires := now.Add(r.ttl)
	signed, err := storage.SignedURL(bucket, object, &storage.SignedURLOptions{
		GoogleAccessID: r.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        expires,
		SignBytes: func(payload []byte) ([]byte, error) {
			return r.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return "", fmt.Errorf("storage: sign download url: %w", err)
	}

	r.mu.Lock()
	// Serve cached URLs only while at least half the lifetime remains.
	r.cache[key] = resolvedURL{url: signed, staleFrom: now.Add(r.ttl / 2)}
	r.mu.Unlock()

	return signed, nil
}

func splitBlobRef(ref string) (bucket, object string, err error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, blobScheme) {
		return "", "", errInvalidRef
	}
	rest := strings.TrimPrefix(trimmed, blobScheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errInvalidRef
	}
	return parts[0], parts[1], nil
}
