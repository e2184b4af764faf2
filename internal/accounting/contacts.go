package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clubworks/billing-engine/pkg/logger"
)

// ContactResolver maps an internal member id to the accounting system's
// contact reference
type ContactResolver interface {
	Resolve(ctx context.Context, userID uint) (string, error)
}

// HTTPContactResolver find-or-creates the contact in the accounting system.
// Concurrent creates for the same member can answer 409; that surfaces as a
// retryable accounting Error and resolves on the next sync pass.
type HTTPContactResolver struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPContactResolver(baseURL, token string) *HTTPContactResolver {
	return &HTTPContactResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (r *HTTPContactResolver) Resolve(ctx context.Context, userID uint) (string, error) {
	payload := struct {
		UserRef string `json:"user_ref"`
	}{UserRef: fmt.Sprintf("user-%d", userID)}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode contact request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/contacts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build contact request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read contact response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var parsed struct {
		ContactRef string `json:"contact_ref"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode contact response: %w", err)
	}
	if parsed.ContactRef == "" {
		return "", &Error{StatusCode: resp.StatusCode, Message: "empty contact_ref"}
	}
	return parsed.ContactRef, nil
}

// CachedContactResolver caches resolved contact refs in Redis. Contacts are
// stable, so a cache hit skips a round trip on every invoice of the same
// member. A nil Redis client degrades to the inner resolver.
type CachedContactResolver struct {
	inner ContactResolver
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedContactResolver(inner ContactResolver, redisClient *redis.Client, ttl time.Duration) *CachedContactResolver {
	return &CachedContactResolver{inner: inner, redis: redisClient, ttl: ttl}
}

func (r *CachedContactResolver) Resolve(ctx context.Context, userID uint) (string, error) {
	if r.redis == nil {
		return r.inner.Resolve(ctx, userID)
	}

	key := fmt.Sprintf("billing:contact:%d", userID)
	cached, err := r.redis.Get(ctx, key).Result()
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && err != redis.Nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("Contact cache read failed")
	}

	ref, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := r.redis.Set(ctx, key, ref, r.ttl).Err(); err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("Failed to cache contact ref")
	}
	return ref, nil
}
