package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a content-addressed store: the reference is the hex
// sha256 of the bytes, so identical uploads share one blob.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func blobKey(ref string) string {
	return "blob:" + ref
}

func (s *RedisStore) Put(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])

	err := s.client.HSet(ctx, blobKey(ref),
		"data", data,
		"content_type", contentType,
		"filename", filename,
	).Err()
	if err != nil {
		return "", fmt.Errorf("blob put: %w", err)
	}
	return ref, nil
}

func (s *RedisStore) Get(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.client.HGet(ctx, blobKey(ref), "data").Bytes()
	if err == redis.Nil {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blob get: %w", err)
	}
	return data, nil
}

// ContentType returns the declared type for a stored blob, or "" if the
// blob is unknown.
func (s *RedisStore) ContentType(ctx context.Context, ref string) (string, error) {
	ct, err := s.client.HGet(ctx, blobKey(ref), "content_type").Result()
	if err == redis.Nil {
		return "", ErrBlobNotFound
	}
	return ct, err
}
