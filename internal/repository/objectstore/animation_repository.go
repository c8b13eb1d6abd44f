package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/keyframestudio/stage/internal/domain"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
	"github.com/keyframestudio/stage/internal/pkg/metrics"
)

const storeName = "minio"

// AnimationKey is the object key for one baked track.
func AnimationKey(sceneID, objectID string) string {
	return path.Join("animations", sceneID, objectID+".json")
}

// AnimationRepository stores baked animations as JSON objects
type AnimationRepository struct {
	client *minio.Client
	bucket string
}

// NewAnimationRepository creates a new animation repository
func NewAnimationRepository(client *minio.Client, bucket string) *AnimationRepository {
	return &AnimationRepository{client: client, bucket: bucket}
}

// Save writes the animation and returns the key it was stored under
func (r *AnimationRepository) Save(ctx context.Context, sceneID string, anim *domain.BakedAnimation) (string, error) {
	start := time.Now()
	key := AnimationKey(sceneID, anim.ObjectID)

	data, err := json.Marshal(anim)
	if err != nil {
		return "", fmt.Errorf("failed to encode animation %s: %w", anim.ObjectID, err)
	}

	_, err = r.client.PutObject(ctx, r.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"scene":  sceneID,
			"source": anim.Source,
		},
	})
	metrics.RecordStorageOp(storeName, "put", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to upload animation %s: %w", key, err)
	}

	return key, nil
}

// Get reads a stored animation
func (r *AnimationRepository) Get(ctx context.Context, sceneID, objectID string) (*domain.BakedAnimation, error) {
	start := time.Now()
	key := AnimationKey(sceneID, objectID)

	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		metrics.RecordStorageOp(storeName, "get", time.Since(start), err)
		return nil, fmt.Errorf("failed to get animation %s: %w", key, err)
	}
	defer obj.Close()

	var anim domain.BakedAnimation
	err = json.NewDecoder(obj).Decode(&anim)
	if isNoSuchKey(err) {
		metrics.RecordStorageOp(storeName, "get", time.Since(start), nil)
		return nil, apperrors.NotFound("animation")
	}
	metrics.RecordStorageOp(storeName, "get", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to decode animation %s: %w", key, err)
	}

	anim.DataPath = key
	return &anim, nil
}

// Delete removes a stored animation
func (r *AnimationRepository) Delete(ctx context.Context, sceneID, objectID string) error {
	start := time.Now()
	err := r.client.RemoveObject(ctx, r.bucket, AnimationKey(sceneID, objectID), minio.RemoveObjectOptions{})
	metrics.RecordStorageOp(storeName, "delete", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete animation: %w", err)
	}
	return nil
}

// Ping checks that the bucket is reachable
func (r *AnimationRepository) Ping(ctx context.Context) error {
	ok, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", r.bucket)
	}
	return nil
}

// GetObject is lazy: a missing key surfaces on the first read.
func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
