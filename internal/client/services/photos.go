package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkravets/fleetsync/internal/client/remote"
	"github.com/mkravets/fleetsync/internal/client/repositories/blobs"
	"github.com/mkravets/fleetsync/internal/common"
	"github.com/mkravets/fleetsync/internal/logging"
)

// Photos stages vehicle and driver photos in the local blob cache and pushes
// them to remote storage through presigned URLs. Staging always succeeds
// offline; the upload happens on the next UploadPending pass.
type Photos struct {
	repo      blobs.Repository
	presigner remote.Presigner
	upload    UploadFunc
	log       logging.Logger
}

// UploadFunc PUTs a blob to a presigned URL. netx.UploadPresigned in
// production, a capture in tests.
type UploadFunc func(ctx context.Context, url string, blob []byte) error

// NewPhotos wires the blob cache to the presigned upload path.
func NewPhotos(repo blobs.Repository, presigner remote.Presigner, upload UploadFunc, log logging.Logger) *Photos {
	return &Photos{
		repo:      repo,
		presigner: presigner,
		upload:    upload,
		log:       log.With("component", "photos"),
	}
}

// Attach stages a photo in the local cache and returns the blob key to store
// on the owning entity. It never touches the network.
func (p *Photos) Attach(ctx context.Context, data []byte) (string, error) {
	key := uuid.NewString()
	if err := p.repo.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	}
	return key, nil
}

// Load returns a staged or previously cached photo.
func (p *Photos) Load(ctx context.Context, key string) ([]byte, error) {
	return p.repo.Get(ctx, key)
}

// Remove deletes a photo from the local cache.
func (p *Photos) Remove(ctx context.Context, key string) error {
	return p.repo.Delete(ctx, key)
}

// UploadPending pushes every staged blob to remote storage. A key is marked
// uploaded only after its PUT returns; a failed upload leaves the key staged
// and moves on, the same skip-and-continue rule the event queue follows.
// Returns how many blobs were uploaded.
func (p *Photos) UploadPending(ctx context.Context) (int, error) {
	keys, err := p.repo.KeysPendingUpload(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	}

	uploaded := 0
	for _, key := range keys {
		blob, err := p.repo.Get(ctx, key)
		if err != nil {
			return uploaded, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
		}

		url, err := p.presigner.PresignPut(ctx, key)
		if err != nil {
			p.log.Warn(ctx, "presign failed, blob left staged", "key", key, "error", err)
			continue
		}
		if err := p.upload(ctx, url, blob); err != nil {
			p.log.Warn(ctx, "upload failed, blob left staged", "key", key, "error", err)
			continue
		}

		if err := p.repo.MarkUploaded(ctx, key); err != nil {
			return uploaded, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
		}
		uploaded++
	}
	return uploaded, nil
}
