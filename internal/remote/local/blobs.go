package local

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcdole/marquee/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// BlobScheme prefixes URLs of assets stored in the local catalog
const BlobScheme = "local://blobs/"

var keyMeta = []byte("meta")

// uploadMeta tracks one staged upload
type uploadMeta struct {
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Received    int64  `json:"received"`
	NextChunk   int    `json:"nextChunk"`
}

func chunkKey(index int) []byte {
	return append([]byte("chunk:"), itob(uint64(index))...)
}

func (s *Store) BeginUpload(ctx context.Context, size int64, contentType string) (string, error) {
	if err := s.requireAdmin(ctx, "beginUpload"); err != nil {
		return "", err
	}
	if size < 0 {
		return "", domain.NewValidationError("size", "must not be negative")
	}

	id := uuid.NewString()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketUploads).CreateBucket([]byte(id))
		if err != nil {
			return err
		}
		return putJSON(b, keyMeta, uploadMeta{Size: size, ContentType: contentType})
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("upload session opened", "uploadID", id, "size", size)
	return id, nil
}

// UploadChunk stages a chunk. Chunks must arrive in order and contiguously.
func (s *Store) UploadChunk(ctx context.Context, uploadID string, index int, offset int64, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, meta, err := loadUpload(tx, uploadID)
		if err != nil {
			return err
		}
		if index != meta.NextChunk || offset != meta.Received {
			return fmt.Errorf("chunk %d at offset %d out of sequence (want %d at %d)", index, offset, meta.NextChunk, meta.Received)
		}
		if meta.Received+int64(len(data)) > meta.Size {
			return domain.NewValidationError("chunk", "exceeds declared upload size")
		}
		if err := b.Put(chunkKey(index), data); err != nil {
			return err
		}
		meta.Received += int64(len(data))
		meta.NextChunk++
		return putJSON(b, keyMeta, meta)
	})
}

// CompleteUpload assembles the staged chunks into a stored blob
func (s *Store) CompleteUpload(ctx context.Context, uploadID string) (string, error) {
	blobID := uuid.NewString()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, meta, err := loadUpload(tx, uploadID)
		if err != nil {
			return err
		}
		if meta.Received != meta.Size {
			return fmt.Errorf("upload %s incomplete: %d of %d bytes", uploadID, meta.Received, meta.Size)
		}

		data := make([]byte, 0, meta.Size)
		for i := 0; i < meta.NextChunk; i++ {
			data = append(data, b.Get(chunkKey(i))...)
		}
		if err := tx.Bucket(bucketBlobs).Put([]byte(blobID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUploads).DeleteBucket([]byte(uploadID))
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("upload assembled", "uploadID", uploadID, "blobID", blobID)
	return BlobScheme + blobID, nil
}

// AbortUpload discards a staged upload. Unknown ids are not an error.
func (s *Store) AbortUpload(ctx context.Context, uploadID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		uploads := tx.Bucket(bucketUploads)
		if uploads.Bucket([]byte(uploadID)) == nil {
			return nil
		}
		return uploads.DeleteBucket([]byte(uploadID))
	})
}

func (s *Store) FetchBlob(ctx context.Context, url string) ([]byte, error) {
	id, ok := strings.CutPrefix(url, BlobScheme)
	if !ok {
		return nil, fmt.Errorf("not a local blob url: %q", url)
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("blob %s: %w", id, domain.ErrTitleNotFound)
		}
		data = bytes.Clone(v)
		return nil
	})
	return data, err
}

func loadUpload(tx *bolt.Tx, uploadID string) (*bolt.Bucket, uploadMeta, error) {
	var meta uploadMeta
	b := tx.Bucket(bucketUploads).Bucket([]byte(uploadID))
	if b == nil {
		return nil, meta, fmt.Errorf("unknown upload %q", uploadID)
	}
	if _, err := getJSON(b, keyMeta, &meta); err != nil {
		return nil, meta, err
	}
	return b, meta, nil
}

// PendingUploads returns the number of staged, unfinished uploads
func (s *Store) PendingUploads() int {
	n := 0
	s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUploads).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n
}
