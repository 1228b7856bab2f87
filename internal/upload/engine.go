package upload

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mmcdole/marquee/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the transfer unit (the last chunk may be shorter)
	DefaultChunkSize = 2 << 20

	// DefaultMaxSize is the deployment ceiling for a single asset (5 GiB)
	DefaultMaxSize int64 = 5 << 30

	abortTimeout = 10 * time.Second
)

// Asset selects the size ceiling and accepted formats of a payload
type Asset int

const (
	AssetVideo Asset = iota
	AssetImage
)

func (a Asset) String() string {
	if a == AssetImage {
		return "cover image"
	}
	return "video"
}

// acceptPrefix is the MIME family each asset kind accepts
func (a Asset) acceptPrefix() string {
	if a == AssetImage {
		return "image/"
	}
	return "video/"
}

// Config holds the client-side upload policy
type Config struct {
	ChunkSize    int
	MaxVideoSize int64
	MaxImageSize int64
}

// Engine transfers by-bytes content handles to blob storage in sequential
// chunks, reporting monotonic progress per handle.
type Engine struct {
	blobs  domain.BlobRepository
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an upload engine. Zero config values take the defaults.
func NewEngine(blobs domain.BlobRepository, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxVideoSize <= 0 {
		cfg.MaxVideoSize = DefaultMaxSize
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = DefaultMaxSize
	}
	return &Engine{blobs: blobs, cfg: cfg, logger: logger}
}

// ChunkSize returns the configured transfer unit
func (e *Engine) ChunkSize() int { return e.cfg.ChunkSize }

// MaxSize returns the ceiling for an asset kind
func (e *Engine) MaxSize(a Asset) int64 {
	if a == AssetImage {
		return e.cfg.MaxImageSize
	}
	return e.cfg.MaxVideoSize
}

// Prepare wraps data in a by-bytes handle, rejecting it before any transfer
// if it is larger than maxSize.
func (e *Engine) Prepare(data []byte, maxSize int64) (*domain.Handle, error) {
	if err := checkSize("file", int64(len(data)), maxSize); err != nil {
		return nil, err
	}
	return domain.FromBytes(data), nil
}

// CheckSize rejects a payload of size bytes that exceeds the asset's ceiling
func (e *Engine) CheckSize(a Asset, size int64) error {
	return checkSize(a.String(), size, e.MaxSize(a))
}

// PrepareAsset applies the asset's ceiling and format gate and annotates the
// handle with the detected MIME type.
func (e *Engine) PrepareAsset(data []byte, a Asset) (*domain.Handle, error) {
	if err := e.CheckSize(a, int64(len(data))); err != nil {
		return nil, err
	}
	field := a.String()

	contentType, ok := detect(data, a.acceptPrefix())
	if !ok {
		return nil, &domain.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%s is not an accepted %s format", contentType, a),
			Err:    domain.ErrUnsupportedFormat,
		}
	}
	return domain.FromBytes(data).WithContentType(contentType), nil
}

func checkSize(field string, size, maxSize int64) error {
	if maxSize <= 0 {
		return domain.NewValidationError(field, "no size limit configured")
	}
	if size > maxSize {
		return &domain.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%s exceeds the %s limit", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(maxSize))),
			Err:    domain.ErrFileTooLarge,
		}
	}
	return nil
}

// detect returns the sniffed MIME type and whether it (or a parent type)
// belongs to the accepted family.
func detect(data []byte, prefix string) (string, bool) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), prefix) {
			return m.String(), true
		}
	}
	return detected.String(), false
}

// Transfer uploads a by-bytes handle and returns a by-URL handle for it.
// By-URL handles are returned unchanged.
//
// On any chunk failure the remaining chunks are not sent, progress stops,
// the partial upload is aborted remotely and the handle becomes unusable.
// Cancelling ctx stops further chunks; a chunk already dispatched completes.
func (e *Engine) Transfer(ctx context.Context, h *domain.Handle) (*domain.Handle, error) {
	if h.Kind() == domain.HandleByURL {
		return h, nil
	}
	if err := h.BeginTransfer(); err != nil {
		return nil, err
	}

	url, err := e.transfer(ctx, h)
	h.FinishTransfer(err)
	if err != nil {
		return nil, err
	}
	return domain.FromURL(url).WithContentType(h.ContentType()), nil
}

func (e *Engine) transfer(ctx context.Context, h *domain.Handle) (string, error) {
	data := h.Bytes()
	total := int64(len(data))
	progress := newReporter(h.Progress())

	uploadID, err := e.blobs.BeginUpload(ctx, total, h.ContentType())
	if err != nil {
		return "", &domain.UploadError{Chunk: 0, Offset: 0, Err: fmt.Errorf("begin upload: %w", err)}
	}

	log := e.logger.With("uploadID", uploadID, "size", total)
	log.Debug("upload started", "chunkSize", e.cfg.ChunkSize)
	progress.report(0)

	chunkSize := int64(e.cfg.ChunkSize)
	index := 0
	for offset := int64(0); offset < total; index++ {
		if err := ctx.Err(); err != nil {
			e.abort(ctx, uploadID)
			return "", &domain.UploadError{Chunk: index, Offset: offset, Err: err}
		}

		end := min(offset+chunkSize, total)
		if err := e.blobs.UploadChunk(context.WithoutCancel(ctx), uploadID, index, offset, data[offset:end]); err != nil {
			log.Error("chunk upload failed", "chunk", index, "offset", offset, "error", err)
			e.abort(ctx, uploadID)
			return "", &domain.UploadError{Chunk: index, Offset: offset, Err: err}
		}
		offset = end
		log.Debug("chunk acknowledged", "chunk", index, "acked", offset)

		if offset < total {
			progress.report(float64(offset) / float64(total) * 100)
		}
	}

	url, err := e.blobs.CompleteUpload(ctx, uploadID)
	if err != nil {
		e.abort(ctx, uploadID)
		return "", &domain.UploadError{Chunk: index, Offset: total, Err: fmt.Errorf("complete upload: %w", err)}
	}

	progress.report(100)
	log.Info("upload complete", "chunks", index, "url", url)
	return url, nil
}

// abort discards a partial upload. Best effort.
func (e *Engine) abort(ctx context.Context, uploadID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if err := e.blobs.AbortUpload(ctx, uploadID); err != nil {
		e.logger.Warn("failed to abort upload", "uploadID", uploadID, "error", err)
	}
}

// TransferAll uploads independent handles concurrently and returns their
// by-URL handles in order. The first failure cancels the others.
func (e *Engine) TransferAll(ctx context.Context, handles ...*domain.Handle) ([]*domain.Handle, error) {
	out := make([]*domain.Handle, len(handles))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			stored, err := e.Transfer(gctx, h)
			if err != nil {
				return err
			}
			out[i] = stored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// reporter enforces monotonic progress in [0,100] with 100 reserved for
// completion.
type reporter struct {
	fn   domain.ProgressFunc
	last float64
}

func newReporter(fn domain.ProgressFunc) *reporter {
	return &reporter{fn: fn, last: -1}
}

func (r *reporter) report(pct float64) {
	if r.fn == nil {
		return
	}
	if pct < 100 {
		pct = min(pct, math.Nextafter(100, 0))
	} else {
		pct = 100
	}
	if pct < r.last {
		return
	}
	r.last = pct
	r.fn(pct)
}
