package domain

import (
	"context"
	"fmt"
	"sync/atomic"
)

// HandleKind tags the two construction states of a content handle
type HandleKind int

const (
	HandleByURL HandleKind = iota
	HandleByBytes
)

// Transfer states of a by-bytes handle
const (
	handlePending int32 = iota
	handleTransferring
	handleTransferred
	handleFailed
)

// Handle is an opaque reference to a binary asset: either already stored
// remotely (by-URL) or raw bytes pending transfer (by-bytes), optionally
// observed by a progress listener.
//
// A by-bytes handle transfers at most once. After a failed transfer it stays
// unusable; callers prepare a new handle.
type Handle struct {
	kind        HandleKind
	url         string
	data        []byte
	contentType string
	onProgress  ProgressFunc
	state       *atomic.Int32
}

// FromURL wraps an asset already stored remotely
func FromURL(url string) *Handle {
	return &Handle{kind: HandleByURL, url: url}
}

// FromBytes wraps a raw payload pending transfer
func FromBytes(data []byte) *Handle {
	return &Handle{kind: HandleByBytes, data: data, state: new(atomic.Int32)}
}

// WithProgress returns a handle sharing this payload and transfer state that
// reports progress to fn. Progress listeners are local to the returned handle.
func (h *Handle) WithProgress(fn ProgressFunc) *Handle {
	cp := *h
	cp.onProgress = fn
	return &cp
}

// WithContentType returns a copy annotated with the detected MIME type
func (h *Handle) WithContentType(contentType string) *Handle {
	cp := *h
	cp.contentType = contentType
	return &cp
}

// Kind returns the construction state
func (h *Handle) Kind() HandleKind { return h.kind }

// Size returns the payload length for by-bytes handles, 0 otherwise
func (h *Handle) Size() int64 { return int64(len(h.data)) }

// ContentType returns the detected MIME type, if any
func (h *Handle) ContentType() string { return h.contentType }

// Bytes returns the pending payload. Nil for by-URL handles.
func (h *Handle) Bytes() []byte { return h.data }

// Progress returns the attached listener, or nil
func (h *Handle) Progress() ProgressFunc { return h.onProgress }

// ResolveURL returns the direct fetch URL of a stored asset
func (h *Handle) ResolveURL() (string, error) {
	if h.kind == HandleByURL {
		return h.url, nil
	}
	return "", ErrNotTransferred
}

// BlobReader fetches stored assets by URL
type BlobReader interface {
	FetchBlob(ctx context.Context, url string) ([]byte, error)
}

// ReadBytes returns the asset contents, fetching by URL when needed
func (h *Handle) ReadBytes(ctx context.Context, r BlobReader) ([]byte, error) {
	if h.kind == HandleByBytes {
		return h.data, nil
	}
	if r == nil {
		return nil, fmt.Errorf("read %s: no blob reader", h.url)
	}
	return r.FetchBlob(ctx, h.url)
}

// BeginTransfer claims a pending by-bytes handle for transfer.
// Fails with ErrHandleUnusable if it already transferred, failed or is in flight.
func (h *Handle) BeginTransfer() error {
	if h.kind != HandleByBytes {
		return fmt.Errorf("%w: not a by-bytes handle", ErrHandleUnusable)
	}
	if !h.state.CompareAndSwap(handlePending, handleTransferring) {
		return ErrHandleUnusable
	}
	return nil
}

// FinishTransfer records the outcome of a transfer started by BeginTransfer
func (h *Handle) FinishTransfer(err error) {
	if err != nil {
		h.state.Store(handleFailed)
		return
	}
	h.state.Store(handleTransferred)
}

// Usable reports whether the handle can still be submitted: by-URL handles
// always, by-bytes handles only while pending.
func (h *Handle) Usable() bool {
	if h.kind == HandleByURL {
		return true
	}
	return h.state.Load() == handlePending
}
