package tui

import (
	"sync"

	"github.com/mmcdole/marquee/internal/domain"
)

// ChannelObserver adapts per-asset progress callbacks to a channel for Bubble Tea.
type ChannelObserver struct {
	ch   chan ProgressMsg
	stop chan struct{}
	once sync.Once
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{
		ch:   make(chan ProgressMsg, buffer),
		stop: make(chan struct{}),
	}
}

// Events is the receiving end, read by the upload model
func (o *ChannelObserver) Events() <-chan ProgressMsg { return o.ch }

// Track returns the progress callback for one asset row. Intermediate values
// are dropped when the channel is full; completion is always delivered
// unless the observer was closed.
func (o *ChannelObserver) Track(asset int) domain.ProgressFunc {
	return func(pct float64) {
		msg := ProgressMsg{Asset: asset, Percent: pct}
		if pct >= 100 {
			select {
			case o.ch <- msg:
			case <-o.stop:
			}
			return
		}
		select {
		case o.ch <- msg:
		default:
		}
	}
}

// Close releases any sender blocked on delivery
func (o *ChannelObserver) Close() {
	o.once.Do(func() { close(o.stop) })
}
