// Package player provides the ordered playback queue for translated clips.
//
// Clips play strictly in arrival order with at most one clip active at a time
// and a fixed silence gap between consecutive clips. A clip that fails to
// decode or play is logged and skipped; the queue always advances. Per-clip
// decoder state is scoped to the clip being played and released before the
// next one starts.
package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dragoon4890/siren/pkg/audio"
)

// Clip formats understood by the queue. Opus clips are decoded to PCM before
// being handed to the output; all other formats pass through untouched.
const (
	FormatOpus  = "opus"
	FormatPCM16 = "pcm16"
	FormatMP3   = "mp3"
	FormatWAV   = "wav"
)

const (
	// DefaultGap is the silence inserted between consecutive clips.
	DefaultGap = 100 * time.Millisecond

	// defaultQueueCap is the initial capacity hint for the clip queue.
	defaultQueueCap = 16
)

// Item is one clip scheduled for playback.
type Item struct {
	// ID is an optional label used in log messages.
	ID string

	// Data is the encoded clip payload.
	Data []byte

	// Format is one of the Format* constants.
	Format string

	// SampleRate and Channels describe the PCM layout of the clip (after
	// decoding, for compressed formats).
	SampleRate int
	Channels   int
}

// Output receives decoded clips one at a time from the queue's dispatch
// goroutine. Play must block until the clip has finished playing (or ctx is
// cancelled) — the queue relies on this to enforce single-clip playback.
//
// The supplied ctx is cancelled when the queue is closed; an external watchdog
// that wraps Output may impose per-clip deadlines on top of it.
type Output interface {
	Play(ctx context.Context, item Item) error
}

// OutputFunc adapts a function to the [Output] interface.
type OutputFunc func(ctx context.Context, item Item) error

// Play implements [Output].
func (f OutputFunc) Play(ctx context.Context, item Item) error { return f(ctx, item) }

// Option configures a [Queue] during construction.
type Option func(*Queue)

// WithGap sets the silence duration inserted between consecutive clips.
// A gap of zero disables inter-clip silence entirely.
func WithGap(d time.Duration) Option {
	return func(q *Queue) {
		q.gap = d
	}
}

// WithQueueCapacity sets the initial capacity hint for the internal clip
// queue. This does not impose a hard limit — the queue grows as needed.
func WithQueueCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.items = make([]Item, 0, n)
		}
	}
}

// Queue is the ordered playback scheduler. All exported methods are safe for
// concurrent use.
type Queue struct {
	output Output

	ctx    context.Context // cancelled by Close; passed to Output.Play
	cancel context.CancelFunc

	mu      sync.Mutex
	items   []Item
	gap     time.Duration
	playing bool
	closed  bool

	notify chan struct{} // signalled when a new clip is enqueued
	done   chan struct{} // closed by Close to stop the dispatch goroutine
	idle   chan struct{} // closed when the dispatch goroutine exits
}

// New creates a [Queue] that delivers clips to output. The queue starts a
// background dispatch goroutine immediately; call [Queue.Close] to stop it.
//
// output must not be nil; it is called sequentially from the dispatch
// goroutine, never concurrently.
func New(output Output, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		output: output,
		ctx:    ctx,
		cancel: cancel,
		items:  make([]Item, 0, defaultQueueCap),
		gap:    DefaultGap,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		idle:   make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	go q.dispatch()
	return q
}

// Enqueue appends item to the playback queue. Clips play in the exact order
// they were enqueued, regardless of size or format. Enqueue after Close is a
// no-op.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, item)

	// Wake the dispatch goroutine.
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of clips waiting in the queue, excluding one that is
// currently playing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Playing reports whether a clip is currently being played.
func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// SetGap configures the silence duration inserted between consecutive clips.
// Changes take effect before the next clip starts.
func (q *Queue) SetGap(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gap = d
}

// Close stops the dispatch goroutine, cancels any clip in flight, and discards
// the remaining queue. Close is idempotent — subsequent calls are no-ops and
// return nil.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	q.cancel()
	close(q.done)
	<-q.idle
	return nil
}

// dispatch is the background goroutine that plays clips head-of-queue first.
// It runs until [Queue.Close] is called.
func (q *Queue) dispatch() {
	defer close(q.idle)

	var lastPlayed bool // true if a clip just finished (for gap insertion)

	// Reusable timer for inter-clip gaps.
	gapTimer := time.NewTimer(0)
	if !gapTimer.Stop() {
		<-gapTimer.C
	}
	defer gapTimer.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-q.notify:
		}

		for {
			item, ok := q.dequeue()
			if !ok {
				break
			}

			if lastPlayed {
				gapDur := q.currentGap()
				if gapDur > 0 {
					gapTimer.Reset(gapDur)
					select {
					case <-q.done:
						if !gapTimer.Stop() {
							<-gapTimer.C
						}
						q.setPlaying(false)
						return
					case <-gapTimer.C:
					}
				}
			}

			q.play(item)
			lastPlayed = true
			q.setPlaying(false)
		}
	}
}

// dequeue pops the head clip and marks the queue as playing.
// Returns ok=false if the queue is empty.
func (q *Queue) dequeue() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.playing = true
	return item, true
}

// play decodes item if needed and hands it to the output. Errors are logged
// and swallowed so the queue advances past a bad clip.
func (q *Queue) play(item Item) {
	if item.Format == FormatOpus {
		// The decoder carries codec state for exactly one clip; it goes out
		// of scope (and is collected) before the next clip starts.
		dec, err := audio.NewOpusDecoder(item.SampleRate, item.Channels)
		if err != nil {
			slog.Warn("playback: create opus decoder failed, skipping clip", "clip", item.ID, "err", err)
			return
		}
		pcm, err := dec.DecodeClip(item.Data)
		if err != nil {
			slog.Warn("playback: opus decode failed, skipping clip", "clip", item.ID, "err", err)
			return
		}
		item.Data = pcm
		item.Format = FormatPCM16
	}

	if err := q.output.Play(q.ctx, item); err != nil {
		slog.Warn("playback: clip failed", "clip", item.ID, "err", err)
	}
}

func (q *Queue) setPlaying(v bool) {
	q.mu.Lock()
	q.playing = v
	q.mu.Unlock()
}

func (q *Queue) currentGap() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gap
}
