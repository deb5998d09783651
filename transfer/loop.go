package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordian-engine/geyser/fountain"
	"github.com/gordian-engine/geyser/gcontrol"
	"github.com/gordian-engine/geyser/gpipe"
	"github.com/gordian-engine/geyser/gpubsub"
)

// Config is the configuration for [NewLoop] and [Run].
// The zero value runs ticks back to back with no limits
// over a lossless in-memory channel.
type Config struct {
	// Delay between ticks in [Run].
	// Zero runs ticks back to back.
	Interval time.Duration

	// Fail with [TickLimitError] after this many ticks
	// without completing. Zero means unlimited.
	MaxTicks uint64

	// Fail with [OverheadLimitError] once the total packet bytes sent
	// exceed this multiple of the message length.
	// Zero means unlimited.
	MaxOverhead float64

	// Channel between encoder and decoder.
	// Nil delivers every packet unchanged.
	Channel Channel

	// If set, control messages are sent here as encoded [gcontrol.Message] values:
	// a header at the start, progress every ProgressEvery ticks,
	// and a completion or abort at the end.
	Control *gpipe.Pipe[[]byte]

	// If set, progress snapshots are published here
	// every ProgressEvery ticks and once when the transfer ends.
	Progress *gpubsub.Stream[Progress]

	// How often to report progress, in ticks.
	// Zero only reports the final state.
	ProgressEvery uint64
}

// Loop runs the ticks of one transfer.
// A Loop is not safe for concurrent use.
type Loop struct {
	enc *fountain.Encoder
	dec *fountain.Decoder

	header fountain.Header
	ch     Channel

	ticks     uint64
	delivered uint64
	rejected  uint64
	bytesSent uint64
}

// NewLoop returns a loop that moves blocks from enc to dec.
// Only Channel from cfg is used; the other fields apply to [Run].
//
// dec must have been created from enc's header.
func NewLoop(enc *fountain.Encoder, dec *fountain.Decoder, cfg Config) *Loop {
	if enc.Header() != dec.Header() {
		panic(fmt.Errorf(
			"BUG: decoder header %+v does not match encoder header %+v",
			dec.Header(), enc.Header(),
		))
	}

	ch := cfg.Channel
	if ch == nil {
		ch = ChannelFunc(func(b []byte) ([]byte, bool) { return b, true })
	}

	return &Loop{
		enc:    enc,
		dec:    dec,
		header: enc.Header(),
		ch:     ch,
	}
}

// Step runs one tick: encode the next block,
// send it through the channel, and ingest whatever arrives.
//
// Packets lost in the channel, or damaged so that they no longer parse
// or no longer carry this transfer's header, are counted and skipped.
// The only errors are encoding failures and decoder integrity violations.
func (l *Loop) Step() (fountain.Status, error) {
	l.ticks++

	raw, err := fountain.NewPacket(l.header, l.enc.Next()).Encode()
	if err != nil {
		return l.dec.Status(), err
	}
	l.bytesSent += uint64(len(raw))

	raw, ok := l.ch.Transmit(raw)
	if !ok {
		return l.dec.Status(), nil
	}

	p, err := fountain.DecodePacket(raw)
	if err != nil || p.Header != l.header {
		l.rejected++
		return l.dec.Status(), nil
	}

	l.delivered++
	return l.dec.Ingest(p.Block())
}

// Progress returns a snapshot of l's counters and decoder state.
func (l *Loop) Progress() Progress {
	return Progress{
		Tick:      l.ticks,
		Delivered: l.delivered,
		BytesSent: l.bytesSent,
		Resolved:  l.dec.Resolved(),
		Total:     l.header.NumSource(),
		Pending:   l.dec.Pending(),
		Status:    l.dec.Status(),
	}
}

// Rejected is the number of packets that arrived but could not be used.
func (l *Loop) Rejected() uint64 {
	return l.rejected
}

func (l *Loop) overhead() float64 {
	return float64(l.bytesSent) / float64(l.header.Length)
}

// Result is the outcome of a completed [Run].
type Result struct {
	// The reconstructed message.
	Data []byte

	Ticks     uint64
	Delivered uint64
	BytesSent uint64
}

// Overhead is the total packet bytes sent divided by the message length.
func (r Result) Overhead() float64 {
	if len(r.Data) == 0 {
		return 0
	}
	return float64(r.BytesSent) / float64(len(r.Data))
}

// Run ticks until dec reconstructs the message encoded by enc,
// and returns the reconstructed bytes.
//
// Run stops early with an error if ctx is canceled,
// if a configured limit is reached,
// or if the decoder reports an integrity violation.
func Run(
	ctx context.Context,
	log *slog.Logger,
	enc *fountain.Encoder,
	dec *fountain.Decoder,
	cfg Config,
) (Result, error) {
	h := enc.Header()
	log = log.With(
		"length", h.Length,
		"block_size", h.BlockSize,
		"source_blocks", h.NumSource(),
		"parity_blocks", h.NumParity,
	)

	r := runner{
		log:  log,
		loop: NewLoop(enc, dec, cfg),
		cfg:  cfg,
		ps:   cfg.Progress,
	}
	return r.run(ctx)
}

type runner struct {
	log  *slog.Logger
	loop *Loop
	cfg  Config

	// Tail of the progress stream.
	ps *gpubsub.Stream[Progress]

	ctrl gcontrol.Encoder
}

func (r *runner) run(ctx context.Context) (Result, error) {
	r.sendControl(gcontrol.Message{
		Kind:   gcontrol.KindHeader,
		Header: r.loop.header,
	})

	r.log.Info("Starting transfer")

	var tick <-chan time.Time
	if r.cfg.Interval > 0 {
		t := time.NewTicker(r.cfg.Interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return r.abort(fmt.Errorf(
					"context canceled while waiting for next tick: %w",
					context.Cause(ctx),
				))
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return r.abort(fmt.Errorf(
				"context canceled between ticks: %w", context.Cause(ctx),
			))
		}

		st, err := r.loop.Step()
		if err != nil {
			return r.abort(fmt.Errorf("transfer failed at tick %d: %w", r.loop.ticks, err))
		}

		if st == fountain.StatusComplete {
			return r.complete()
		}

		if every := r.cfg.ProgressEvery; every > 0 && r.loop.ticks%every == 0 {
			r.reportProgress()
		}

		if limit := r.cfg.MaxTicks; limit > 0 && r.loop.ticks >= limit {
			return r.abort(TickLimitError{
				Ticks:    r.loop.ticks,
				Resolved: r.loop.dec.Resolved(),
				Total:    r.loop.header.NumSource(),
			})
		}

		if limit := r.cfg.MaxOverhead; limit > 0 && r.loop.overhead() > limit {
			return r.abort(OverheadLimitError{
				BytesSent: r.loop.bytesSent,
				Length:    r.loop.header.Length,
				Max:       limit,
			})
		}
	}
}

func (r *runner) complete() (Result, error) {
	data, err := r.loop.dec.Data()
	if err != nil {
		return r.abort(fmt.Errorf("failed to assemble decoded message: %w", err))
	}

	p := r.loop.Progress()
	r.publishProgress(p)
	r.sendControl(gcontrol.Message{
		Kind:     gcontrol.KindComplete,
		Tick:     p.Tick,
		Resolved: p.Resolved,
		Total:    p.Total,
	})

	res := Result{
		Data:      data,
		Ticks:     p.Tick,
		Delivered: p.Delivered,
		BytesSent: p.BytesSent,
	}

	r.log.Info(
		"Transfer complete",
		"ticks", res.Ticks,
		"delivered", res.Delivered,
		"rejected", r.loop.rejected,
		"overhead", res.Overhead(),
	)

	return res, nil
}

func (r *runner) abort(err error) (Result, error) {
	p := r.loop.Progress()
	r.publishProgress(p)
	r.sendControl(gcontrol.Message{
		Kind:     gcontrol.KindAbort,
		Tick:     p.Tick,
		Resolved: p.Resolved,
		Total:    p.Total,
		Reason:   err.Error(),
	})

	if errors.As(err, new(fountain.IntegrityViolationError)) {
		r.log.Warn("Transfer aborted on integrity violation", "err", err)
	} else {
		r.log.Info(
			"Transfer stopped before completion",
			"ticks", p.Tick,
			"resolved", p.Resolved,
			"err", err,
		)
	}

	return Result{}, err
}

func (r *runner) reportProgress() {
	p := r.loop.Progress()
	r.publishProgress(p)

	r.log.Debug(
		"Transfer progress",
		"tick", p.Tick,
		"resolved", p.Resolved,
		"pending", p.Pending,
	)

	if r.cfg.Control == nil {
		return
	}
	r.sendControl(gcontrol.Message{
		Kind:     gcontrol.KindProgress,
		Tick:     p.Tick,
		Resolved: p.Resolved,
		Total:    p.Total,
		Have:     r.loop.dec.Have(),
	})
}

func (r *runner) publishProgress(p Progress) {
	if r.ps == nil {
		return
	}
	r.ps.Publish(p)
	r.ps = r.ps.Next
}

func (r *runner) sendControl(m gcontrol.Message) {
	if r.cfg.Control == nil {
		return
	}

	b, err := r.ctrl.Encode(m)
	if err != nil {
		// Only reachable with a bitset too large to describe,
		// which a valid header rules out.
		panic(fmt.Errorf("BUG: failed to encode %s control message: %w", m.Kind, err))
	}
	r.cfg.Control.Send(b)
}
