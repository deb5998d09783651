package transfer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gordian-engine/geyser/fountain"
	"github.com/gordian-engine/geyser/gcontrol"
	"github.com/gordian-engine/geyser/gpipe"
	"github.com/gordian-engine/geyser/gpubsub"
	"github.com/gordian-engine/geyser/internal/gtest"
	"github.com/gordian-engine/geyser/transfer"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T, data []byte, cfg fountain.EncoderConfig) (*fountain.Encoder, *fountain.Decoder) {
	t.Helper()

	enc, err := fountain.NewEncoder(data, cfg)
	require.NoError(t, err)
	dec, err := fountain.NewDecoder(enc.Header())
	require.NoError(t, err)
	return enc, dec
}

func TestRun_lossless(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 2500)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 1000, Seed: 10})

	res, err := transfer.Run(context.Background(), gtest.NewLogger(t), enc, dec, transfer.Config{})
	require.NoError(t, err)
	require.Equal(t, data, res.Data)
	require.Equal(t, res.Ticks, res.Delivered)
	require.Positive(t, res.BytesSent)
	require.Greater(t, res.Overhead(), 1.0)
}

func TestRun_lossyWithParity(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 50_000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 500, Seed: 4, ParityRatio: 0.1})

	ch, err := transfer.NewLossyChannel(1, 0.3)
	require.NoError(t, err)

	res, err := transfer.Run(context.Background(), gtest.NewLogger(t), enc, dec, transfer.Config{
		Channel:  ch,
		MaxTicks: 10_000,
	})
	require.NoError(t, err)
	require.Equal(t, data, res.Data)

	sent, dropped := ch.Stats()
	require.Equal(t, res.Ticks, sent)
	require.Equal(t, sent-dropped, res.Delivered)
	require.Positive(t, dropped)
}

func TestRun_tickLimit(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 10_000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 100})

	_, err := transfer.Run(context.Background(), gtest.NewLogger(t), enc, dec, transfer.Config{
		MaxTicks: 5,
	})
	var tl transfer.TickLimitError
	require.ErrorAs(t, err, &tl)
	require.Equal(t, uint64(5), tl.Ticks)
	require.Equal(t, 100, tl.Total)
	require.Less(t, tl.Resolved, 100)
}

func TestRun_overheadLimit(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 10_000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 100})

	// Every packet is lost, so the transfer can only end at the limit.
	drop := transfer.ChannelFunc(func([]byte) ([]byte, bool) { return nil, false })

	_, err := transfer.Run(context.Background(), gtest.NewLogger(t), enc, dec, transfer.Config{
		Channel:     drop,
		MaxOverhead: 2,
	})
	var ol transfer.OverheadLimitError
	require.ErrorAs(t, err, &ol)
	require.Equal(t, uint64(10_000), ol.Length)
	require.Greater(t, ol.BytesSent, uint64(20_000))
}

func TestRun_canceled(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 10_000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 100})

	cause := errors.New("stop now")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)

	_, err := transfer.Run(ctx, gtest.NewLogger(t), enc, dec, transfer.Config{})
	require.ErrorIs(t, err, cause)
	require.Zero(t, enc.NextIndex())
}

func TestRun_canceledWhileWaitingForTick(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 10_000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := transfer.Run(ctx, gtest.NewLogger(t), enc, dec, transfer.Config{
			Interval: time.Hour,
		})
		errCh <- err
	}()

	gtest.NotSending(t, errCh)
	cancel()
	require.ErrorIs(t, gtest.ReceiveSoon(t, errCh), context.Canceled)
}

func TestRun_integrityViolation(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 10_000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 100, Seed: 2})

	// Flip a payload byte of every packet after the first hundred.
	// The CBOR framing survives; the content does not.
	n := 0
	corrupt := transfer.ChannelFunc(func(b []byte) ([]byte, bool) {
		n++
		if n > 100 {
			b[len(b)-1] ^= 0xff
		}
		return b, true
	})

	_, err := transfer.Run(context.Background(), gtest.NewLogger(t), enc, dec, transfer.Config{
		Channel:  corrupt,
		MaxTicks: 10_000,
	})
	require.ErrorAs(t, err, new(fountain.IntegrityViolationError))
	require.ErrorIs(t, err, dec.Err())
}

func TestRun_controlMessages(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 5000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 100, Seed: 8})

	ctrl := gpipe.New[[]byte]()
	res, err := transfer.Run(context.Background(), gtest.NewLogger(t), enc, dec, transfer.Config{
		Control:       ctrl,
		ProgressEvery: 10,
	})
	require.NoError(t, err)

	ctx := context.Background()
	var msgs []gcontrol.Message
	for ctrl.Len() > 0 {
		b, err := ctrl.Recv(ctx)
		require.NoError(t, err)
		m, err := gcontrol.DecodeMessage(b)
		require.NoError(t, err)
		msgs = append(msgs, m)
	}

	require.GreaterOrEqual(t, len(msgs), 2)
	require.Equal(t, gcontrol.KindHeader, msgs[0].Kind)
	require.Equal(t, enc.Header(), msgs[0].Header)

	last := msgs[len(msgs)-1]
	require.Equal(t, gcontrol.KindComplete, last.Kind)
	require.Equal(t, res.Ticks, last.Tick)
	require.Equal(t, 50, last.Resolved)

	progress := msgs[1 : len(msgs)-1]
	require.Len(t, progress, int((res.Ticks-1)/10))
	var prevTick uint64
	for _, m := range progress {
		require.Equal(t, gcontrol.KindProgress, m.Kind)
		require.Greater(t, m.Tick, prevTick)
		require.Equal(t, uint(enc.Header().NumIntermediate()), m.Have.Len())
		require.Equal(t, uint(m.Resolved), m.Have.Count())
		prevTick = m.Tick
	}
}

func TestRun_progressStream(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 5000)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 100, Seed: 8})

	root := gpubsub.NewStream[transfer.Progress]()
	res, err := transfer.Run(context.Background(), gtest.NewLogger(t), enc, dec, transfer.Config{
		Progress:      root,
		ProgressEvery: 5,
	})
	require.NoError(t, err)

	snaps, tail := root.Published()
	gtest.NotSending(t, tail.Ready)
	require.Len(t, snaps, int(res.Ticks-1)/5+1)
	for i := 1; i < len(snaps); i++ {
		require.GreaterOrEqual(t, snaps[i].Tick, snaps[i-1].Tick)
	}

	last := snaps[len(snaps)-1]
	require.Equal(t, fountain.StatusComplete, last.Status)
	require.Equal(t, res.Ticks, last.Tick)
	require.Equal(t, 50, last.Resolved)
	require.Equal(t, 50, last.Total)
	require.Zero(t, last.Pending)
}

func TestLoop_Step(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 2500)
	enc, dec := newPair(t, data, fountain.EncoderConfig{BlockSize: 1000, Seed: 10})

	// Drop every other packet, and mangle one into garbage.
	n := 0
	ch := transfer.ChannelFunc(func(b []byte) ([]byte, bool) {
		n++
		switch {
		case n == 3:
			return []byte("garbage"), true
		case n%2 == 0:
			return nil, false
		default:
			return b, true
		}
	})
	l := transfer.NewLoop(enc, dec, transfer.Config{Channel: ch})

	for range 1000 {
		st, err := l.Step()
		require.NoError(t, err)
		if st == fountain.StatusComplete {
			break
		}
	}

	p := l.Progress()
	require.Equal(t, fountain.StatusComplete, p.Status)
	require.Equal(t, uint64(1), l.Rejected())
	require.Equal(t, (p.Tick+1)/2-1, p.Delivered)

	got, err := dec.Data()
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestNewLossyChannel_invalidRate(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{-0.1, 1, 2} {
		_, err := transfer.NewLossyChannel(0, r)
		require.Error(t, err)
	}
}
