// Command geyser simulates a fountain-coded file transfer
// over a lossy channel within a single process,
// and writes the reconstructed file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gordian-engine/geyser/fountain"
	"github.com/gordian-engine/geyser/gcontrol"
	"github.com/gordian-engine/geyser/gpipe"
	"github.com/gordian-engine/geyser/transfer"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	lvl, _ := cfg.level() // Already validated.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	enc, err := fountain.NewEncoder(data, fountain.EncoderConfig{
		BlockSize:   cfg.BlockSize,
		Seed:        cfg.Seed,
		ParityRatio: cfg.ParityRatio,
	})
	if err != nil {
		return err
	}
	dec, err := fountain.NewDecoder(enc.Header())
	if err != nil {
		return err
	}

	ch, err := transfer.NewLossyChannel(cfg.ChannelSeed, cfg.DropRate)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctrl := gpipe.New[[]byte]()
	ctrlDone := make(chan struct{})
	go watchControl(ctx, log.With("sys", "control"), ctrl, ctrlDone)

	res, runErr := transfer.Run(ctx, log.With("sys", "transfer"), enc, dec, transfer.Config{
		Interval:      cfg.Interval.Duration,
		MaxTicks:      cfg.MaxTicks,
		MaxOverhead:   cfg.MaxOverhead,
		Channel:       ch,
		Control:       ctrl,
		ProgressEvery: cfg.ProgressEvery,
	})

	// The final control message is already queued.
	<-ctrlDone

	sent, dropped := ch.Stats()
	log.Info("Channel stats", "sent", sent, "dropped", dropped)

	if runErr != nil {
		return runErr
	}

	if err := os.WriteFile(cfg.Output, res.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	log.Info("Wrote reconstructed file", "path", cfg.Output, "bytes", len(res.Data))
	return nil
}

// watchControl logs control messages from the transfer
// until it sees the final one or ctx is canceled.
func watchControl(
	ctx context.Context,
	log *slog.Logger,
	ctrl *gpipe.Pipe[[]byte],
	done chan<- struct{},
) {
	defer close(done)

	var dec gcontrol.Decoder
	for {
		b, err := ctrl.Recv(ctx)
		if err != nil {
			// Canceled: drain whatever was already sent.
			if ctrl.Len() == 0 {
				return
			}
			b, err = ctrl.Recv(context.Background())
			if err != nil {
				return
			}
		}

		m, err := dec.Decode(b)
		if err != nil {
			log.Warn("Failed to decode control message", "err", err)
			continue
		}

		switch m.Kind {
		case gcontrol.KindHeader:
			log.Info(
				"Transfer header",
				"length", m.Header.Length,
				"source_blocks", m.Header.NumSource(),
				"parity_blocks", m.Header.NumParity,
			)
		case gcontrol.KindProgress:
			log.Info(
				"Progress",
				"tick", m.Tick,
				"resolved", m.Resolved,
				"total", m.Total,
				"have", m.Have.Count(),
			)
		case gcontrol.KindComplete:
			log.Info("Complete", "tick", m.Tick)
			return
		case gcontrol.KindAbort:
			log.Warn("Aborted", "tick", m.Tick, "reason", m.Reason)
			return
		}
	}
}
