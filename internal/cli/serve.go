package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/CareClaw/CareClaw/internal/channels"
	"github.com/CareClaw/CareClaw/internal/config"
)

// sessionReapInterval controls how often idle sessions are disposed.
const sessionReapInterval = 10 * time.Minute

// sessionMaxIdle is how long a chat can sit quiet before its session goes.
const sessionMaxIdle = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent with all enabled channels",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var active []channels.Channel
	if cfg.Channels.WhatsApp.Enabled {
		active = append(active, channels.NewWhatsAppChannel(cfg.Channels.WhatsApp, rt.bus))
	}
	if cfg.Channels.Kafka.Enabled {
		active = append(active, channels.NewKafkaChannel(cfg.Channels.Kafka, rt.bus))
	}
	if len(active) == 0 {
		return fmt.Errorf("no channels enabled: enable whatsapp or kafka in config")
	}

	for _, ch := range active {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", ch.Name(), err)
		}
		defer ch.Stop()
		fmt.Printf("%s channel %s started\n", color.GreenString("✓"), ch.Name())
	}

	go rt.bus.Dispatch(ctx)
	go func() {
		ticker := time.NewTicker(sessionReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rt.loop.Sessions().Reap(sessionMaxIdle)
			}
		}
	}()

	fmt.Printf("%s careclaw agent running (model %s)\n", color.GreenString("✓"), cfg.Model.Name)
	return rt.loop.Run(ctx)
}
