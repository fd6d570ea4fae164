package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/CareClaw/CareClaw/internal/bus"
	"github.com/CareClaw/CareClaw/internal/config"
	"github.com/CareClaw/CareClaw/internal/envelope"
)

var (
	chatMessage string
	chatID      string
	chatLocale  string
	chatTimeout time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send one message to the agent and print the reply",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send")
	chatCmd.Flags().StringVarP(&chatID, "chat", "c", "default", "Chat id (conversation key)")
	chatCmd.Flags().StringVarP(&chatLocale, "locale", "l", "", "Locale code (e.g. en-US, ta-IN)")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 2*time.Minute, "How long to wait for the final answer")
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatMessage == "" {
		return fmt.Errorf("--message is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
	defer cancel()

	final := make(chan string, 1)
	rt.bus.SubscribeUpdates("cli", func(msg *bus.UpdateMessage) {
		env := envelope.Decode(msg.Content)
		if msg.Final {
			select {
			case final <- env.Text:
			default:
			}
			return
		}
		fmt.Fprintf(os.Stderr, "\r%s %s", color.YellowString("…"), env.Text)
	})
	rt.bus.SubscribeStatus("cli", func(ev *bus.StatusEvent) {
		if ev.Type == bus.StatusUpdate && ev.State == bus.AIStateExternalSources {
			fmt.Fprintf(os.Stderr, "%s consulting external sources\n", color.YellowString("…"))
		}
	})

	go rt.bus.Dispatch(ctx)
	go rt.loop.Run(ctx)

	body, err := json.Marshal(envelope.Envelope{Text: chatMessage, Locale: chatLocale})
	if err != nil {
		return err
	}

	rt.bus.PublishInbound(&bus.InboundMessage{
		Channel:   "cli",
		ChatID:    chatID,
		SenderID:  "cli-user",
		MessageID: uuid.NewString(),
		TraceID:   uuid.NewString(),
		Content:   string(body),
	})

	select {
	case text := <-final:
		fmt.Fprintln(os.Stderr)
		fmt.Println(color.GreenString("CareClaw:"), text)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for a reply")
	}
}
