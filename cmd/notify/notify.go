package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mhews/mhews/internal/app"
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/notification"
)

// Command returns a cobra command that broadcasts a MANUAL message through
// the configured SMS gateway.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		message    string
		recipients []string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a manual SMS broadcast",
		Long: `Send an operator message to the default recipients, or to the numbers given with --to.

Manual messages have no cooldown and are never suppressed, so repeating a
broadcast sends it again.

Examples:
  mhews notify --message="Evacuate the river bank"
  mhews notify --message="Drill at 10:00" --to=+15550001111 --to=+15550002222`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.BuildNotifier(settings)
			if err != nil {
				return err
			}
			defer svc.Close()

			return send(cmd.Context(), cmd.OutOrStdout(), svc.Engine, message, recipients)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Message body")
	cmd.Flags().StringSliceVar(&recipients, "to", nil, "Recipient phone number (repeatable, defaults to configured recipients)")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

type manualSender interface {
	ManualSend(ctx context.Context, message string, recipients []string) (notification.DispatchResult, error)
}

func send(ctx context.Context, out io.Writer, sender manualSender, message string, recipients []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := sender.ManualSend(ctx, message, recipients)
	if err != nil {
		return err
	}
	if !result.Sent {
		return fmt.Errorf("message not sent: %s", result.Reason)
	}

	fmt.Fprintf(out, "Sent to %d recipient(s)\n", result.Count)
	for _, r := range result.Results {
		fmt.Fprintf(out, "  %-16s %-10s %s\n", r.To, strings.ToLower(r.Status), r.SID)
	}
	return nil
}
