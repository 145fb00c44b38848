package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusnest/go/internal/buddy"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/spf13/cobra"
)

func newWatchCmd(env *environment) *cobra.Command {
	var resync time.Duration
	cmd := &cobra.Command{
		Use:   "watch <link-or-id>",
		Short: "Follow a session and print the shared countdown until it completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			participantID, err := env.participant()
			if err != nil {
				return err
			}
			if resync <= 0 {
				return fmt.Errorf("--resync must be positive, got %s", resync)
			}
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := env.client()
			clock := clockwork.NewRealClock()
			clockSync := buddy.NewClockSync(client, clock)
			if _, err := clockSync.Sync(ctx); err != nil {
				return userError(err)
			}
			go clockSync.Run(ctx, resync)

			participant := buddy.NewParticipant(client, clockSync, clock, id, participantID)
			unsubscribe, err := participant.Attach(ctx)
			if err != nil {
				return userError(err)
			}
			defer unsubscribe()

			out := cmd.OutOrStdout()
			last := ""
			err = participant.Run(ctx, func(view buddy.View) {
				line := renderView(view)
				if line != last {
					fmt.Fprintln(out, line)
					last = line
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&resync, "resync", time.Minute, "how often to refresh the server clock offset")
	return cmd
}

func renderView(view buddy.View) string {
	if view.Expired {
		return "session expired"
	}
	s := view.Session
	if s == nil {
		return "loading"
	}

	friend := "friend: waiting"
	if s.FriendJoined() {
		friend = fmt.Sprintf("friend: %s (%d)", s.FriendStatus, s.FriendViolations)
	}
	people := fmt.Sprintf("creator: %s (%d) | %s", s.CreatorStatus, s.CreatorViolations, friend)

	switch s.Status {
	case models.SessionStatusWaiting:
		return fmt.Sprintf("[waiting] %s", people)
	case models.SessionStatusComplete:
		return fmt.Sprintf("[complete] %s", people)
	default:
		return fmt.Sprintf("[%s] %s", buddy.FormatRemaining(view.Remaining), people)
	}
}
