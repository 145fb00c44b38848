package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mcdev12/focusnest/go/internal/buddy"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/spf13/cobra"
)

func newCreateCmd(env *environment) *cobra.Command {
	var (
		task     string
		duration int
		id       string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and print the link to share with a friend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creator, err := env.participant()
			if err != nil {
				return err
			}

			client := env.client()
			s, err := client.CreateSession(cmd.Context(), session.CreateSessionRequest{
				ID:              id,
				CreatorID:       creator,
				Task:            task,
				DurationMinutes: duration,
			})
			if err != nil {
				return userError(err)
			}

			// The server's link wins unless the caller asked for another scheme
			link, ok := client.DeepLink(s.ID)
			if !ok || cmd.Flags().Changed(keyScheme) {
				link = session.BuildDeepLink(env.scheme(), s.ID)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\n", s.ID)
			fmt.Fprintf(out, "link: %s\n", link)
			fmt.Fprintf(out, "status: %s\n", s.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "what you will focus on")
	cmd.Flags().IntVar(&duration, "duration", 25, "countdown length in minutes")
	cmd.Flags().StringVar(&id, "id", "", "explicit session id (generated when empty)")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newJoinCmd(env *environment) *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "join <link-or-id>",
		Short: "Join a friend's session from their link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			friend, err := env.participant()
			if err != nil {
				return err
			}
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}

			s, err := env.client().JoinSession(cmd.Context(), session.JoinSessionRequest{
				SessionID:  id,
				FriendID:   friend,
				FriendTask: task,
			})
			if err != nil {
				return userError(err)
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "what you will focus on")
	return cmd
}

func newStartCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "start <link-or-id>",
		Short: "Start the shared countdown (creator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, err := env.participant()
			if err != nil {
				return err
			}
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}
			s, err := env.client().StartSession(cmd.Context(), session.StartSessionRequest{
				SessionID: id,
				CreatorID: creator,
			})
			if err != nil {
				return userError(err)
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newGetCmd(env *environment) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get <link-or-id>",
		Short: "Show a session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}
			client := env.client()
			s, err := client.GetSession(cmd.Context(), id)
			if err != nil {
				return userError(err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			printSession(cmd.OutOrStdout(), s)

			// Only the countdown needs the reconciled clock
			if s.Status == models.SessionStatusActive {
				clockSync := buddy.NewClockSync(client, nil)
				if _, err := clockSync.Sync(cmd.Context()); err == nil {
					remaining, _ := buddy.Remaining(s, clockSync.ServerNow())
					fmt.Fprintf(cmd.OutOrStdout(), "remaining: %s\n", buddy.FormatRemaining(remaining))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw record as JSON")
	return cmd
}

func newAwayCmd(env *environment) *cobra.Command {
	return newStatusCmd(env, "away <link-or-id>", "Report that you left the app", models.ParticipantStatusAway)
}

func newBackCmd(env *environment) *cobra.Command {
	return newStatusCmd(env, "back <link-or-id>", "Report that you are focused again", models.ParticipantStatusFocused)
}

func newStatusCmd(env *environment, use, short string, status models.ParticipantStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			participant, err := env.participant()
			if err != nil {
				return err
			}
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}
			s, err := env.client().ReportStatus(cmd.Context(), session.ReportStatusRequest{
				SessionID:     id,
				ParticipantID: participant,
				Status:        status,
			})
			if err != nil {
				return userError(err)
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newCompleteCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <link-or-id>",
		Short: "Mark a session complete once its countdown reached zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			participant, err := env.participant()
			if err != nil {
				return err
			}
			id, err := sessionArg(args[0])
			if err != nil {
				return err
			}
			s, err := env.client().CompleteSession(cmd.Context(), session.CompleteSessionRequest{
				SessionID:     id,
				ParticipantID: participant,
			})
			if err != nil {
				return userError(err)
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newLinkCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id>",
		Short: "Print the shareable deep link for a session id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.ValidateSessionID(args[0]); err != nil {
				return userError(err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), session.BuildDeepLink(env.scheme(), args[0]))
			return err
		},
	}
}

// sessionArg accepts a pasted deep link or a bare session id.
func sessionArg(arg string) (string, error) {
	id, err := session.ParseDeepLink(arg)
	if err != nil {
		return "", userError(fmt.Errorf("%w: %w", buddy.ErrInvalidLink, err))
	}
	return id, nil
}

func printSession(out io.Writer, s *models.Session) {
	fmt.Fprintf(out, "session: %s\n", s.ID)
	fmt.Fprintf(out, "status: %s\n", s.Status)
	fmt.Fprintf(out, "task: %s (%d min)\n", s.Task, s.DurationMinutes)
	fmt.Fprintf(out, "creator: %s [%s, %d violations]\n", s.CreatorID, s.CreatorStatus, s.CreatorViolations)
	if s.FriendJoined() {
		friendTask := ""
		if s.FriendTask != nil {
			friendTask = " on " + *s.FriendTask
		}
		fmt.Fprintf(out, "friend: %s%s [%s, %d violations]\n", *s.FriendID, friendTask, s.FriendStatus, s.FriendViolations)
	} else {
		fmt.Fprintln(out, "friend: waiting to join")
	}
}
