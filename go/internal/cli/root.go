package cli

import (
	"errors"
	"strings"

	"github.com/mcdev12/focusnest/go/internal/buddy"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

const (
	keyServer      = "server"
	keyParticipant = "participant"
	keyScheme      = "scheme"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cfg := viper.New()
	cfg.SetEnvPrefix("FOCUSNEST")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	cfg.SetDefault(keyServer, "http://localhost:8080")
	cfg.SetDefault(keyScheme, session.DefaultDeepLinkScheme)

	var configFile string
	rootCmd := &cobra.Command{
		Use:           "focusctl",
		Short:         "Focus with a friend from the terminal",
		Long:          "focusctl creates, joins and watches paired focus sessions on a focusnest server.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile == "" {
				return nil
			}
			cfg.SetConfigFile(configFile)
			return cfg.ReadInConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	flags.String(keyServer, "", "focusnest server URL (env FOCUSNEST_SERVER)")
	flags.String(keyParticipant, "", "your participant id (env FOCUSNEST_PARTICIPANT)")
	flags.String(keyScheme, "", "deep link scheme (env FOCUSNEST_SCHEME)")
	for _, key := range []string{keyServer, keyParticipant, keyScheme} {
		_ = cfg.BindPFlag(key, flags.Lookup(key))
	}

	env := &environment{cfg: cfg}
	rootCmd.AddCommand(
		newVersionCmd(),
		newCreateCmd(env),
		newJoinCmd(env),
		newStartCmd(env),
		newGetCmd(env),
		newAwayCmd(env),
		newBackCmd(env),
		newCompleteCmd(env),
		newWatchCmd(env),
		newLinkCmd(env),
	)
	return rootCmd
}

// environment resolves settings lazily so flags, env and config file all apply.
type environment struct {
	cfg *viper.Viper
}

func (e *environment) client() *buddy.Client {
	return buddy.NewClient(e.cfg.GetString(keyServer), buddy.WithParticipant(e.cfg.GetString(keyParticipant)))
}

func (e *environment) participant() (string, error) {
	id := strings.TrimSpace(e.cfg.GetString(keyParticipant))
	if id == "" {
		return "", errors.New("participant id is required (--participant or FOCUSNEST_PARTICIPANT)")
	}
	return id, nil
}

func (e *environment) scheme() string {
	return e.cfg.GetString(keyScheme)
}

// noticeError shows the user-facing notice while keeping the cause for errors.Is.
type noticeError struct {
	err error
}

func (e *noticeError) Error() string { return buddy.Notice(e.err) }

func (e *noticeError) Unwrap() error { return e.err }

func userError(err error) error {
	if err == nil {
		return nil
	}
	return &noticeError{err: err}
}
