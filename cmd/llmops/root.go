package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-llmops/client"
	"go-llmops/config"
	"go-llmops/logging"
)

type globalFlags struct {
	ConfigPath string
	Prefix     string
	Timeout    time.Duration
	Token      string
	Verbose    bool
}

// app holds what every subcommand needs once flags and config are resolved.
type app struct {
	flags      globalFlags
	cfg        *config.Config
	logger     *zap.Logger
	dispatcher *client.Dispatcher
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "llmops",
		Short: "Talk to the LLMOps API from the terminal",
		Long: `llmops sends requests to the LLMOps API and renders the
response envelope. Failures are shown once, the same way the web client
notifies its users. Event-stream endpoints are printed as they arrive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.ConfigPath, "config", "", "config file (default: llmops.json in the project root)")
	pf.StringVar(&a.flags.Prefix, "prefix", "", "API prefix, overrides api_prefix")
	pf.DurationVar(&a.flags.Timeout, "timeout", 0, "request deadline, overrides timeout_ms")
	pf.StringVar(&a.flags.Token, "token", "", "bearer access token, overrides access_token")
	pf.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newGetCmd(a),
		newPostCmd(a),
		newStreamCmd(a),
		newDebugCmd(a),
		newDatasetsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	path := config.Path(a.flags.ConfigPath)

	// config warnings go through a bootstrap logger until the real one exists
	boot, err := logging.New(config.Default().Log)
	if err != nil {
		return err
	}
	a.cfg = config.Load(path, boot)

	if a.flags.Verbose {
		a.cfg.Log.Level = "debug"
	}
	a.logger, err = logging.New(a.cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	opts := client.Options{
		Prefix:  a.cfg.APIPrefix,
		Timeout: a.cfg.Timeout(),
		Credentials: client.Credentials{
			AccessToken: a.cfg.AccessToken,
		},
		Logger: a.logger,
	}
	if a.flags.Prefix != "" {
		opts.Prefix = a.flags.Prefix
	}
	if a.flags.Timeout > 0 {
		opts.Timeout = a.flags.Timeout
	}
	if a.flags.Token != "" {
		opts.Credentials.AccessToken = a.flags.Token
	}
	if ck := a.cfg.SessionCookie; ck != nil {
		opts.Credentials.SessionCookie = &http.Cookie{Name: ck.Name, Value: ck.Value}
	}

	notifier := client.NewBusNotifier(nil)
	if err := notifier.Bus().Subscribe(client.TopicNotifyError, func(msg string) {
		pterm.Error.Println(msg)
	}); err != nil {
		return err
	}
	opts.Notifier = notifier

	a.dispatcher, err = client.NewDispatcher(opts)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	a.logger.Debug("[cli] ready",
		zap.String("config", path),
		zap.String("prefix", opts.Prefix),
		zap.Duration("timeout", opts.Timeout),
	)
	return nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
