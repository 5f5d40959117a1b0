package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-llmops/client"
)

func newStreamCmd(a *app) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:     "stream <path> [json|-]",
		Short:   "Open an event stream and print every event as it arrives",
		Example: "  llmops stream apps/123/debug '{\"query\":\"hello\"}'",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &client.RequestConfig{
				Method: client.Method(strings.ToUpper(method)),
				Path:   args[0],
			}
			if len(args) == 2 {
				raw, err := readBody(args[1], cmd.InOrStdin())
				if err != nil {
					return err
				}
				cfg.Body = raw
			}

			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			return a.consume(ctx, cfg, func(ev client.StreamEvent) {
				fmt.Fprintf(out, "%s %s\n", pterm.FgCyan.Sprint(ev.Event), compact(ev.Data))
			})
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", "POST", "HTTP method used to open the stream")
	return cmd
}

// consume opens a stream and feeds onEvent until it ends. An interrupt
// closes the stream and is not reported as a failure.
func (a *app) consume(ctx context.Context, cfg *client.RequestConfig, onEvent func(client.StreamEvent)) error {
	s, err := a.dispatcher.Stream(ctx, cfg)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	err = s.Consume(onEvent)
	if err != nil && ctx.Err() != nil {
		a.logger.Debug("[cli] stream interrupted", zap.Error(err))
		return nil
	}
	return err
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
