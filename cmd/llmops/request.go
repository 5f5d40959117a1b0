package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"go-llmops/client"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "get <path> [key=value...]",
		Short:   "Send a GET request and print the envelope payload",
		Example: "  llmops get datasets current_page=1 page_size=20 search_word=",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			env, err := a.dispatcher.Execute(ctx, &client.RequestConfig{
				Method: client.MethodGet,
				Path:   args[0],
				Params: params,
			})
			if err != nil {
				return err
			}
			return printEnvelope(cmd, env)
		},
	}
}

func newPostCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "post <path> [json|-]",
		Short:   "Send a POST request with a JSON body and print the envelope payload",
		Example: "  llmops post datasets '{\"name\":\"FAQ\"}'\n  echo '{}' | llmops post datasets/123/delete -",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if len(args) == 2 {
				raw, err := readBody(args[1], cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = raw
			}

			ctx, cancel := signalContext()
			defer cancel()

			env, err := a.dispatcher.Execute(ctx, &client.RequestConfig{
				Method: client.MethodPost,
				Path:   args[0],
				Body:   body,
			})
			if err != nil {
				return err
			}
			return printEnvelope(cmd, env)
		},
	}
}

// parseParams turns key=value arguments into ordered query params.
func parseParams(args []string) (client.Params, error) {
	var params client.Params
	for _, kv := range args {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", kv)
		}
		params = params.Add(key, value)
	}
	return params, nil
}

// readBody returns the JSON body given inline or, for "-", on stdin.
func readBody(arg string, stdin io.Reader) (json.RawMessage, error) {
	raw := []byte(arg)
	if arg == "-" {
		var err error
		if raw, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func printEnvelope(cmd *cobra.Command, env *client.Envelope[json.RawMessage]) error {
	if env.Message != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), env.Message)
	}
	return printJSON(cmd.OutOrStdout(), env.Data)
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}
