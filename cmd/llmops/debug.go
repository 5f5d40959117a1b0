package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-llmops/client"
)

// agentEvent is the payload of the app debug stream.
type agentEvent struct {
	ID      string  `json:"id"`
	TaskID  string  `json:"task_id"`
	Event   string  `json:"event"`
	Thought string  `json:"thought"`
	Answer  string  `json:"answer"`
	Latency float64 `json:"latency"`
}

func newDebugCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debug <app-id> <query...>",
		Short: "Chat with an app in debug mode, printing the answer as it streams",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			var last agentEvent

			err := a.consume(ctx, &client.RequestConfig{
				Method: client.MethodPost,
				Path:   "apps/" + args[0] + "/debug",
				Body:   map[string]string{"query": strings.Join(args[1:], " ")},
			}, func(ev client.StreamEvent) {
				var ae agentEvent
				if err := ev.Decode(&ae); err != nil {
					a.logger.Warn("[cli] unexpected debug payload", zap.String("event", ev.Event), zap.Error(err))
					return
				}
				last = ae

				switch ev.Event {
				case "agent_thought":
					pterm.Info.Println(ae.Thought)
				case "agent_message":
					fmt.Fprint(out, ae.Answer)
				case "agent_end":
					fmt.Fprintln(out)
				default:
					a.logger.Debug("[cli] skipping event", zap.String("event", ev.Event))
				}
			})
			if err != nil {
				return err
			}

			if last.TaskID != "" {
				pterm.Success.Printfln("task %s finished in %.2fs", last.TaskID, last.Latency)
			}
			return nil
		},
	}
}
