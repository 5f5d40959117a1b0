package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"go-llmops/client"
)

type dataset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	Description   string `json:"description"`
	DocumentCount int    `json:"document_count"`
	CreatedAt     int64  `json:"created_at"`
}

func newDatasetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasets",
		Aliases: []string{"ds"},
		Short:   "Manage knowledge-base datasets",
	}
	cmd.AddCommand(
		newDatasetsListCmd(a),
		newDatasetsGetCmd(a),
		newDatasetsCreateCmd(a),
		newDatasetsDeleteCmd(a),
	)
	return cmd
}

func newDatasetsListCmd(a *app) *cobra.Command {
	var (
		page, size int
		search     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			env, err := client.Get[client.Page[dataset]](ctx, a.dispatcher, "datasets",
				client.Params{}.
					Add("current_page", page).
					Add("page_size", size).
					Add("search_word", search))
			if err != nil {
				return err
			}

			rows := pterm.TableData{{"ID", "Name", "Documents", "Created"}}
			for _, d := range env.Data.List {
				rows = append(rows, []string{
					d.ID,
					d.Name,
					strconv.Itoa(d.DocumentCount),
					time.Unix(d.CreatedAt, 0).Format(time.DateTime),
				})
			}
			if err := pterm.DefaultTable.WithHasHeader(true).WithData(rows).Render(); err != nil {
				return err
			}

			p := env.Data.Paginator
			pterm.Info.Printfln("page %d/%d, %d datasets", p.CurrentPage, p.TotalPage, p.TotalRecord)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	cmd.Flags().StringVar(&search, "search", "", "filter by name")
	return cmd
}

func newDatasetsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			env, err := client.Get[dataset](ctx, a.dispatcher, "datasets/"+args[0], nil)
			if err != nil {
				return err
			}
			return renderDataset(env.Data)
		},
	}
}

func newDatasetsCreateCmd(a *app) *cobra.Command {
	var req struct {
		Name        string `json:"name"`
		Icon        string `json:"icon,omitempty"`
		Description string `json:"description,omitempty"`
	}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			env, err := client.Post[dataset](ctx, a.dispatcher, "datasets", req)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("created dataset %s", env.Data.ID)
			return renderDataset(env.Data)
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "dataset name")
	cmd.Flags().StringVar(&req.Icon, "icon", "", "icon URL")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	return cmd
}

func newDatasetsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if err := deleteDataset(ctx, a.dispatcher, args[0]); err != nil {
				return err
			}
			pterm.Success.Printfln("deleted dataset %s", args[0])
			return nil
		},
	}
}

func deleteDataset(ctx context.Context, d *client.Dispatcher, id string) error {
	_, err := client.Post[map[string]any](ctx, d, fmt.Sprintf("datasets/%s/delete", id), nil)
	return err
}

func renderDataset(d dataset) error {
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"ID", d.ID},
		{"Name", d.Name},
		{"Description", d.Description},
		{"Documents", strconv.Itoa(d.DocumentCount)},
		{"Created", time.Unix(d.CreatedAt, 0).Format(time.DateTime)},
	}).Render()
}
