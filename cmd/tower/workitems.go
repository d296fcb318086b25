package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oriys/tower/internal/jobtracker"
	"github.com/oriys/tower/internal/output"
	"github.com/spf13/cobra"
)

// bridgeClient talks to a running `tower serve`.
type bridgeClient struct {
	baseURL string
	client  *http.Client
}

func newBridgeClient(baseURL string) *bridgeClient {
	return &bridgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and decodes a JSON response into out when out is
// non-nil and the bridge returned a body. It returns the status code.
func (c *bridgeClient) do(ctx context.Context, method, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("bridge error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *bridgeClient) List(ctx context.Context, state string) ([]*jobtracker.Record, error) {
	path := "/v1/workitems"
	if state != "" {
		path += "?state=" + url.QueryEscape(state)
	}
	var records []*jobtracker.Record
	_, err := c.do(ctx, http.MethodGet, path, &records)
	return records, err
}

func (c *bridgeClient) Get(ctx context.Context, id string) (*jobtracker.Record, error) {
	var rec jobtracker.Record
	if _, err := c.do(ctx, http.MethodGet, "/v1/workitems/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Abort aborts a running work item or removes a finished one. The record
// is nil when it was removed.
func (c *bridgeClient) Abort(ctx context.Context, id string) (*jobtracker.Record, error) {
	var rec jobtracker.Record
	code, err := c.do(ctx, http.MethodDelete, "/v1/workitems/"+url.PathEscape(id), &rec)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNoContent {
		return nil, nil
	}
	return &rec, nil
}

func workItemsCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:     "workitems",
		Aliases: []string{"wi"},
		Short:   "Inspect and abort work items on a running bridge",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:9090", "Bridge base URL")

	client := func() *bridgeClient { return newBridgeClient(server) }
	printer := func(cmd *cobra.Command) *output.Printer {
		p := output.NewPrinter(output.ParseFormat(outputFormat))
		p.SetWriter(cmd.OutOrStdout())
		return p
	}

	var state string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := client().List(cmd.Context(), state)
			if err != nil {
				return err
			}
			return printer(cmd).PrintWorkItems(records)
		},
	}
	listCmd.Flags().StringVar(&state, "state", "", "Only show work items in this state (running, completed, aborted, failed)")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := printer(cmd)
			if err := p.PrintWorkItems([]*jobtracker.Record{rec}); err != nil {
				return err
			}
			if rec.State == jobtracker.StateFailed && humanOutput() {
				p.Error("%s: %s", rec.ErrorKind, rec.Error)
			}
			return nil
		},
	}

	abortCmd := &cobra.Command{
		Use:     "abort <id>",
		Aliases: []string{"rm"},
		Short:   "Abort a running work item, or remove a finished one",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := client().Abort(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := printer(cmd)
			switch {
			case rec == nil:
				p.Success("Work item %s removed", args[0])
			case rec.State == jobtracker.StateAborted:
				p.Success("Work item %s aborted", args[0])
			default:
				p.Warning("Work item %s finished before the abort (state %s)", args[0], rec.State)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, abortCmd)
	return cmd
}

// humanOutput reports whether table output was requested.
func humanOutput() bool {
	f := output.ParseFormat(outputFormat)
	return f == output.FormatTable || f == output.FormatWide
}
