package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/tower/internal/domain"
	"github.com/oriys/tower/internal/output"
	"github.com/oriys/tower/internal/secrets"
	"github.com/oriys/tower/internal/workitem"
	"github.com/spf13/cobra"
)

// resultCollector is the host side of a single CLI work item.
type resultCollector struct {
	results map[string]any
	aborted bool
}

func (c *resultCollector) CompleteWorkItem(_ string, results map[string]any) {
	c.results = results
}

func (c *resultCollector) AbortWorkItem(string) {
	c.aborted = true
}

func invokeCmd() *cobra.Command {
	var (
		url         string
		token       string
		method      string
		data        string
		dataFile    string
		contentType string
		resultType  string
		captureBody bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run one work item against a Tower endpoint",
		Example: `  tower invoke --url https://tower/api/v2/job_templates/7/launch/ --token '$SECRET:prod' \
    --method POST --data '{"extra_vars":{"env":"prod"}}' --result-type tower.JobLaunch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("timeout") {
				cfg.HTTP.Timeout = timeout
			}
			if cmd.Flags().Changed("capture-error-body") {
				cfg.Invoker.CaptureErrorBody = captureBody
			}

			if !secrets.IsReference(token) {
				warn := output.NewPrinter(output.FormatTable)
				warn.SetWriter(cmd.ErrOrStderr())
				warn.Warning("literal --token is visible in the process list; prefer $SECRET:name or $ENV:NAME")
			}

			if dataFile != "" {
				raw, err := os.ReadFile(dataFile)
				if err != nil {
					return fmt.Errorf("read data file: %w", err)
				}
				data = string(raw)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			params := map[string]any{
				domain.ParamTowerURL:    url,
				domain.ParamBearerToken: token,
				domain.ParamMethod:      method,
			}
			if data != "" {
				params[domain.ParamContentData] = data
			}
			if contentType != "" {
				params[domain.ParamContentType] = contentType
			}
			if resultType != "" {
				params[domain.ParamResultClass] = resultType
			}
			item := &domain.WorkItem{ID: uuid.New().String(), Name: "cli", Parameters: params}

			collector := &resultCollector{}
			handler := workitem.NewTowerHandler(rt.exec, false)

			start := time.Now()
			execErr := handler.ExecuteWorkItem(ctx, item, collector)
			inv := output.Invocation{
				RequestID:  item.ID,
				Method:     method,
				URL:        url,
				DurationMs: time.Since(start).Milliseconds(),
			}
			if execErr != nil {
				inv.Error = execErr.Error()
			} else {
				inv.Status, _ = collector.results[domain.ResultStatus].(int)
				inv.StatusMsg, _ = collector.results[domain.ResultStatusMsg].(string)
				inv.Result = collector.results[domain.ResultResult]
			}

			if err := output.NewPrinter(output.ParseFormat(outputFormat)).PrintInvocation(inv); err != nil {
				return err
			}
			return execErr
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Tower endpoint URL (required)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token, or $SECRET:name / $ENV:NAME (required)")
	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method (GET, POST)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body, sent as-is")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Read the request body from a file")
	cmd.Flags().StringVar(&contentType, "content-type", domain.DefaultContentType, "Request body content type")
	cmd.Flags().StringVar(&resultType, "result-type", "", "Registered result type to decode the response into")
	cmd.Flags().BoolVar(&captureBody, "capture-error-body", false, "Keep the response body of non-2xx responses")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 = none)")
	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("token")

	return cmd
}
