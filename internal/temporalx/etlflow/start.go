package etlflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"
)

type StartOptions struct {
	TaskQueue    string
	CronSchedule string
}

// Start launches one workflow run, or a scheduled series when CronSchedule is set.
func Start(ctx context.Context, tc temporalsdkclient.Client, opts StartOptions, in Input) (workflowID, runID string, err error) {
	if tc == nil {
		return "", "", fmt.Errorf("temporal client is not configured")
	}
	workflowID = WorkflowName
	if strings.TrimSpace(opts.CronSchedule) == "" {
		workflowID = fmt.Sprintf("%s-%s", WorkflowName, time.Now().UTC().Format("20060102T150405Z"))
	}
	run, err := tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:           workflowID,
		TaskQueue:    opts.TaskQueue,
		CronSchedule: strings.TrimSpace(opts.CronSchedule),
	}, WorkflowName, in)
	if err != nil {
		return "", "", fmt.Errorf("start %s: %w", WorkflowName, err)
	}
	return run.GetID(), run.GetRunID(), nil
}
