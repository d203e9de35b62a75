package cli

import (
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/compensation/jobs"
)

func newSnapshotCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Archive monthly bonus snapshots",
	}

	var enqueuePeriod string
	enqueue := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a snapshot for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := NewJobsCLI(rt.Config.AsynqRedisOpt())
			if err != nil {
				return err
			}
			defer func() { _ = jc.Close() }()
			info, err := jc.TriggerSnapshot(cmd.Context(), enqueuePeriod)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"id": info.ID, "queue": info.Queue, "type": info.Type})
		},
	}
	enqueue.Flags().StringVar(&enqueuePeriod, "period", "", "month to archive (yyyy-mm, default previous month)")

	var runPeriod string
	run := &cobra.Command{
		Use:   "run",
		Short: "Write a snapshot immediately, bypassing the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.Service(cmd.Context())
			if err != nil {
				return err
			}
			job := jobs.NewBonusSnapshotJob(svc, rt.Config.SnapshotDir, rt.Formatter(), rt.Logger, nil)
			result, err := job.Run(cmd.Context(), runPeriod)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	run.Flags().StringVar(&runPeriod, "period", "", "month to archive (yyyy-mm, default previous month)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the job queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := NewJobsCLI(rt.Config.AsynqRedisOpt())
			if err != nil {
				return err
			}
			defer func() { _ = jc.Close() }()
			stats, err := jc.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}

	cmd.AddCommand(enqueue, run, status)
	return cmd
}
