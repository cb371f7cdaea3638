package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/kashvi-shop/config"
	"github.com/shashiranjanraj/kashvi-shop/pkg/database"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/queue"
)

var (
	queueWorkersFlag int
	failedLimitFlag  int
)

// shop queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Process queued notification jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		k, shutdown, err := boot(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = config.QueueWorkers()
		}
		if config.QueueDriver() != "redis" {
			logger.Warn("queue:work with the memory driver only sees jobs from this process")
		}
		k.Queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		logger.Info("queue worker stopped")
		return nil
	},
}

// shop queue:failed
var queueFailedCmd = &cobra.Command{
	Use:   "queue:failed",
	Short: "List jobs that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		recs, err := queue.GormFailedJobStore{DB: database.DB}.List(cmd.Context(), failedLimitFlag)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No failed jobs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tATTEMPTS\tFAILED AT\tERROR")
		for _, r := range recs {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", r.ID, r.JobType, r.Attempts, r.FailedAt.Format("2006-01-02 15:04:05"), r.Error)
		}
		return w.Flush()
	},
}

// shop schedule:list
var scheduleListCmd = &cobra.Command{
	Use:   "schedule:list",
	Short: "List the maintenance tasks run by serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, shutdown, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer shutdown()

		for _, line := range k.Schedule.List() {
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 0, "Number of concurrent workers (default QUEUE_WORKERS)")
	queueFailedCmd.Flags().IntVar(&failedLimitFlag, "limit", 50, "Maximum rows to show")
}
