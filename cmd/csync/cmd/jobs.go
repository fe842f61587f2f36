package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clonesync/csync/internal/metricsexp"
	"github.com/clonesync/csync/pkg/api"
	"github.com/clonesync/csync/pkg/models"
	"github.com/clonesync/csync/pkg/task"
)

var (
	// Job submit flags
	jobAudio      string
	jobFace       string
	jobEngine     string
	jobWait       bool
	jobPollEvery  time.Duration
	jobMaxWait    time.Duration
	jobNoFallback bool

	// Job watch flags
	watchMetricsPort int
)

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage lip-sync jobs",
	Long:  `Commands for submitting and tracking lip-sync jobs on the backend.`,
}

// jobsSubmitCmd represents the jobs submit command
var jobsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new lip-sync job",
	Long: `Submit a lip-sync job against previously uploaded audio and face
files. The engine options sent with the job are derived from the current
settings (see "csync settings").`,
	RunE: runJobsSubmit,
}

// jobsStatusCmd represents the jobs status command
var jobsStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Get the status of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

// jobsWatchCmd represents the jobs watch command
var jobsWatchCmd = &cobra.Command{
	Use:   "watch <task-id>",
	Short: "Poll a job until it finishes",
	Long: `Poll the job's status until it completes, fails or the polling window
closes. When the backend has no task store, a best-effort result is
synthesized from naming conventions and flagged as degraded.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsWatch,
}

// jobsDownloadURLCmd represents the jobs download-url command
var jobsDownloadURLCmd = &cobra.Command{
	Use:   "download-url <task-id>",
	Short: "Print the download URL of a finished job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDownloadURL,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
	jobsCmd.AddCommand(jobsDownloadURLCmd)

	// Flags for job submit
	jobsSubmitCmd.Flags().StringVar(&jobAudio, "audio", "", "identifier of the uploaded audio file (required)")
	jobsSubmitCmd.Flags().StringVar(&jobFace, "face", "", "identifier of the uploaded face video or image (required)")
	jobsSubmitCmd.Flags().StringVar(&jobEngine, "engine", "", "engine to run (default from settings)")
	jobsSubmitCmd.Flags().BoolVar(&jobWait, "wait", false, "poll the job until it finishes")
	jobsSubmitCmd.MarkFlagRequired("audio")
	jobsSubmitCmd.MarkFlagRequired("face")

	// Flags shared by polling commands
	for _, c := range []*cobra.Command{jobsSubmitCmd, jobsWatchCmd} {
		c.Flags().DurationVar(&jobPollEvery, "poll-interval", time.Second, "status poll interval")
		c.Flags().DurationVar(&jobMaxWait, "max-wait", 10*time.Minute, "give up after this long")
		c.Flags().BoolVar(&jobNoFallback, "no-fallback", false, "fail on 404 instead of synthesizing a degraded result")
	}

	jobsWatchCmd.Flags().IntVar(&watchMetricsPort, "metrics-port", 0, "expose Prometheus metrics on this port while watching")
}

func runJobsSubmit(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	defer client.Close()

	store, err := loadSettingsStore()
	if err != nil {
		return err
	}

	eng := store.Current().Algorithm
	if jobEngine != "" {
		eng = models.Engine(jobEngine)
		if !eng.IsValid() {
			return fmt.Errorf("unknown engine %q (expected one of wav2lip, sadtalker, geneface)", jobEngine)
		}
		store.SetAlgorithm(eng)
	}

	ctx := context.Background()
	resp, err := client.StartLipSync(ctx, models.LipSyncRequest{
		Engine:        eng,
		AudioBlobName: jobAudio,
		FaceBlobName:  jobFace,
		Options:       store.BackendPayload(),
	})
	if err != nil {
		return err
	}

	job := models.ProcessingJob{
		ID:     resp.TaskID,
		Engine: eng,
		InputRefs: models.InputRefs{
			AudioBlobName: jobAudio,
			FaceBlobName:  jobFace,
		},
		Status: models.TaskStatusPending,
	}

	if !jobWait {
		if handled, perr := printStructured(job); handled {
			return perr
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Field", "Value")
		table.Append("Task ID", job.ID)
		table.Append("Engine", string(job.Engine))
		table.Append("Audio", job.InputRefs.AudioBlobName)
		table.Append("Face", job.InputRefs.FaceBlobName)
		table.Append("Status", string(job.Status))
		if resp.Message != "" {
			table.Append("Message", resp.Message)
		}
		table.Render()
		fmt.Printf("\nJob submitted successfully! Track it with: csync jobs watch %s\n", job.ID)
		return nil
	}

	return watchTask(ctx, client, resp.TaskID, nil)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	defer client.Close()

	resp, err := client.GetTask(context.Background(), args[0])
	if err != nil {
		return err
	}

	if handled, perr := printStructured(resp); handled {
		return perr
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Task ID", resp.ID)
	table.Append("Status", string(resp.Status))
	if resp.Progress != nil {
		table.Append("Progress", fmt.Sprintf("%d%%", *resp.Progress))
	}
	if u := resp.OutputURL(); u != "" {
		table.Append("Output", u)
	}
	if resp.Error != "" {
		table.Append("Error", resp.Error)
	}
	if !resp.CreatedAt.IsZero() {
		table.Append("Created At", resp.CreatedAt.Format(time.RFC3339))
	}
	if !resp.CompletedAt.IsZero() {
		table.Append("Completed At", resp.CompletedAt.Format(time.RFC3339))
	}
	table.Render()
	return nil
}

func runJobsWatch(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var exporter *metricsexp.Exporter
	if watchMetricsPort > 0 {
		exporter = metricsexp.New(logger)
		go func() {
			if err := exporter.Serve(ctx, fmt.Sprintf(":%d", watchMetricsPort)); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return watchTask(ctx, client, args[0], exporter)
}

// watchTask polls one task to its terminal state and renders the result.
func watchTask(ctx context.Context, client *api.Client, taskID string, exporter *metricsexp.Exporter) error {
	cfg := task.DefaultPollConfig()
	cfg.Interval = jobPollEvery
	cfg.MaxWait = jobMaxWait
	cfg.SynthesizeOn404 = !jobNoFallback

	poller := task.NewPoller(client, cfg, nil, logger)

	onProgress := func(percent int) {
		if exporter != nil {
			exporter.SetTaskProgress(percent)
		}
		if !IsJSONOutput() && !IsYAMLOutput() {
			fmt.Printf("\rProcessing... %d%%", percent)
		}
	}

	result, err := poller.Poll(ctx, taskID, onProgress)
	if !IsJSONOutput() && !IsYAMLOutput() {
		fmt.Println()
	}
	if exporter != nil && result.Status != "" {
		exporter.RecordTaskOutcome(result.Status)
	}
	if err != nil {
		return err
	}

	if handled, perr := printStructured(result); handled {
		return perr
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Task ID", result.ID)
	table.Append("Status", string(result.Status))
	if result.OutputURL != "" {
		table.Append("Output", result.OutputURL)
	}
	if result.Degraded {
		table.Append("Degraded", result.DegradedReason)
	}
	table.Render()

	if result.Degraded {
		fmt.Println("\nNote: the result location is a best-effort guess; the status endpoint was unavailable.")
	} else {
		fmt.Println("\nJob completed successfully!")
	}
	return nil
}

func runJobsDownloadURL(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	defer client.Close()

	resolver := task.NewDownloadResolver(client, client.Resolver().Origin(), logger)
	info, err := resolver.Resolve(context.Background(), args[0])
	if err != nil {
		return err
	}

	if handled, perr := printStructured(info); handled {
		return perr
	}

	fmt.Println(info.URL)
	if info.Degraded {
		fmt.Fprintln(os.Stderr, "Warning: URL synthesized from naming conventions, not confirmed by the backend.")
	}
	return nil
}
