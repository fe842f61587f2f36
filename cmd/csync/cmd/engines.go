package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clonesync/csync/internal/metricsexp"
	"github.com/clonesync/csync/pkg/engine"
	"github.com/clonesync/csync/pkg/models"
)

var (
	// Engine watch flags
	enginePollEvery   time.Duration
	engineMetricsPort int
)

// enginesCmd represents the engines command
var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Manage lip-sync engines",
	Long: `Inspect the available lip-sync engines, preload model weights on the
backend and switch the engine used for new jobs.`,
}

// enginesListCmd represents the engines list command
var enginesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available engines",
	RunE:  runEnginesList,
}

// enginesStatusCmd represents the engines status command
var enginesStatusCmd = &cobra.Command{
	Use:   "status [engine]",
	Short: "Show engine readiness",
	Long: `Query the backend for engine readiness. With no argument every engine
is queried; with an engine name only that engine is.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnginesStatus,
}

// enginesPreloadCmd represents the engines preload command
var enginesPreloadCmd = &cobra.Command{
	Use:   "preload <engine>",
	Short: "Preload an engine's model weights",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnginesPreload,
}

// enginesUseCmd represents the engines use command
var enginesUseCmd = &cobra.Command{
	Use:   "use <engine>",
	Short: "Switch the active engine",
	Long: `Switch the engine used for new jobs. The backend is told about the
change and the engine is preloaded unless it is already ready. The choice
is saved into the local settings.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnginesUse,
}

// enginesWatchCmd represents the engines watch command
var enginesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously watch engine readiness",
	Long: `Poll the backend and print engine state transitions until interrupted.
With --metrics-port the readiness state is also exported as Prometheus
metrics.`,
	RunE: runEnginesWatch,
}

func init() {
	rootCmd.AddCommand(enginesCmd)
	enginesCmd.AddCommand(enginesListCmd)
	enginesCmd.AddCommand(enginesStatusCmd)
	enginesCmd.AddCommand(enginesPreloadCmd)
	enginesCmd.AddCommand(enginesUseCmd)
	enginesCmd.AddCommand(enginesWatchCmd)

	enginesWatchCmd.Flags().DurationVar(&enginePollEvery, "poll-interval", 2*time.Second, "status poll interval")
	enginesWatchCmd.Flags().IntVar(&engineMetricsPort, "metrics-port", 0, "expose Prometheus metrics on this port (0 disables)")
}

// parseEngine validates a CLI engine argument.
func parseEngine(arg string) (models.Engine, error) {
	e := models.Engine(strings.ToLower(arg))
	if !e.IsValid() {
		return "", fmt.Errorf("unknown engine %q, expected one of: wav2lip, sadtalker, geneface", arg)
	}
	return e, nil
}

// newTracker wires a readiness tracker to the shared API client, honoring
// --demo.
func newTracker(api engine.StatusAPI, onChange func(models.EngineStatusInfo)) *engine.Tracker {
	cfg := engine.DefaultTrackerConfig()
	cfg.DemoMode = demoMode
	cfg.OnChange = onChange
	if enginePollEvery > 0 {
		cfg.PollInterval = enginePollEvery
	}
	return engine.NewTracker(api, cfg, logger)
}

func runEnginesList(cmd *cobra.Command, args []string) error {
	infos := make([]models.EngineInfo, 0, len(models.AllEngines()))
	for _, e := range models.AllEngines() {
		infos = append(infos, e.Info())
	}

	if handled, err := printStructured(infos); handled {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Engine", "Name", "Description", "Features")
	for _, info := range infos {
		table.Append(string(info.ID), info.Name, info.Description, strings.Join(info.Features, ", "))
	}
	table.Render()
	return nil
}

func runEnginesStatus(cmd *cobra.Command, args []string) error {
	engines := models.AllEngines()
	if len(args) == 1 {
		e, err := parseEngine(args[0])
		if err != nil {
			return err
		}
		engines = []models.Engine{e}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := newAPIClient()
	defer client.Close()

	type row struct {
		Engine string `json:"engine"`
		Loaded bool   `json:"loaded"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	rows := make([]row, 0, len(engines))
	for _, e := range engines {
		resp, err := client.EngineStatus(ctx, e)
		r := row{Engine: string(e)}
		if err != nil {
			r.Status = "unreachable"
			r.Error = err.Error()
		} else {
			r.Loaded = resp.Loaded
			r.Status = resp.Status
		}
		rows = append(rows, r)
	}

	if handled, err := printStructured(rows); handled {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Engine", "Loaded", "Status")
	for _, r := range rows {
		status := r.Status
		if r.Error != "" {
			status = fmt.Sprintf("%s (%s)", r.Status, r.Error)
		}
		table.Append(r.Engine, fmt.Sprintf("%t", r.Loaded), status)
	}
	table.Render()
	return nil
}

func runEnginesPreload(cmd *cobra.Command, args []string) error {
	e, err := parseEngine(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := newAPIClient()
	defer client.Close()

	tracker := newTracker(client, nil)
	fmt.Printf("Preloading %s...\n", e)
	if err := tracker.Preload(ctx, e); err != nil {
		return fmt.Errorf("failed to preload %s: %w", e, err)
	}

	status := tracker.Status(e)
	if status.FallbackReason != "" {
		fmt.Printf("✓ Engine %s ready (%s)\n", e, status.FallbackReason)
		return nil
	}
	if status.State == models.EngineError {
		return fmt.Errorf("engine %s failed to load: %s", e, status.ErrorMessage)
	}
	fmt.Printf("✓ Engine %s ready\n", e)
	return nil
}

func runEnginesUse(cmd *cobra.Command, args []string) error {
	e, err := parseEngine(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := newAPIClient()
	defer client.Close()

	tracker := newTracker(client, nil)
	if err := tracker.ChangeEngine(ctx, e); err != nil {
		return fmt.Errorf("failed to switch to %s: %w", e, err)
	}

	// Persist the choice so later jobs submit with it.
	store, err := loadSettingsStore()
	if err != nil {
		return err
	}
	store.SetAlgorithm(e)
	if err := saveSettingsStore(store); err != nil {
		return err
	}

	fmt.Printf("✓ Active engine is now %s\n", e)
	return nil
}

func runEnginesWatch(cmd *cobra.Command, args []string) error {
	if demoMode {
		return fmt.Errorf("engines watch needs a backend, remove --demo")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := newAPIClient()
	defer client.Close()

	var exporter *metricsexp.Exporter
	if engineMetricsPort > 0 {
		exporter = metricsexp.New(logger)
		go func() {
			addr := fmt.Sprintf(":%d", engineMetricsPort)
			if err := exporter.Serve(ctx, addr); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		fmt.Printf("Metrics on http://localhost:%d/metrics\n", engineMetricsPort)
	}

	tracker := newTracker(client, func(info models.EngineStatusInfo) {
		if exporter != nil {
			exporter.ObserveEngine(info)
		}
		line := fmt.Sprintf("%s  %-10s %s", time.Now().Format("15:04:05"), info.Engine, info.State)
		if info.ErrorMessage != "" {
			line += " (" + info.ErrorMessage + ")"
		}
		fmt.Println(line)
	})

	fmt.Println("Watching engine readiness, Ctrl+C to stop...")
	tracker.Watch(ctx)
	return nil
}
