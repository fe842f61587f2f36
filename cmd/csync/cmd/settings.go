package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clonesync/csync/pkg/engine"
	"github.com/clonesync/csync/pkg/models"
)

const settingsFileName = "settings.yaml"

var (
	// Settings set flags
	setEngine        string
	setQuality       int
	setBeatAnalysis  bool
	setFaceThreshold float64
	setLyricAlign    bool
	setPadTop        int
	setPadBottom     int
	setPadLeft       int
	setPadRight      int
	setResizeFactor  int
	setBatchSize     int
	setEnhancer      bool
	setPreprocess    string

	setPoseStyle       int
	setExpressionScale float64
	setStill           bool
	setNoSmooth        bool
	setMaskDilate      int
	setMaskBlur        int
	setFrameRate       int
	setUpscaleFactor   int
	setNeuralModel     string

	settingsNoPush bool
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage lip-sync generation settings",
	Long: `Inspect and tune the generation settings sent with every job.
Settings persist locally and can be pushed to the backend explicitly.`,
}

// settingsShowCmd represents the settings show command
var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	RunE:  runSettingsShow,
}

// settingsSetCmd represents the settings set command
var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update one or more settings",
	Long: `Update settings by flag. Only flags you pass change; everything else
keeps its current value. The merged settings are saved locally and pushed
to the backend unless --no-push is given.`,
	RunE: runSettingsSet,
}

// settingsPushCmd represents the settings push command
var settingsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the saved settings to the backend",
	RunE:  runSettingsPush,
}

// settingsResetCmd represents the settings reset command
var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	RunE:  runSettingsReset,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsPushCmd)
	settingsCmd.AddCommand(settingsResetCmd)

	f := settingsSetCmd.Flags()
	f.StringVar(&setEngine, "engine", "", "lip-sync engine: wav2lip, sadtalker or geneface")
	f.IntVar(&setQuality, "quality", 0, "output quality, 1-100")
	f.BoolVar(&setBeatAnalysis, "beat-analysis", false, "enable beat analysis")
	f.Float64Var(&setFaceThreshold, "face-threshold", 0, "face detection threshold, 0-1")
	f.BoolVar(&setLyricAlign, "lyric-alignment", false, "enable lyric alignment")
	f.IntVar(&setPadTop, "pad-top", 0, "face padding, top")
	f.IntVar(&setPadBottom, "pad-bottom", 0, "face padding, bottom")
	f.IntVar(&setPadLeft, "pad-left", 0, "face padding, left")
	f.IntVar(&setPadRight, "pad-right", 0, "face padding, right")
	f.IntVar(&setResizeFactor, "resize-factor", 0, "input resize factor")
	f.IntVar(&setBatchSize, "batch-size", 0, "inference batch size")
	f.BoolVar(&setEnhancer, "enhancer", false, "enable the face enhancer")
	f.StringVar(&setPreprocess, "preprocess", "", "preprocess mode: crop, resize or full")

	f.IntVar(&setPoseStyle, "pose-style", 0, "SadTalker pose style")
	f.Float64Var(&setExpressionScale, "expression-scale", 0, "SadTalker expression scale")
	f.BoolVar(&setStill, "still", false, "SadTalker still mode")
	f.BoolVar(&setNoSmooth, "nosmooth", false, "Wav2Lip: disable face box smoothing")
	f.IntVar(&setMaskDilate, "mask-dilate", 0, "Wav2Lip mask dilation")
	f.IntVar(&setMaskBlur, "mask-blur", 0, "Wav2Lip mask blur")
	f.IntVar(&setFrameRate, "frame-rate", 0, "GeneFace output frame rate")
	f.IntVar(&setUpscaleFactor, "upscale-factor", 0, "GeneFace super-resolution factor")
	f.StringVar(&setNeuralModel, "neural-model", "", "GeneFace neural model type")

	f.BoolVar(&settingsNoPush, "no-push", false, "save locally without pushing to the backend")
}

// settingsPath is where the merged settings live between runs.
func settingsPath() string {
	return filepath.Join(configDir(), settingsFileName)
}

// loadSettingsStore builds a settings store seeded from the saved file, or
// from the defaults when nothing has been saved yet.
func loadSettingsStore() (*engine.SettingsStore, error) {
	store := engine.NewSettingsStore(logger)

	data, err := os.ReadFile(settingsPath())
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var saved models.Settings
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if !saved.Algorithm.IsValid() {
		return nil, fmt.Errorf("settings file has unknown engine %q", saved.Algorithm)
	}
	store.Replace(saved)
	return store, nil
}

// saveSettingsStore persists the store's current settings.
func saveSettingsStore(store *engine.SettingsStore) error {
	data, err := yaml.Marshal(store.Current())
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(configDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(settingsPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	store, err := loadSettingsStore()
	if err != nil {
		return err
	}
	return printSettings(store.Current())
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	store, err := loadSettingsStore()
	if err != nil {
		return err
	}

	partial, err := partialFromFlags(cmd)
	if err != nil {
		return err
	}
	merged := store.Update(partial)

	if err := saveSettingsStore(store); err != nil {
		return err
	}

	// The saved file is authoritative; a failed push must not undo the
	// local update, so it only warns.
	if !settingsNoPush && !demoMode {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client := newAPIClient()
		defer client.Close()

		if err := store.Push(ctx, client); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: settings saved locally but push to backend failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Run \"csync settings push\" to retry.")
		}
	}

	if handled, err := printStructured(merged); handled {
		return err
	}
	fmt.Println("✓ Settings updated")
	return printSettings(merged)
}

func runSettingsPush(cmd *cobra.Command, args []string) error {
	store, err := loadSettingsStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := newAPIClient()
	defer client.Close()

	if err := store.Push(ctx, client); err != nil {
		return fmt.Errorf("failed to push settings: %w", err)
	}
	fmt.Println("✓ Settings pushed to backend")
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	store := engine.NewSettingsStore(logger)
	if err := saveSettingsStore(store); err != nil {
		return err
	}
	fmt.Println("✓ Settings reset to defaults")
	return nil
}

// partialFromFlags turns exactly the flags the user passed into a partial
// update, so unset flags never clobber saved values.
func partialFromFlags(cmd *cobra.Command) (models.SettingsPartial, error) {
	var p models.SettingsPartial
	flags := cmd.Flags()

	if flags.Changed("engine") {
		e := models.Engine(setEngine)
		if !e.IsValid() {
			return p, fmt.Errorf("unknown engine %q, expected one of: wav2lip, sadtalker, geneface", setEngine)
		}
		p.Algorithm = &e
	}
	if flags.Changed("quality") {
		if setQuality < 1 || setQuality > 100 {
			return p, fmt.Errorf("quality must be between 1 and 100, got %d", setQuality)
		}
		p.Quality = &setQuality
	}
	if flags.Changed("beat-analysis") {
		p.UseBeatAnalysis = &setBeatAnalysis
	}
	if flags.Changed("face-threshold") {
		if setFaceThreshold < 0 || setFaceThreshold > 1 {
			return p, fmt.Errorf("face threshold must be between 0 and 1, got %g", setFaceThreshold)
		}
		p.FaceDetectionThreshold = &setFaceThreshold
	}
	if flags.Changed("lyric-alignment") {
		p.UseLyricAlignment = &setLyricAlign
	}
	if flags.Changed("resize-factor") {
		p.ResizeFactor = &setResizeFactor
	}
	if flags.Changed("batch-size") {
		p.BatchSize = &setBatchSize
	}
	if flags.Changed("enhancer") {
		p.UseEnhancer = &setEnhancer
	}
	if flags.Changed("preprocess") {
		p.PreprocessMode = &setPreprocess
	}

	var pads models.PadsPartial
	padsChanged := false
	if flags.Changed("pad-top") {
		pads.Top = &setPadTop
		padsChanged = true
	}
	if flags.Changed("pad-bottom") {
		pads.Bottom = &setPadBottom
		padsChanged = true
	}
	if flags.Changed("pad-left") {
		pads.Left = &setPadLeft
		padsChanged = true
	}
	if flags.Changed("pad-right") {
		pads.Right = &setPadRight
		padsChanged = true
	}
	if padsChanged {
		p.Pads = &pads
	}

	var st models.SadTalkerPartial
	stChanged := false
	if flags.Changed("pose-style") {
		st.PoseStyle = &setPoseStyle
		stChanged = true
	}
	if flags.Changed("expression-scale") {
		st.ExpressionScale = &setExpressionScale
		stChanged = true
	}
	if flags.Changed("still") {
		st.Still = &setStill
		stChanged = true
	}
	if stChanged {
		p.SadTalker = &st
	}

	var w2l models.Wav2LipPartial
	w2lChanged := false
	if flags.Changed("nosmooth") {
		w2l.NoSmooth = &setNoSmooth
		w2lChanged = true
	}
	if flags.Changed("mask-dilate") {
		w2l.MaskDilate = &setMaskDilate
		w2lChanged = true
	}
	if flags.Changed("mask-blur") {
		w2l.MaskBlur = &setMaskBlur
		w2lChanged = true
	}
	if w2lChanged {
		p.Wav2Lip = &w2l
	}

	var gf models.GeneFacePartial
	gfChanged := false
	if flags.Changed("frame-rate") {
		gf.FrameRate = &setFrameRate
		gfChanged = true
	}
	if flags.Changed("upscale-factor") {
		gf.UpscaleFactor = &setUpscaleFactor
		gfChanged = true
	}
	if flags.Changed("neural-model") {
		gf.NeuralModelType = &setNeuralModel
		gfChanged = true
	}
	if gfChanged {
		p.GeneFace = &gf
	}

	return p, nil
}

// printSettings renders the common settings plus the active engine's block.
func printSettings(s models.Settings) error {
	if handled, err := printStructured(s); handled {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Setting", "Value")
	table.Append("Engine", string(s.Algorithm))
	table.Append("Quality", fmt.Sprintf("%d", s.Quality))
	table.Append("Beat Analysis", fmt.Sprintf("%t", s.UseBeatAnalysis))
	table.Append("Face Threshold", fmt.Sprintf("%g", s.FaceDetectionThreshold))
	table.Append("Lyric Alignment", fmt.Sprintf("%t", s.UseLyricAlignment))
	table.Append("Pads", s.Pads.String())
	table.Append("Resize Factor", fmt.Sprintf("%d", s.ResizeFactor))

	switch s.Algorithm {
	case models.EngineSadTalker:
		table.Append("Batch Size", fmt.Sprintf("%d", s.BatchSize))
		table.Append("Enhancer", fmt.Sprintf("%t", s.UseEnhancer))
		table.Append("Preprocess", s.PreprocessMode)
		table.Append("Pose Style", fmt.Sprintf("%d", s.SadTalker.PoseStyle))
		table.Append("Expression Scale", fmt.Sprintf("%g", s.SadTalker.ExpressionScale))
		table.Append("Still", fmt.Sprintf("%t", s.SadTalker.Still))
	case models.EngineWav2Lip:
		table.Append("Batch Size", fmt.Sprintf("%d", s.BatchSize))
		table.Append("Enhancer", fmt.Sprintf("%t", s.UseEnhancer))
		table.Append("Preprocess", s.PreprocessMode)
		table.Append("No Smooth", fmt.Sprintf("%t", s.Wav2Lip.NoSmooth))
		table.Append("Mask Dilate", fmt.Sprintf("%d", s.Wav2Lip.MaskDilate))
		table.Append("Mask Blur", fmt.Sprintf("%d", s.Wav2Lip.MaskBlur))
	case models.EngineGeneFace:
		table.Append("Frame Rate", fmt.Sprintf("%d", s.GeneFace.FrameRate))
		table.Append("Neural Model", s.GeneFace.NeuralModelType)
		table.Append("Upscale Factor", fmt.Sprintf("%d", s.GeneFace.UpscaleFactor))
	}
	table.Render()
	return nil
}
