package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/clonesync/csync/pkg/upload"
)

var (
	uploadChunkSize      int64
	uploadChunkThreshold int64
	uploadTimeout        time.Duration
	uploadQuiet          bool
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a media file",
	Long: `Upload an audio or video file to the backend. Files over the chunk
threshold are transferred in chunks with per-chunk retries; the upload
route is inferred from the file type.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().Int64Var(&uploadChunkSize, "chunk-size", upload.DefaultChunkSize, "chunk size in bytes for chunked uploads")
	uploadCmd.Flags().Int64Var(&uploadChunkThreshold, "chunk-threshold", upload.DefaultChunkThreshold, "file size in bytes above which uploads are chunked")
	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", upload.DefaultTimeout, "upload timeout")
	uploadCmd.Flags().BoolVarP(&uploadQuiet, "quiet", "q", false, "suppress the progress display")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]

	client := newAPIClient()
	defer client.Close()

	cfg := upload.DefaultConfig()
	cfg.ChunkSize = uploadChunkSize
	cfg.ChunkThreshold = uploadChunkThreshold
	cfg.Timeout = uploadTimeout

	uploader := upload.New(client, cfg, logger)

	progress := func(percent int) {
		if !uploadQuiet && !IsJSONOutput() && !IsYAMLOutput() {
			fmt.Printf("\rUploading %s... %d%%", filepath.Base(path), percent)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	resp, err := uploader.Upload(ctx, path, progress)
	if !uploadQuiet && !IsJSONOutput() && !IsYAMLOutput() {
		fmt.Println()
	}
	if err != nil {
		return err
	}

	if handled, perr := printStructured(resp); handled {
		return perr
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("File", filepath.Base(path))
	table.Append("Identifier", resp.Identifier())
	if resp.TaskID != "" {
		table.Append("Task ID", resp.TaskID)
	}
	if resp.Message != "" {
		table.Append("Message", resp.Message)
	}
	table.Render()

	fmt.Println("\nUpload completed successfully!")
	return nil
}
