package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clonesync/csync/pkg/script"
)

var scriptFromFile string

// scriptCmd represents the script command
var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Manage the working script text",
	Long: `The script text persists between runs and seeds voice generation.
An empty save restores the placeholder text.`,
}

// scriptShowCmd represents the script show command
var scriptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved script",
	RunE:  runScriptShow,
}

// scriptSetCmd represents the script set command
var scriptSetCmd = &cobra.Command{
	Use:   "set [text]",
	Short: "Save the script text",
	Long: `Save the script text from the argument, from --file, or from stdin
when neither is given. Saving empty text resets to the placeholder.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScriptSet,
}

// scriptResetCmd represents the script reset command
var scriptResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the placeholder script",
	RunE:  runScriptReset,
}

func init() {
	rootCmd.AddCommand(scriptCmd)
	scriptCmd.AddCommand(scriptShowCmd)
	scriptCmd.AddCommand(scriptSetCmd)
	scriptCmd.AddCommand(scriptResetCmd)

	scriptSetCmd.Flags().StringVarP(&scriptFromFile, "file", "f", "", "read the script text from a file")
}

func runScriptShow(cmd *cobra.Command, args []string) error {
	store := script.NewStore(configDir())
	text, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load script: %w", err)
	}

	if handled, err := printStructured(map[string]string{"script": text}); handled {
		return err
	}
	fmt.Println(text)
	return nil
}

func runScriptSet(cmd *cobra.Command, args []string) error {
	var text string
	switch {
	case scriptFromFile != "":
		data, err := os.ReadFile(scriptFromFile)
		if err != nil {
			return fmt.Errorf("failed to read script file: %w", err)
		}
		text = string(data)
	case len(args) == 1:
		text = args[0]
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read script from stdin: %w", err)
		}
		text = string(data)
	}

	store := script.NewStore(configDir())
	if err := store.Save(text); err != nil {
		return fmt.Errorf("failed to save script: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		fmt.Println("✓ Script reset to the placeholder text")
		return nil
	}
	fmt.Printf("✓ Script saved (%d characters)\n", len(text))
	return nil
}

func runScriptReset(cmd *cobra.Command, args []string) error {
	store := script.NewStore(configDir())
	if err := store.Save(""); err != nil {
		return fmt.Errorf("failed to reset script: %w", err)
	}
	fmt.Println("✓ Script reset to the placeholder text")
	return nil
}
