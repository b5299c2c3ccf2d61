package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/builder"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/diag"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] <sketch>",
	Short: "Compile a sketch",
	Long:  "Compile a sketch for the configured board and report diagnostics with fix hints.",
	Args:  cobra.ExactArgs(1),
	RunE:  compileExecution,
}

func compileExecution(cmd *cobra.Command, args []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	cfg := loadConfigFromFlags(cmd)
	b := builder.New(newToolchain(cfg))

	if verbose && !jsonOut {
		b.OnProgress(func(stage string) {
			fmt.Fprintf(os.Stderr, "* %s\n", stage)
		})
		b.OnOutput(func(chunk string) {
			fmt.Fprint(os.Stderr, chunk)
			if !strings.HasSuffix(chunk, "\n") {
				fmt.Fprintln(os.Stderr)
			}
		})
	}

	result := b.Compile(cmd.Context(), args[0], cfg.Toolchain.FQBN)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	diag.Render(os.Stdout, result.Diagnostics, colorizeOutput(cmd))

	if !result.Success {
		return fmt.Errorf("compile failed with %d error(s)", len(diag.Errors(result.Diagnostics)))
	}
	if len(result.UsedLibraries) > 0 {
		fmt.Printf("libraries: %s\n", strings.Join(result.UsedLibraries, ", "))
	}
	if result.ArtifactPath != "" {
		fmt.Printf("compiled %s -> %s\n", args[0], result.ArtifactPath)
	} else {
		fmt.Printf("compiled %s\n", args[0])
	}
	return nil
}

func init() {
	compileCmd.Flags().Bool("json", false, "print the full result as JSON")
	compileCmd.Flags().Bool("verbose", false, "stream compiler output while building")
}
