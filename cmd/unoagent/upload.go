package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/builder"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/diag"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [flags] <sketch>",
	Short: "Upload a sketch to a connected board",
	Long:  "Compile artifacts must already exist or be produced by the toolchain; the sketch is flashed over the given serial port.",
	Args:  cobra.ExactArgs(1),
	RunE:  uploadExecution,
}

func uploadExecution(cmd *cobra.Command, args []string) error {
	port, err := cmd.Flags().GetString("port")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg := loadConfigFromFlags(cmd)
	if port == "" {
		port = cfg.Serial.PortPath
	}
	if port == "" {
		return errors.New("no port given and none configured, pass --port")
	}

	b := builder.New(newToolchain(cfg))
	result := b.Upload(cmd.Context(), args[0], cfg.Toolchain.FQBN, port)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	diag.Render(os.Stdout, result.Diagnostics, colorizeOutput(cmd))

	if !result.Success {
		return fmt.Errorf("upload to %s failed", port)
	}
	fmt.Printf("uploaded %s via %s\n", args[0], port)
	return nil
}

func init() {
	uploadCmd.Flags().String("port", "", "serial port of the target board (default from config)")
	uploadCmd.Flags().Bool("json", false, "print the full result as JSON")
}
