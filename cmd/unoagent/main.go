// Package main implements the unoagent CLI.
package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/server"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/toolchain"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "unoagent",
	Short: "Arduino build and serial monitor agent",
	Long:  `unoagent wraps the Arduino CLI toolchain with sketch builds, board and port discovery, and a line-oriented serial monitor, usable from the command line or as an HTTP/WebSocket agent.`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(boardsCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(libCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "unoagent.yaml", "path to config file")
	rootCmd.PersistentFlags().String("toolchain", "", "toolchain binary override (default from config)")
	rootCmd.PersistentFlags().String("fqbn", "", "board identifier override (default from config)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfigFromFlags loads the YAML config named by --config and applies
// the persistent flag overrides on top.
func loadConfigFromFlags(cmd *cobra.Command) *server.Config {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	cfg := server.LoadConfig(path)

	if bin, _ := flags.GetString("toolchain"); bin != "" {
		cfg.Toolchain.Bin = bin
	}
	if fqbn, _ := flags.GetString("fqbn"); fqbn != "" {
		cfg.Toolchain.FQBN = fqbn
	}
	return cfg
}

// newToolchain builds the CLI runner from the config.
func newToolchain(cfg *server.Config) *toolchain.CLI {
	cli := toolchain.New(cfg.Toolchain.Bin)
	cli.ExtraArgs = cfg.Toolchain.ExtraArgs
	cli.Dir = cfg.Toolchain.Dir
	return cli
}

// colorizeOutput resolves the --color flag against the terminal.
func colorizeOutput(cmd *cobra.Command) bool {
	mode, _ := cmd.Root().PersistentFlags().GetString("color")
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

// silenceLogs drops the log package output so [tag] lines do not
// interleave with device data on interactive commands.
func silenceLogs() {
	log.SetOutput(io.Discard)
}

// isTerminal reports whether the file is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
