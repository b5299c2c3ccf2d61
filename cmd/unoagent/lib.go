package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/registry"
)

var libCmd = &cobra.Command{
	Use:   "lib",
	Short: "Search and install sketch libraries",
}

var libSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the library index",
	Args:  cobra.ExactArgs(1),
	RunE:  libSearchExecution,
}

var libInstallCmd = &cobra.Command{
	Use:   "install <name>...",
	Short: "Install one or more libraries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  libInstallExecution,
}

func libSearchExecution(cmd *cobra.Command, args []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg := loadConfigFromFlags(cmd)
	reg := registry.New(newToolchain(cfg))
	libs := reg.SearchLibraries(cmd.Context(), args[0])

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(libs)
	}

	if len(libs) == 0 {
		fmt.Printf("no libraries matching %q\n", args[0])
		return nil
	}
	for _, l := range libs {
		if l.Version != "" {
			fmt.Printf("%-32s %-10s %s\n", l.Name, l.Version, l.Description)
		} else {
			fmt.Printf("%-32s %s\n", l.Name, l.Description)
		}
	}
	return nil
}

func libInstallExecution(cmd *cobra.Command, args []string) error {
	cfg := loadConfigFromFlags(cmd)
	reg := registry.New(newToolchain(cfg))

	for _, name := range args {
		if err := reg.InstallLibrary(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Printf("installed %s\n", name)
	}
	return nil
}

func init() {
	libSearchCmd.Flags().Bool("json", false, "print libraries as JSON")
	libCmd.AddCommand(libSearchCmd)
	libCmd.AddCommand(libInstallCmd)
}
