package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/registry"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List installed board definitions",
	Long:  "List every board the toolchain knows how to build for, with its FQBN.",
	Args:  cobra.NoArgs,
	RunE:  boardsExecution,
}

func boardsExecution(cmd *cobra.Command, args []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg := loadConfigFromFlags(cmd)
	reg := registry.New(newToolchain(cfg))
	boards := reg.Boards(cmd.Context())

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(boards)
	}

	if len(boards) == 0 {
		fmt.Println("no boards found, is a platform core installed?")
		return nil
	}
	for _, b := range boards {
		if b.PlatformName != "" {
			fmt.Printf("%-36s %-28s %s\n", b.Name, b.FQBN, b.PlatformName)
		} else {
			fmt.Printf("%-36s %s\n", b.Name, b.FQBN)
		}
	}
	return nil
}

func init() {
	boardsCmd.Flags().Bool("json", false, "print boards as JSON")
}
