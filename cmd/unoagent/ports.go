package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/registry"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and detected boards",
	Long:  "List the serial ports the toolchain detects, with board candidates where it recognizes the hardware. --local skips the toolchain and enumerates the host's serial devices directly.",
	Args:  cobra.NoArgs,
	RunE:  portsExecution,
}

func portsExecution(cmd *cobra.Command, args []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	local, err := cmd.Flags().GetBool("local")
	if err != nil {
		return err
	}

	if local {
		ports := registry.LocalPorts()
		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ports)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p.Address)
		}
		return nil
	}

	cfg := loadConfigFromFlags(cmd)
	reg := registry.New(newToolchain(cfg))
	ports := reg.Ports(cmd.Context())
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ports)
	}

	if len(ports) == 0 {
		fmt.Println("no ports detected")
		return nil
	}
	for _, p := range ports {
		line := fmt.Sprintf("%-24s %-10s %s", p.Address, p.Protocol, p.Label)
		if len(p.CandidateBoards) > 0 {
			var names []string
			for _, b := range p.CandidateBoards {
				names = append(names, b.Name)
			}
			line += " (" + strings.Join(names, ", ") + ")"
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
	return nil
}

func init() {
	portsCmd.Flags().Bool("json", false, "print ports as JSON")
	portsCmd.Flags().Bool("local", false, "enumerate host serial devices without the toolchain")
}
