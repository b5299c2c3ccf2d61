package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/monitor"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/transcript"
)

var monitorErrColor = color.New(color.FgRed, color.Bold)

var monitorCmd = &cobra.Command{
	Use:   "monitor [flags] [port]",
	Short: "Open the serial monitor",
	Long:  "Stream lines from a connected board and forward stdin lines back to it. Ctrl-C disconnects and exits.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  monitorExecution,
}

func monitorExecution(cmd *cobra.Command, args []string) error {
	baud, err := cmd.Flags().GetInt("baud")
	if err != nil {
		return err
	}
	doReset, err := cmd.Flags().GetBool("reset")
	if err != nil {
		return err
	}
	plotOnly, err := cmd.Flags().GetBool("plot")
	if err != nil {
		return err
	}
	record, err := cmd.Flags().GetBool("record")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	if !verbose {
		silenceLogs()
	}

	cfg := loadConfigFromFlags(cmd)
	address := cfg.Serial.PortPath
	if len(args) == 1 {
		address = args[0]
	}
	if address == "" {
		return errors.New("no port given and none configured, pass one as an argument")
	}

	mcfg := cfg.Serial.MonitorConfig()
	if baud > 0 {
		mcfg.BaudRate = baud
	}

	var recorder *transcript.Recorder
	if record || cfg.Transcript.Enabled {
		tc := cfg.Transcript
		tc.Enabled = true
		recorder = transcript.New(tc)
		defer recorder.Close()
	}

	session := monitor.NewSession()

	if plotOnly {
		session.OnPlotData(func(values []float64, line string) {
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprintf("%g", v)
			}
			fmt.Println(strings.Join(parts, "\t"))
			if recorder != nil {
				recorder.Received(line)
			}
		})
	} else {
		session.OnData(func(line string) {
			fmt.Println(line)
			if recorder != nil {
				recorder.Received(line)
			}
		})
	}
	session.OnSent(func(data string) {
		if recorder != nil {
			recorder.Sent(data)
		}
	})
	session.OnError(func(err error) {
		fmt.Fprintln(os.Stderr, monitorErrColor.Sprint(err.Error()))
	})
	session.OnDisconnected(func(addr string) {
		fmt.Fprintf(os.Stderr, "disconnected from %s\n", addr)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Connect(address, mcfg); err != nil {
		return err
	}
	defer session.Disconnect()

	fmt.Fprintf(os.Stderr, "connected to %s at %d baud, Ctrl-C to exit\n", address, mcfg.BaudRate)

	if doReset {
		if err := session.ResetDevice(); err != nil {
			return err
		}
	}

	// Forward stdin lines to the device.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := session.Write(scanner.Text()); err != nil {
				fmt.Fprintln(os.Stderr, monitorErrColor.Sprint(err.Error()))
				return
			}
		}
	}()

	<-ctx.Done()
	return session.Disconnect()
}

func init() {
	monitorCmd.Flags().Int("baud", 0, "baud rate (default from config)")
	monitorCmd.Flags().Bool("reset", false, "pulse DTR to reset the board after connecting")
	monitorCmd.Flags().Bool("plot", false, "print only plotter data, tab separated")
	monitorCmd.Flags().Bool("record", false, "record traffic to a transcript file")
	monitorCmd.Flags().Bool("verbose", false, "keep internal log lines visible")
}
