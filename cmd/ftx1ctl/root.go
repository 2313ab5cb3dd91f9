package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dougsko/ftx1d/pkg/client"
	"github.com/dougsko/ftx1d/pkg/protocol"
)

var rootFlags = struct {
	address *string
	timeout *time.Duration
}{}

var rootCmd = &cobra.Command{
	Use:          "ftx1ctl",
	Short:        "Control an FTX-1 through the ftx1d rigctl bridge.",
	SilenceUsage: true,
}

var freqCmd = &cobra.Command{
	Use:   "freq [hz]",
	Short: "Show or set the VFO-A frequency",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFreq,
}

var modeCmd = &cobra.Command{
	Use:   "mode [mode [passband]]",
	Short: "Show or set the main receiver mode (native or hamlib names)",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runMode,
}

var pttCmd = &cobra.Command{
	Use:   "ptt [0|1]",
	Short: "Show or set push-to-talk",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPTT,
}

var stateCmd = &cobra.Command{
	Use:   "dump-state",
	Short: "Print the bridge capability block",
	Args:  cobra.NoArgs,
	RunE:  runDumpState,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the bridge answers",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaultAddr := fmt.Sprintf("127.0.0.1:%d", protocol.DefaultPort)
	rootFlags.address = rootCmd.PersistentFlags().StringP("address", "a", defaultAddr, "rigctl bridge address")
	rootFlags.timeout = rootCmd.PersistentFlags().DurationP("timeout", "t", 5*time.Second, "Connect and read timeout")

	rootCmd.AddCommand(freqCmd, modeCmd, pttCmd, stateCmd, pingCmd)
}

func newClient() *client.RigctlClient {
	c := client.NewRigctlClient(*rootFlags.address)
	c.SetTimeout(*rootFlags.timeout)
	return c
}

func runFreq(cmd *cobra.Command, args []string) error {
	c := newClient()
	if len(args) == 1 {
		hz, err := protocol.ParseFrequency(args[0])
		if err != nil {
			return err
		}
		if err := c.SetFrequency(hz); err != nil {
			return err
		}
	}

	hz, err := c.GetFrequency()
	if err != nil {
		return err
	}
	fmt.Printf("%d Hz (%.6f MHz)\n", hz, float64(hz)/1e6)
	return nil
}

func runMode(cmd *cobra.Command, args []string) error {
	c := newClient()
	if len(args) > 0 {
		passband := 0
		if len(args) == 2 {
			p, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid passband %q: %w", args[1], err)
			}
			passband = p
		}
		if err := c.SetMode(strings.ToUpper(args[0]), passband); err != nil {
			return err
		}
	}

	mode, passband, err := c.GetMode()
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d Hz)\n", mode, passband)
	return nil
}

func runPTT(cmd *cobra.Command, args []string) error {
	c := newClient()
	if len(args) == 1 {
		on, err := protocol.ParsePTT(args[0])
		if err != nil {
			return err
		}
		if err := c.SetPTT(on); err != nil {
			return err
		}
	}

	on, err := c.GetPTT()
	if err != nil {
		return err
	}
	if on {
		fmt.Println("TX")
	} else {
		fmt.Println("RX")
	}
	return nil
}

func runDumpState(cmd *cobra.Command, args []string) error {
	lines, err := newClient().DumpState()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(lines, "\n"))
	return nil
}

func runPing(cmd *cobra.Command, args []string) error {
	if err := newClient().Ping(); err != nil {
		return err
	}
	fmt.Printf("%s is up\n", *rootFlags.address)
	return nil
}
