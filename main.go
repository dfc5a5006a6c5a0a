// owondump - trace memory dump tool for Owon PDS digital oscilloscopes
// This program requests a dump over USB (or a serial adapter), stores the raw payload
// and decodes vectorgram captures into a millivolt sample table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"owondump/internal/collector"
	"owondump/internal/config"
	"owondump/internal/logging"
	"owondump/internal/transport"
	"owondump/internal/usbscope"
	"owondump/internal/vectorgram"
	"owondump/internal/version"
)

// Command line flag variables
var (
	cfgFile string // Configuration file path
	verbose bool   // Enable debug logging
)

// rootCmd performs a dump when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "owondump",
	Short: "Dump and decode the trace memory of an Owon PDS oscilloscope",
	Long: `owondump requests the trace memory of an attached Owon PDS oscilloscope,
saves the raw payload and, for vectorgram captures, a tab-separated table of
every channel in millivolts plus a YAML metadata sidecar.`,
	Args: cobra.NoArgs,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached scopes and serial ports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runList(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo("owondump"))
	},
}

func init() {
	// Assigned here rather than in the literal: runDump reads rootCmd's flags, which
	// would otherwise form an initialization cycle.
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if err := runDump(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./owondump.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	flags := rootCmd.Flags()
	flags.StringP("output", "o", ".", "output directory")
	flags.StringP("file", "f", "", "raw dump file name (default <prefix>_<unix time>.bin)")
	flags.String("prefix", "owon", "prefix for generated file names")
	flags.Bool("text", true, "write the tab-separated sample table")
	flags.Bool("metadata", true, "write the YAML metadata sidecar")
	flags.Int("index", 0, "which attached scope to use (0-based)")
	flags.Bool("reset", false, "reset the scope right after opening it")
	flags.String("serial", "", "use a serial port instead of USB")
	flags.Int("baud", 115200, "serial line speed")
	flags.String("layout", "auto", "channel header layout: auto, legacy or extended")
	flags.Duration("payload-timeout", 0, "payload read timeout (default from config)")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("output.dir", flags.Lookup("output"))
	viper.BindPFlag("output.file", flags.Lookup("file"))
	viper.BindPFlag("output.prefix", flags.Lookup("prefix"))
	viper.BindPFlag("output.text", flags.Lookup("text"))
	viper.BindPFlag("output.metadata", flags.Lookup("metadata"))
	viper.BindPFlag("usb.index", flags.Lookup("index"))
	viper.BindPFlag("usb.reset_on_open", flags.Lookup("reset"))
	viper.BindPFlag("serial.port", flags.Lookup("serial"))
	viper.BindPFlag("serial.baud_rate", flags.Lookup("baud"))
	viper.BindPFlag("decode.layout", flags.Lookup("layout"))

	rootCmd.AddCommand(listCmd, versionCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("owondump")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// OWONDUMP_OUTPUT_DIR overrides output.dir, and so on
	viper.SetEnvPrefix("owondump")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if d, err := rootCmd.Flags().GetDuration("payload-timeout"); err == nil && d > 0 {
		cfg.Transport.PayloadTimeout = d
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runDump is the main application logic
func runDump(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return err
	}

	opener := collector.OpenerFor(cfg)
	fmt.Printf("owondump %s starting...\n", version.Version)
	fmt.Printf("Device: %v\n", opener)
	fmt.Printf("Output: %s\n", cfg.Output.Dir)

	c := collector.NewCollector(cfg, opener, log)
	if err := c.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize collector: %w", err)
	}

	res, err := c.Collect(ctx)
	if err != nil {
		return err
	}
	if res.MetaFile != "" {
		fmt.Printf("Metadata saved to: %s (capture %s)\n", res.MetaFile, res.Metadata.CaptureID)
	}
	if res.Capture.Format.Kind == vectorgram.KindUnknown {
		fmt.Printf("Dump saved without decoding.\n")
		return nil
	}
	fmt.Printf("Dump completed successfully.\n")
	return nil
}

func runList() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	devices, err := usbscope.ListDevices(cfg.USB.VendorID, cfg.USB.ProductID)
	if err != nil {
		return err
	}
	fmt.Printf("USB scopes (%04x:%04x):\n", cfg.USB.VendorID, cfg.USB.ProductID)
	if len(devices) == 0 {
		fmt.Printf("  none found\n")
	}
	for i, d := range devices {
		fmt.Printf("  [%d] %s\n", i, d)
	}

	ports, err := transport.SerialPorts()
	if err != nil {
		return err
	}
	fmt.Printf("Serial ports:\n")
	if len(ports) == 0 {
		fmt.Printf("  none found\n")
	}
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

// main is the entry point of the application
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
