// Command link-indicator drives a status LED from the wireless link state and
// clears settings storage when the clear button is held at startup.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sweeney/link-indicator/internal/config"
	"github.com/sweeney/link-indicator/internal/logic"
	"github.com/sweeney/link-indicator/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "link-indicator",
		Short: "Blink the status LED to show the wireless link state",
		Long: `Runs the link indicator daemon: a single producer (simulator, MQTT or BLE) ` +
			`publishes connection states and the controller renders the matching blink pattern.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the daemon (default)",
			Args:  cobra.NoArgs,
			RunE:  root.RunE,
		},
		newClearStorageCmd(&configPath),
		newPatternsCmd(&configPath),
	)
	return root
}

func loadConfig(cmd *cobra.Command, path string) (config.Config, error) {
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newClearStorageCmd(configPath *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-storage",
		Short: "Erase the configured storage region without the button hold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to erase without --yes")
			}
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			return forceClear(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the erase")
	return cmd
}

func forceClear(w io.Writer, cfg config.Config) error {
	img, err := storage.OpenFlashImage(cfg.Storage.Image, cfg.Storage.FlashSize)
	if err != nil {
		return fmt.Errorf("open flash image: %w", err)
	}
	region := cfg.Region()
	if err := storage.Force(region, img); err != nil {
		img.Close()
		return err
	}
	if err := img.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "erased %s in %s\n", region, cfg.Storage.Image)
	return nil
}

func newPatternsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Print the blink pattern for each state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			printPatterns(cmd.OutOrStdout(), cfg.Decoder())
			return nil
		},
	}
}

func printPatterns(w io.Writer, d logic.Decoder) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tSTATE\tPATTERN\tRECHECK")
	for _, s := range logic.States() {
		rendered := d.Normalize(s)
		p := logic.PatternFor(rendered)
		desc := p.Describe()
		if rendered != s {
			desc = "as " + rendered.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\n", uint8(s), s, desc, p.Latency())
	}
	tw.Flush()
}
