package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:           "farmsched",
	Short:         "Farm growth and watering scheduler",
	Long:          "farmsched tracks every plant on the farm, decides when zones are watered and which plants are due for repotting, and drives the fleet that does the work.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the scheduler loop and the device fleet",
	RunE:  runServe,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the water hours and the repot table, then exit",
	RunE:  runSchedule,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the description files and stored records and report what was skipped",
	RunE:  runValidate,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .farmsched.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory of plant and slot records")
	serveCmd.Flags().Int("port", 0, "HTTP port")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd, scheduleCmd, validateCmd)
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".farmsched")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("FARMSCHED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// no config file is fine, defaults apply
	_ = viper.ReadInConfig()
}

// prepare loads the configuration and installs the logger.
func prepare() (*AppConfig, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.LogLevel, cfg.Environment); err != nil {
		return nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		log.Info().Str("path", used).Msg("Using config file")
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := prepare()
	if err != nil {
		return err
	}

	appCtx, appCancel := context.WithCancel(cmd.Context())
	defer appCancel()
	setupShutdownListener(appCancel)

	fms, err := NewFMS(appCtx, WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer fms.Shutdown()

	if err := fms.Start(appCtx); err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})
	mapRoutes(app, fms)

	g, gctx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		return fms.engine.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down HTTP server...")
		return app.Shutdown()
	})
	g.Go(func() error {
		err := app.Listen(fmt.Sprintf(":%d", cfg.Port), fiber.ListenConfig{DisableStartupMessage: true})
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	log.Info().Int("port", cfg.Port).Str("app", cfg.AppName).Msg("Serving")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := prepare()
	if err != nil {
		return err
	}
	cfg.WatchLayout = false
	cfg.SimulateDevices = false

	fms, err := NewFMS(cmd.Context(), WithConfig(cfg))
	if err != nil {
		return err
	}
	defer fms.Shutdown()

	fms.engine.Restore(cmd.Context())
	printSchedule(cmd.OutOrStdout(), fms)
	return nil
}

func printSchedule(w io.Writer, fms *FMS) {
	fmt.Fprintf(w, "Water hours: %v\n", fms.engine.WaterTimes())
	buckets := fms.engine.RepotTable()
	if len(buckets) == 0 {
		fmt.Fprintln(w, "No plants.")
		return
	}
	for _, b := range buckets {
		ids := make([]string, 0, len(b.Plants))
		for _, p := range b.Plants {
			ids = append(ids, fmt.Sprintf("%d(%s@%s)", p.ID, p.Type, p.SlotID))
		}
		fmt.Fprintf(w, "%4d days: %s\n", b.Remaining, strings.Join(ids, " "))
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := prepare()
	if err != nil {
		return err
	}
	cfg.WatchLayout = false
	cfg.SimulateDevices = false

	fms, err := NewFMS(cmd.Context(), WithConfig(cfg))
	if err != nil {
		return err
	}
	defer fms.Shutdown()

	report := fms.engine.Restore(cmd.Context())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "zones: %d\n", len(fms.engine.Zones()))
	fmt.Fprintf(out, "slots: %d (%d restored, %d unreadable, %d not in layout)\n",
		len(fms.engine.Slots()), report.Slots.Succeeded, len(report.Slots.Failed), len(report.SlotsDropped))
	fmt.Fprintf(out, "plants: %d (%d unreadable, %d rejected)\n",
		len(fms.engine.Plants()), len(report.Plants.Failed), len(report.PlantsSkipped))
	fmt.Fprintf(out, "plant types: %d\n", len(fms.engine.CatalogNames()))
	fmt.Fprintf(out, "tools: %d\n", len(fms.engine.Tools()))

	if !report.Slots.OK() || !report.Plants.OK() || len(report.SlotsDropped) > 0 || len(report.PlantsSkipped) > 0 {
		return errors.New("some records were skipped")
	}
	return nil
}
