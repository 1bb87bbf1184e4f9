package cmd

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/curaious/ors/internal/config"
	"github.com/curaious/ors/internal/perrors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagEmail    string
	flagPassword string
	flagJSON     bool
)

var rootCmd = &cobra.Command{
	Use:           "ors",
	Short:         "ORS fleet-inspection client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := godotenv.Overload()
		if err != nil {
			log.Println("Error loading .env file, skipping")
		}
		setupLogger(config.GetEnvOrDefault("ORS_LOG_LEVEL", "info"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEmail, "email", "", "account email (default $ORS_EMAIL)")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "account password (default $ORS_PASSWORD)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print results as JSON")
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var perr perrors.Err
		if errors.As(err, &perr) && slog.Default().Enabled(ctx, slog.LevelDebug) {
			perr.Print(ctx)
		}
		stop()
		log.Fatalln(err.Error())
	}
}
