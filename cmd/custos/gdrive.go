package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semmidev/custos/internal/app"
	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/infrastructure/logger"
)

var (
	gdriveClientSecret string
	gdriveListen       string
)

var gdriveAuthCmd = &cobra.Command{
	Use:   "gdrive-auth",
	Short: "Run the Google Drive consent flow and print a refresh token",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := gdriveClientSecret
		if secret == "" {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			secret = cfg.HTTP.GDriveClientSecret
		}

		log, err := logger.New("info", "")
		if err != nil {
			return err
		}
		defer log.Close()

		oauth, err := app.NewDriveOAuth(log, secret)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return oauth.Serve(ctx, gdriveListen)
	},
}

func init() {
	gdriveAuthCmd.Flags().StringVar(&gdriveClientSecret, "client-secret", "", "OAuth client secret JSON, defaults to http.gdrive_client_secret")
	gdriveAuthCmd.Flags().StringVar(&gdriveListen, "listen", ":8080", "address of the callback server")
}
