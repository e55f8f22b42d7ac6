package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/buildtimes/pkg/upload"
)

var (
	publishDir           string
	publishSkipPreflight bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the dashboard directory to S3",
	Long:  `Upload the generated dashboard directory to S3-compatible storage using the publish.s3 settings.`,
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishDir, "dir", "",
		"Directory to upload (defaults to the output document's directory)")
	publishCmd.Flags().BoolVar(&publishSkipPreflight, "skip-preflight", false,
		"Skip the write test before uploading")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.ValidatePublish(); err != nil {
		return fmt.Errorf("validating publish config: %w", err)
	}

	dir := publishDir
	if dir == "" {
		dir = cfg.ServeDir()
	}

	ctx := cmd.Context()
	uploader := upload.NewS3Uploader(log, &cfg.Publish.S3)

	if !publishSkipPreflight {
		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("s3 preflight: %w", err)
		}
	}

	log.WithField("dir", dir).Info("Publishing dashboard")

	n, err := uploader.Upload(ctx, dir)
	if err != nil {
		return fmt.Errorf("publishing dashboard: %w", err)
	}

	log.WithField("files", n).Info("Dashboard published successfully")

	return nil
}
