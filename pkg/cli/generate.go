package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoserve/confgen/pkg/assembler"
	"github.com/geoserve/confgen/pkg/generator"
	"github.com/geoserve/confgen/pkg/observability"
	"github.com/geoserve/confgen/pkg/schema"
)

func newGenerateCommand() *Command {
	cmd := &Command{
		Name:        "generate",
		Description: "Run one generation for a tenant and wait for it to finish",
	}
	cmd.Run = func(args []string) error {
		flags := flag.NewFlagSet("generate", flag.ExitOnError)
		tenantName := flags.String("tenant", "default", "Tenant to generate for")
		configPath := flags.String("config", "", "Tenant config file (overrides discovery under -input-dir)")
		inputDir := flags.String("input-dir", ".", "Directory with per-tenant config subdirectories")
		outputDir := flags.String("output-dir", "./out", "Directory receiving the published output")
		schemaDir := flags.String("schema-dir", "", "Directory with per-service JSON schemas")
		timeout := flags.Duration("timeout", 10*time.Minute, "Abort the run after this duration")
		logLevel := flags.String("log-level", "info", "Log level (debug, info, warn, error)")
		if err := flags.Parse(args); err != nil {
			return err
		}

		logger := setupLogger(*logLevel)

		var validator assembler.Validator
		if *schemaDir != "" {
			validator = schema.NewRegistry(*schemaDir)
		}

		m := generator.NewManager(generator.ManagerOptions{
			InputDir:  *inputDir,
			OutputDir: *outputDir,
			Validator: validator,
			Logger:    observability.NopLogger(),
		})

		ctx, cancelWait := context.WithTimeout(context.Background(), *timeout)
		defer cancelWait()
		info, err := m.Stream(ctx, *tenantName, generator.Options{ConfigPath: *configPath}, func(line generator.LogLine) {
			switch line.Level {
			case "error":
				logger.Error(line.Message)
			case "warning":
				logger.Warn(line.Message)
			default:
				logger.Info(line.Message)
			}
		})
		if err != nil {
			return fmt.Errorf("generation did not finish: %w", err)
		}

		if info.Status != generator.StatusSucceeded {
			return fmt.Errorf("generation %s: %s", info.Status, info.Error)
		}
		logger.Infof("Output published to %s", info.OutputDir)
		return nil
	}
	return cmd
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
