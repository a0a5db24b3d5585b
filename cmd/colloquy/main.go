package main

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-go-golems/colloquy/pkg/settings"
)

var rootCmd = &cobra.Command{
	Use:   "colloquy",
	Short: "colloquy serves a tool-calling AI chat backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if err := initConfig(cmd, configFile); err != nil {
			return err
		}
		// reinitialize the logger now that flags, env and config are merged
		return initLogger()
	},
	SilenceUsage: true,
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initLogger() error {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}
	return InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
}

func initConfig(cmd *cobra.Command, configPath string) error {
	v := viper.GetViper()
	settings.SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.colloquy")
		v.AddConfigPath("/etc/colloquy")
		if xdgConfigPath, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(xdgConfigPath + "/colloquy")
		}
	}

	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file, defaults and environment only
	} else if err != nil {
		return err
	}

	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	for key, flag := range settingFlags {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	log.Debug().Str("config", v.ConfigFileUsed()).Msg("Loaded configuration")
	return nil
}

// settingFlags maps nested settings keys onto the command flags that
// override them.
var settingFlags = map[string]string{
	"server.addr":             "addr",
	"server.identity-header":  "identity-header",
	"database.driver":         "db-driver",
	"database.dsn":            "db-dsn",
	"provider.base-url":       "provider-base-url",
	"provider.allow-insecure": "allow-insecure",
	"chat.max-steps":          "max-steps",
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	// default is json
	var logWriter io.Writer
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	log.Logger = log.Output(logWriter)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.colloquy/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	rootCmd.PersistentFlags().String("db-driver", "", "Database driver (sqlite3, pgx)")
	rootCmd.PersistentFlags().String("db-dsn", "", "Database DSN")

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newModelsCommand(),
		newTranscriptCommand(),
		newUserCommand(),
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
