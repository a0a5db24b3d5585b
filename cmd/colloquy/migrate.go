package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/colloquy/pkg/settings"
	"github.com/go-go-golems/colloquy/pkg/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load(viper.GetViper())
			if err != nil {
				return err
			}
			// Open applies the schema.
			st, err := store.Open(cmd.Context(), s.Database.Driver, s.Database.DSN)
			if err != nil {
				return err
			}
			log.Info().Str("driver", s.Database.Driver).Msg("Database schema is up to date")
			return st.Close()
		},
	}
}
