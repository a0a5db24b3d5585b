package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/colloquy/pkg/models"
	"github.com/go-go-golems/colloquy/pkg/settings"
)

func newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the configured chat models and their provider models",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load(viper.GetViper())
			if err != nil {
				return err
			}
			registry := models.NewRegistry(s.Chat.Models)

			all, _ := cmd.Flags().GetBool("all")
			var list []models.ChatModel
			if all {
				for _, id := range registry.IDs() {
					m, _ := registry.Get(id)
					list = append(list, m)
				}
			} else {
				list = registry.Selectable()
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(list)
		},
	}
	cmd.Flags().Bool("all", false, "Include internal models such as the title model")
	return cmd
}
