package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ticket-bot",
	Short: "Discord-бот тикетов поддержки: создание, лайфцикл, транскрипты",
	RunE:  runBot,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(migrateCmd)
}
