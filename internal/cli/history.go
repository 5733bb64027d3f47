package cli

import (
	"fmt"

	"github.com/harun/eva/internal/config"
	"github.com/harun/eva/internal/container"
	"github.com/harun/eva/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversation turns",
	Long:  `Show the most recent turns from the durable conversation log.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of turns to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	c, err := container.New(cmd.Context(), cfg, container.Options{Logger: zerolog.Nop()})
	if err != nil {
		return err
	}
	defer c.Close()

	log, err := c.DurableLog()
	if err != nil {
		return err
	}
	entries, err := log.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println("No conversation history.")
		return nil
	}

	for _, e := range entries {
		printEntry(cmd, cfg.Agent.Name, e)
	}
	return nil
}

func printEntry(cmd *cobra.Command, agentName string, e memory.Entry) {
	ts := e.Time.Format("2006-01-02 15:04:05")
	if e.UserMessage != "" {
		speaker := e.SpeakerName
		if speaker == "" {
			speaker = "user"
		}
		cmd.Printf("[%s] %s: %s\n", ts, speaker, e.UserMessage)
	}
	cmd.Printf("[%s] %s: %s\n", ts, agentName, e.AgentMessage)
	for _, a := range e.Action {
		cmd.Printf("[%s]   -> %s\n", ts, a.Name)
	}
}
