package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/eva/internal/config"
	"github.com/harun/eva/internal/container"
	"github.com/harun/eva/pkg/identity"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	voiceID   string
	pictureID string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the users EVA knows",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersAdd,
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Change the voice or picture id of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersUpdate,
}

func init() {
	for _, c := range []*cobra.Command{usersAddCmd, usersUpdateCmd} {
		c.Flags().StringVar(&voiceID, "voice", "", "voice id, e.g. V00002")
		c.Flags().StringVar(&pictureID, "picture", "", "picture id, e.g. P00002")
	}
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersUpdateCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	return withUsers(cmd, func(users *identity.Registry) error {
		list := users.Users()
		if len(list) == 0 {
			cmd.Println("No registered users.")
			return nil
		}
		for _, u := range list {
			cmd.Printf("- %s | voice: %s | picture: %s\n", u.Name, orDash(u.VoiceID), orDash(u.PictureID))
		}
		return nil
	})
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	return withUsers(cmd, func(users *identity.Registry) error {
		if err := users.AddUser(cmd.Context(), name, voiceID, pictureID); err != nil {
			return err
		}
		cmd.Printf("Registered %s.\n", name)
		return nil
	})
}

func runUsersUpdate(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	return withUsers(cmd, func(users *identity.Registry) error {
		if err := users.UpdateUser(cmd.Context(), name, voiceID, pictureID); err != nil {
			return err
		}
		cmd.Printf("Updated %s.\n", name)
		return nil
	})
}

func withUsers(cmd *cobra.Command, fn func(*identity.Registry) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := container.New(ctx, cfg, container.Options{Logger: zerolog.Nop()})
	if err != nil {
		return err
	}
	defer c.Close()

	users, err := c.Users()
	if err != nil {
		return fmt.Errorf("failed to open user registry: %w", err)
	}
	return fn(users)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
