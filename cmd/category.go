package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/microx-shell/microx/internal/category"
	"github.com/microx-shell/microx/internal/config"
)

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage command categories",
	Long: `Inspect and edit the command category store used by the shell.
Categories decide how a command executes: simple (output captured),
semi_interactive (tmux window, output captured on close) or
interactive_tui (tmux window, full interaction).`,
}

func openStore() *category.Store {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := category.EnsureDefaultFile(cfg.DefaultCategoriesPath()); err != nil {
		log.Fatalf("Failed to seed default categories: %v", err)
	}
	store, err := category.NewStore(cfg.DefaultCategoriesPath(), cfg.UserCategoriesPath(), zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to open category store: %v", err)
	}
	return store
}

var listCategoriesCmd = &cobra.Command{
	Use:   "list",
	Short: "List categorized commands",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		listed := store.List()
		for _, cat := range category.All {
			fmt.Printf("%s:\n", cat)
			for _, c := range listed[cat] {
				fmt.Printf("  %s\n", c)
			}
		}
	},
}

var addCategoryCmd = &cobra.Command{
	Use:   "add <category> <command...>",
	Short: "Categorize a command",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cat, err := category.Parse(args[0])
		if err != nil {
			log.Fatalf("%v", err)
		}
		command := strings.Join(args[1:], " ")
		store := openStore()
		alreadySet, err := store.Add(command, cat)
		if err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		if alreadySet {
			fmt.Printf("'%s' already set as %s\n", command, cat)
			return
		}
		fmt.Printf("Saved '%s' as %s\n", command, cat)
	},
}

var moveCategoryCmd = &cobra.Command{
	Use:   "move <category> <command...>",
	Short: "Move a command to another category",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cat, err := category.Parse(args[0])
		if err != nil {
			log.Fatalf("%v", err)
		}
		command := strings.Join(args[1:], " ")
		store := openStore()
		if err := store.Move(command, cat); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		fmt.Printf("Moved '%s' to %s\n", command, cat)
	},
}

var removeCategoryCmd = &cobra.Command{
	Use:   "remove <command...>",
	Short: "Forget a command's user-set category",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		command := strings.Join(args, " ")
		store := openStore()
		removed, err := store.Remove(command)
		if err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		if !removed {
			fmt.Printf("'%s' has no user-set category\n", command)
			return
		}
		fmt.Printf("Removed '%s'\n", command)
	},
}

func init() {
	categoryCmd.AddCommand(listCategoriesCmd)
	categoryCmd.AddCommand(addCategoryCmd)
	categoryCmd.AddCommand(moveCategoryCmd)
	categoryCmd.AddCommand(removeCategoryCmd)
}
