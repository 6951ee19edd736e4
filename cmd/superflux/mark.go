// ABOUTME: Read, unread, star, and unstar commands for item state
// ABOUTME: Mutates catalog flags and queues the changes for backend write-back

package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/backend"
	"github.com/harper/superflux/internal/models"
	syncer "github.com/harper/superflux/internal/sync"
	"github.com/harper/superflux/internal/timeutil"
)

var readCmd = &cobra.Command{
	Use:   "read [item-id]",
	Short: "Mark items as read",
	Long:  "Mark a single item, all items, or all items from a period as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMark(cmd, args, "read", func(it *models.Item) bool {
			if it.IsRead {
				return false
			}
			it.IsRead = true
			return true
		})
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread [item-id]",
	Short: "Mark items as unread",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMark(cmd, args, "unread", func(it *models.Item) bool {
			if !it.IsRead {
				return false
			}
			it.IsRead = false
			return true
		})
	},
}

var starCmd = &cobra.Command{
	Use:   "star <item-id>",
	Short: "Star an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMark(cmd, args, "starred", func(it *models.Item) bool {
			if it.IsStarred {
				return false
			}
			it.IsStarred = true
			return true
		})
	},
}

var unstarCmd = &cobra.Command{
	Use:   "unstar <item-id>",
	Short: "Unstar an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMark(cmd, args, "unstarred", func(it *models.Item) bool {
			if !it.IsStarred {
				return false
			}
			it.IsStarred = false
			return true
		})
	},
}

// runMark applies a flag mutation to the selected items. The change
// func reports whether the item needs the mutation at all; items
// already in the desired state are left untouched so a no-op bulk mark
// doesn't bump UpdatedAt and steal later merges from other devices.
func runMark(cmd *cobra.Command, args []string, verb string, mutate func(*models.Item) bool) error {
	all, _ := cmd.Flags().GetBool("all")
	period, _ := cmd.Flags().GetString("period")

	var targets []*models.Item
	switch {
	case len(args) == 1:
		item, err := resolveItem(args[0])
		if err != nil {
			return err
		}
		targets = []*models.Item{item}
	case all:
		targets = cat.Items()
	case period != "":
		cutoff, ok := timeutil.ParsePeriod(period)
		if !ok {
			return fmt.Errorf("unknown period %q (try today, yesterday, week, month)", period)
		}
		for _, item := range cat.Items() {
			if item.PublishedAt != nil && !item.PublishedAt.Before(cutoff) {
				targets = append(targets, item)
			}
		}
	default:
		return fmt.Errorf("specify an item id, --all, or --period")
	}

	var changed []string
	for _, item := range targets {
		// Try a copy first; MutateItem always advances UpdatedAt, so
		// it must only run for items that actually change.
		if !mutate(item.Clone()) {
			continue
		}
		if err := cat.MutateItem(item.ID, func(it *models.Item) {
			mutate(it)
		}); err != nil {
			return err
		}
		changed = append(changed, item.ID)
	}

	pushFlagChanges(cmd, changed)

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %d item(s) %s\n", green("✓"), len(changed), verb)
	return nil
}

// pushFlagChanges queues freshly mutated items on the write-back queue
// and flushes before the command exits. Skipped entirely when no
// backend is configured; failures warn rather than fail the command
// since the next sync cycle re-pushes the items anyway.
func pushFlagChanges(cmd *cobra.Command, itemIDs []string) {
	if len(itemIDs) == 0 || !cfg.HasBackend() {
		return
	}

	be, err := backend.Open(cfg.BackendDSN, cfg.BackendUserID)
	if err != nil {
		log.Warn("backend unavailable, changes will push on next sync", "error", err)
		return
	}
	defer be.Close()

	logger := log.New(os.Stderr)
	engine, err := syncer.NewEngine(be, cat, store, logger)
	if err != nil {
		log.Warn("failed to set up write-back, changes will push on next sync", "error", err)
		return
	}

	queue := engine.Queue()
	for _, id := range itemIDs {
		item, err := cat.Item(id)
		if err != nil {
			continue
		}
		queue.Touch(item)
	}
	if err := queue.Flush(cmd.Context()); err != nil {
		log.Warn("write-back failed, changes will push on next sync", "error", err)
	}
	queue.Stop()
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(unreadCmd)
	rootCmd.AddCommand(starCmd)
	rootCmd.AddCommand(unstarCmd)

	for _, c := range []*cobra.Command{readCmd, unreadCmd} {
		c.Flags().BoolP("all", "a", false, "mark every item")
		c.Flags().StringP("period", "p", "", "mark items published since: today, yesterday, week, month")
	}
}
