// ABOUTME: Sync command for backend reconciliation
// ABOUTME: Runs a pull/merge/push cycle and optionally mirrors to the reader service

package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/backend"
	"github.com/harper/superflux/internal/catalog"
	"github.com/harper/superflux/internal/config"
	"github.com/harper/superflux/internal/provider"
	syncer "github.com/harper/superflux/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync with the backend",
	Long:  "Pull remote state, merge it with the local catalog, and push local changes back",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.HasBackend() {
			return fmt.Errorf("no backend configured (set backend_dsn and backend_user_id in %s)", config.GetConfigPath())
		}

		be, err := backend.Open(cfg.BackendDSN, cfg.BackendUserID)
		if err != nil {
			return fmt.Errorf("failed to open backend: %w", err)
		}
		defer be.Close()

		if err := be.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("backend unreachable: %w", err)
		}

		logger := log.New(os.Stderr)
		engine, err := syncer.NewEngine(be, cat, store, logger)
		if err != nil {
			return fmt.Errorf("failed to set up sync: %w", err)
		}

		noMirror, _ := cmd.Flags().GetBool("no-mirror")
		if !noMirror {
			pcfg, ok, err := cfg.ProviderConfig()
			if err != nil {
				return fmt.Errorf("invalid provider config: %w", err)
			}
			if ok {
				p, err := provider.New(pcfg)
				if err != nil {
					return fmt.Errorf("failed to build provider: %w", err)
				}
				engine.SetMirror(syncer.NewMirror(p, cat, store, logger))
			}
		}

		var syncErrors int
		cat.OnChange(func(ev catalog.Event) {
			if ev.Kind == catalog.EventSyncError {
				syncErrors++
				fmt.Printf("%s %s: %s\n", color.RedString("✗"), ev.Op, ev.Message)
			}
		})

		ran, err := engine.Reconcile(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if !ran {
			fmt.Println("Sync already in progress")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		if syncErrors > 0 {
			fmt.Printf("%s Sync finished with %d error(s)\n", color.YellowString("!"), syncErrors)
		} else {
			fmt.Printf("%s Sync complete\n", green("✓"))
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		faint := color.New(color.Faint).SprintFunc()

		if !cfg.HasBackend() {
			fmt.Println("Backend: not configured")
		} else {
			fmt.Printf("Backend: %s\n", faint(cfg.BackendDSN))

			be, err := backend.Open(cfg.BackendDSN, cfg.BackendUserID)
			if err == nil {
				defer be.Close()
				engine, err := syncer.NewEngine(be, cat, store, log.New(os.Stderr))
				if err == nil {
					last, err := engine.LastSync()
					if err == nil && !last.IsZero() {
						fmt.Printf("Last sync: %s\n", last.Format("Mon, 02 Jan 2006 15:04 MST"))
					} else {
						fmt.Println("Last sync: never")
					}
				}
			}
		}

		pcfg, ok, err := cfg.ProviderConfig()
		if err != nil {
			fmt.Printf("Provider: %s\n", color.RedString("invalid config"))
		} else if ok {
			fmt.Printf("Provider: %s\n", pcfg.Kind())
		} else {
			fmt.Println("Provider: not configured")
		}

		feeds, items := cat.Snapshot()
		fmt.Printf("Catalog: %d feed(s), %d item(s)\n", len(feeds), len(items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncStatusCmd)

	syncCmd.Flags().Bool("no-mirror", false, "skip the reader-service mirror phase")
}
