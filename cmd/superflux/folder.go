// ABOUTME: Folder management commands
// ABOUTME: Lists, renames, and removes folders with cascading path updates

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
	Long:  "List, rename, and remove the folders feeds are organized into.",
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		folders := cat.Folders()
		if len(folders) == 0 {
			fmt.Println("No folders")
			return nil
		}
		faint := color.New(color.Faint).SprintFunc()
		counts := make(map[string]int)
		for _, feed := range cat.Feeds() {
			counts[feed.FolderPath]++
		}
		for _, path := range folders {
			fmt.Printf("%s %s\n", path, faint(fmt.Sprintf("(%d feeds)", counts[path])))
		}
		return nil
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a folder",
	Long:  "Rename a folder. Feeds and subfolders under the old path move with it.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cat.RenameFolder(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to rename folder: %w", err)
		}
		fmt.Printf("Renamed %q to %q\n", args[0], args[1])
		return nil
	},
}

var folderRemoveCmd = &cobra.Command{
	Use:     "remove <folder>",
	Aliases: []string{"rm"},
	Short:   "Remove a folder",
	Long:    "Remove a folder and its subfolders. Feeds inside move to the root.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cat.RemoveFolder(args[0]); err != nil {
			return fmt.Errorf("failed to remove folder: %w", err)
		}
		fmt.Printf("Removed %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(folderCmd)
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderRenameCmd)
	folderCmd.AddCommand(folderRemoveCmd)
}
