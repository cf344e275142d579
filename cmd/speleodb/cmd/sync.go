package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror a project's commit history into the catalog",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := context.Background()
		svc, err := buildServices(ctx, cfg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer svc.Close()

		projectID, _ := cmd.Flags().GetString("project")
		repo, err := svc.repos.Open(projectID)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if err := svc.catalog.SyncCommits(ctx, projectID, repo); err != nil {
			fmt.Println("Sync failed:", err)
			os.Exit(1)
		}
		commits, err := svc.catalog.ListCommits(ctx, projectID)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Printf("Mirrored commits: %d\n", len(commits))
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("project", "", "project id")
	_ = syncCmd.MarkFlagRequired("project")
}
