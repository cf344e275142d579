package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/speleodb/speleodb/pkg/catalog"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Point a project's working copy at a specific commit for editing, or back at the branch tip",
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
		sha, _ := cmd.Flags().GetString("commit")
		user, _ := cmd.Flags().GetString("user")

		if err := svc.catalog.AcquireLock(ctx, projectID, user); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// the mutex is released on every exit path of the guarded section
		defer func() {
			if err := svc.catalog.ReleaseLock(ctx, projectID, user); err != nil {
				fmt.Println("Failed to release project mutex:", err)
			}
		}()

		repo, err := svc.repos.Open(projectID)
		if err != nil {
			fmt.Println(err)
			return
		}
		if sha == "" {
			if err := repo.CheckoutDefault(); err != nil {
				fmt.Println("Checkout failed:", err)
				return
			}
		} else {
			if err := catalog.ValidateSHA(sha); err != nil {
				fmt.Println(err)
				return
			}
			// only mirrored commits are valid checkout targets
			if _, err := svc.catalog.GetCommit(ctx, projectID, sha); err != nil {
				fmt.Println(err)
				return
			}
			if err := repo.CheckoutCommit(sha); err != nil {
				fmt.Println("Checkout failed:", err)
				return
			}
		}
		head, err := repo.Head()
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println("Working copy at:", head)
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(checkoutCmd)
	checkoutCmd.Flags().String("project", "", "project id")
	checkoutCmd.Flags().String("commit", "", "commit sha (default branch tip when omitted)")
	checkoutCmd.Flags().String("user", "", "acting user")
	_ = checkoutCmd.MarkFlagRequired("project")
	_ = checkoutCmd.MarkFlagRequired("user")
}
