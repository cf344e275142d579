package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/speleodb/speleodb/pkg/geojson"
	"github.com/speleodb/speleodb/pkg/repository"
	"github.com/speleodb/speleodb/pkg/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload a survey bundle as a new commit",
	Args:  cobra.MinimumNArgs(1),
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
		format, _ := cmd.Flags().GetString("format")
		message, _ := cmd.Flags().GetString("message")
		authorName, _ := cmd.Flags().GetString("author-name")
		authorEmail, _ := cmd.Flags().GetString("author-email")

		bundle := make(map[string][]byte, len(args))
		for _, arg := range args {
			content, err := os.ReadFile(arg)
			if err != nil {
				fmt.Println("Failed to read bundle file:", err)
				os.Exit(1)
			}
			bundle[filepath.Base(arg)] = content
		}

		if err := svc.catalog.AcquireLock(ctx, projectID, authorName); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// the mutex is released on every exit path of the guarded section
		defer func() {
			if err := svc.catalog.ReleaseLock(ctx, projectID, authorName); err != nil {
				fmt.Println("Failed to release project mutex:", err)
			}
		}()

		materializer := geojson.NewMaterializer(svc.catalog, svc.adapter)
		pipeline := upload.NewPipeline(svc.catalog, svc.repos, materializer)
		result, err := pipeline.Upload(ctx, projectID, format, bundle, message, repository.Author{
			Name:  authorName,
			Email: authorEmail,
		})
		if err != nil {
			if result != nil {
				// post-commit failure: the commit is kept
				fmt.Printf("Commit %s created, post-commit step failed: %s\n", result.SHA, err)
			} else {
				fmt.Println("Upload failed:", err)
			}
			return
		}
		if result.Created {
			fmt.Println("Committed:", result.SHA)
		} else {
			fmt.Println("No change, already at:", result.SHA)
		}
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().String("project", "", "project id")
	uploadCmd.Flags().String("format", "", "bundle format (ariane or compass)")
	uploadCmd.Flags().StringP("message", "m", "", "commit message")
	uploadCmd.Flags().String("author-name", "", "commit author name")
	uploadCmd.Flags().String("author-email", "", "commit author email")
	_ = uploadCmd.MarkFlagRequired("project")
	_ = uploadCmd.MarkFlagRequired("format")
	_ = uploadCmd.MarkFlagRequired("message")
	_ = uploadCmd.MarkFlagRequired("author-name")
	_ = uploadCmd.MarkFlagRequired("author-email")
}
