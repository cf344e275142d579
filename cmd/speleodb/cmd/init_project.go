package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initProjectCmd = &cobra.Command{
	Use:   "init-project",
	Short: "Register a new survey project and initialize its working copy",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := context.Background()
		svc, err := buildServices(ctx, cfg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer svc.Close()

		name, _ := cmd.Flags().GetString("name")
		format, _ := cmd.Flags().GetString("format")
		excludeGeoJSON, _ := cmd.Flags().GetBool("exclude-geojson")
		user, _ := cmd.Flags().GetString("user")

		project, err := svc.catalog.CreateProject(ctx, name, format, excludeGeoJSON, user)
		if err != nil {
			fmt.Println("Failed to create project:", err)
			os.Exit(1)
		}
		if _, err := svc.repos.Init(project.ID); err != nil {
			fmt.Println("Failed to initialize working copy:", err)
			os.Exit(1)
		}
		fmt.Println("Project created:", project.ID)
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(initProjectCmd)
	initProjectCmd.Flags().String("name", "", "project name")
	initProjectCmd.Flags().String("format", "", "survey format (ariane or compass)")
	initProjectCmd.Flags().Bool("exclude-geojson", false, "never materialize GeoJSON artifacts for this project")
	initProjectCmd.Flags().String("user", "", "acting user")
	_ = initProjectCmd.MarkFlagRequired("name")
	_ = initProjectCmd.MarkFlagRequired("format")
	_ = initProjectCmd.MarkFlagRequired("user")
}
