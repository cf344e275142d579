package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/speleodb/speleodb/pkg/views"
)

var resolveViewCmd = &cobra.Command{
	Use:   "resolve-view",
	Short: "Resolve a view into signed artifact URLs",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := context.Background()
		svc, err := buildServices(ctx, cfg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer svc.Close()

		viewID, _ := cmd.Flags().GetString("view")
		expiresIn, _ := cmd.Flags().GetInt("expires-in")

		aggregator := views.NewAggregator(svc.catalog, svc.adapter)
		resolved, err := aggregator.Resolve(ctx, viewID, time.Duration(expiresIn)*time.Second)
		if err != nil {
			fmt.Println("Resolve failed:", err)
			os.Exit(1)
		}
		out, err := json.MarshalIndent(resolved, "", "  ")
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(resolveViewCmd)
	resolveViewCmd.Flags().String("view", "", "view id")
	resolveViewCmd.Flags().Int("expires-in", 3600, "signed URL expiry in seconds (clamped to [60, 86400])")
	_ = resolveViewCmd.MarkFlagRequired("view")
}
