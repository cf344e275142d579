package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/speleodb/speleodb/pkg/block"
	blockfactory "github.com/speleodb/speleodb/pkg/block/factory"
	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/config"
	"github.com/speleodb/speleodb/pkg/kv"
	_ "github.com/speleodb/speleodb/pkg/kv/mem"
	_ "github.com/speleodb/speleodb/pkg/kv/postgres"
	"github.com/speleodb/speleodb/pkg/logging"
	"github.com/speleodb/speleodb/pkg/repository"
	"github.com/speleodb/speleodb/pkg/version"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "speleodb",
	Short:   "speleodb manages versioned cave survey projects and their GeoJSON feeds",
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var initOnce sync.Once

//nolint:gochecknoinits
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.speleodb/config.yaml)")
}

func loadConfig() *config.Config {
	initOnce.Do(initConfig)
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Println("Failed to load config file", err)
		os.Exit(1)
	}
	cfg.SetupLogging()
	return cfg
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	logger := logging.Default().WithField("phase", "startup")
	if cfgFile != "" {
		logger.WithField("file", cfgFile).Info("Configuration file")
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath(path.Join(getHomeDir(), ".speleodb"))
		viper.AddConfigPath("/etc/speleodb")
	}

	viper.SetEnvPrefix("SPELEODB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // support nested config
	// read in environment variables
	viper.AutomaticEnv()

	// read configuration file
	err := viper.ReadInConfig()
	logger = logger.WithField("file", viper.ConfigFileUsed()) // should be called after SetConfigFile
	var errFileNotFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &errFileNotFound) {
		logger.WithError(err).Fatal("Failed to read config file")
	}
}

// getHomeDir find and return the home directory
func getHomeDir() string {
	home, err := homedir.Dir()
	if err != nil {
		fmt.Println("Get home directory -", err)
		os.Exit(1)
	}
	return home
}

// services is the wired set of components the subcommands operate on.
type services struct {
	store    kv.Store
	catalog  *catalog.Catalog
	adapter  block.Adapter
	repos    *repository.Manager
	reposDir string
}

func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	store, err := kv.Open(ctx, cfg.DatabaseType(), cfg.DatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	adapter, err := blockfactory.BuildBlockAdapter(ctx, cfg.BlockstoreParams())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build blockstore adapter: %w", err)
	}
	reposDir, err := cfg.RepositoriesPath()
	if err != nil {
		store.Close()
		return nil, err
	}
	return &services{
		store:    store,
		catalog:  catalog.New(store),
		adapter:  adapter,
		repos:    repository.NewManager(reposDir),
		reposDir: reposDir,
	}, nil
}

func (s *services) Close() {
	s.store.Close()
}
