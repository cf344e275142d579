package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	blockparams "github.com/speleodb/speleodb/pkg/block/params"
	"github.com/speleodb/speleodb/pkg/logging"
)

const (
	DefaultLoggingFormat        = "text"
	DefaultLoggingLevel         = "INFO"
	DefaultLoggingOutput        = "-"
	DefaultLoggingFileMaxSizeMB = 100
	DefaultLoggingFilesKeep     = 100

	DefaultDatabaseType = "mem"

	DefaultBlockstoreType     = "mem"
	DefaultBlockstoreS3Region = "us-east-1"

	DefaultRepositoriesPath = "~/data/speleodb/repos"
)

var ErrBadConfiguration = errors.New("bad configuration")

type configuration struct {
	Logging struct {
		Format        string   `mapstructure:"format"`
		Level         string   `mapstructure:"level"`
		Output        []string `mapstructure:"output"`
		FileMaxSizeMB int      `mapstructure:"file_max_size_mb"`
		FilesKeep     int      `mapstructure:"files_keep"`
	} `mapstructure:"logging"`
	Database struct {
		Type             string `mapstructure:"type"`
		ConnectionString string `mapstructure:"connection_string"`
	} `mapstructure:"database"`
	Blockstore struct {
		Type string `mapstructure:"type"`
		S3   struct {
			Region          string `mapstructure:"region"`
			Bucket          string `mapstructure:"bucket"`
			Endpoint        string `mapstructure:"endpoint"`
			ForcePathStyle  bool   `mapstructure:"force_path_style"`
			AccessKeyID     string `mapstructure:"access_key_id"`
			SecretAccessKey string `mapstructure:"secret_access_key"`
		} `mapstructure:"s3"`
	} `mapstructure:"blockstore"`
	Repositories struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"repositories"`
}

type Config struct {
	values configuration
}

func setDefaults() {
	viper.SetDefault("logging.format", DefaultLoggingFormat)
	viper.SetDefault("logging.level", DefaultLoggingLevel)
	viper.SetDefault("logging.output", []string{DefaultLoggingOutput})
	viper.SetDefault("logging.file_max_size_mb", DefaultLoggingFileMaxSizeMB)
	viper.SetDefault("logging.files_keep", DefaultLoggingFilesKeep)
	viper.SetDefault("database.type", DefaultDatabaseType)
	viper.SetDefault("blockstore.type", DefaultBlockstoreType)
	viper.SetDefault("blockstore.s3.region", DefaultBlockstoreS3Region)
	viper.SetDefault("repositories.path", DefaultRepositoriesPath)
}

func NewConfig() (*Config, error) {
	c := &Config{}
	setDefaults()
	err := viper.UnmarshalExact(&c.values, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeDurationHookFunc())))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadConfiguration, err)
	}
	if c.values.Blockstore.Type == "s3" && c.values.Blockstore.S3.Bucket == "" {
		return nil, fmt.Errorf("%w: blockstore.s3.bucket is required", ErrBadConfiguration)
	}
	return c, nil
}

// SetupLogging applies the logging section to the default logger.
func (c *Config) SetupLogging() {
	logging.SetOutputFormat(c.values.Logging.Format)
	logging.SetOutputs(c.values.Logging.Output, c.values.Logging.FileMaxSizeMB, c.values.Logging.FilesKeep)
	logging.SetLevel(c.values.Logging.Level)
}

func (c *Config) DatabaseType() string {
	return c.values.Database.Type
}

func (c *Config) DatabaseConnectionString() string {
	return c.values.Database.ConnectionString
}

func (c *Config) BlockstoreParams() blockparams.Params {
	return blockparams.Params{
		Type: c.values.Blockstore.Type,
		S3: blockparams.S3{
			Region:          c.values.Blockstore.S3.Region,
			Bucket:          c.values.Blockstore.S3.Bucket,
			Endpoint:        c.values.Blockstore.S3.Endpoint,
			ForcePathStyle:  c.values.Blockstore.S3.ForcePathStyle,
			AccessKeyID:     c.values.Blockstore.S3.AccessKeyID,
			SecretAccessKey: c.values.Blockstore.S3.SecretAccessKey,
		},
	}
}

// RepositoriesPath returns the root directory of project working copies,
// with a leading ~ expanded.
func (c *Config) RepositoriesPath() (string, error) {
	p := c.values.Repositories.Path
	if strings.HasPrefix(p, "~") {
		return homedir.Expand(p)
	}
	return p, nil
}
