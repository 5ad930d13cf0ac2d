package config

import (
	"errors"
	"path/filepath"

	"github.com/go-i2p/go-cbcservice/lib/util"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/spf13/viper"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const CBCSERVICE_BASE_DIR = ".go-cbcservice"

// InitConfig points viper at the config file, applies defaults and reads
// the file, creating it when the default location has none.
func InitConfig() error {
	if CfgFile != "" {
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	return handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault("service.capacity", d.Service.Capacity)
	viper.SetDefault("service.max_message_size", d.Service.MaxMessageSize)
	viper.SetDefault("service.queue_size", d.Service.QueueSize)

	viper.SetDefault("transport.enabled", d.Transport.Enabled)
	viper.SetDefault("transport.network", d.Transport.Network)
	viper.SetDefault("transport.address", d.Transport.Address)
	viper.SetDefault("transport.max_connections", d.Transport.MaxConnections)
	viper.SetDefault("transport.rate_limit", d.Transport.RateLimit)
	viper.SetDefault("transport.rate_burst", d.Transport.RateBurst)
	viper.SetDefault("transport.secret_hash", d.Transport.SecretHash)

	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
	viper.SetDefault("metrics.address", d.Metrics.Address)

	viper.SetDefault("client.timeout", d.Client.Timeout)
}

func createDefaultConfig(defaultConfigDir string) error {
	// The file may later hold transport.secret_hash.
	if err := CreateSecureDirectory(defaultConfigDir); err != nil {
		return err
	}

	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := viper.WriteConfigAs(defaultConfigFile); err != nil {
		return oops.Wrapf(err, "could not write default config file")
	}

	log.WithFields(logger.Fields{
		"at":   "config.createDefaultConfig",
		"path": defaultConfigFile,
	}).Debug("created_default_config")
	return nil
}

func handleConfigFile() error {
	err := viper.ReadInConfig()
	if err == nil {
		log.WithField("path", viper.ConfigFileUsed()).Debug("using_config_file")
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && CfgFile == "" {
		return createDefaultConfig(BuildDirPath())
	}
	if CfgFile != "" {
		return oops.Wrapf(err, "config file %s could not be read", CfgFile)
	}
	return oops.Wrapf(err, "error reading config file")
}

// BuildDirPath returns $HOME/.go-cbcservice.
func BuildDirPath() string {
	return filepath.Join(util.UserHome(), CBCSERVICE_BASE_DIR)
}
