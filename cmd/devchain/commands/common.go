package commands

import (
	"fmt"
	"path/filepath"

	"github.com/airchains-network/devchain/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	})
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %v", level, err)
	}
	log.SetLevel(lvl)
	return log, nil
}

// homeDir returns the --home flag, else ~/.devchain
func homeDir(cmd *cobra.Command) (string, error) {
	home, _ := cmd.Flags().GetString("home")
	if home != "" {
		return home, nil
	}
	return config.HomeDir()
}

func configPath(home string) string {
	return filepath.Join(home, "config.toml")
}
