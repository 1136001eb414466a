package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadWithSecrets loads configuration with separate secrets file support.
// Precedence: flags > ENV > secrets file > config file > defaults
//
// Example:
//
//	config.yaml:
//	  transport:
//	    type: rest
//	    rest:
//	      base_url: https://chat.example.com/api/v10
//	      channel_id: "1234"
//
//	secrets.yaml:
//	  transport:
//	    rest:
//	      token: abc
//	  store:
//	    encryption_key: correct horse battery staple
//
// The secrets file is optional and discovered automatically:
// - <ENV_PREFIX>_SECRETS_FILE when set
// - secrets.{ext} next to the config file
// - secrets.{yaml,yml,json,toml} in the working directory
//
// The second return value holds only what the secrets file set, for Redacted.
func (l *ViperLoader) LoadWithSecrets() (*Config, *Config, error) {
	return l.load(true)
}

func (l *ViperLoader) mergeSecrets(v *viper.Viper) (*Config, error) {
	secretsFile, err := l.discoverSecretsFile()
	if err != nil || secretsFile == "" {
		return nil, err
	}
	secretsViper := viper.New()
	secretsViper.SetConfigFile(secretsFile)
	if err := secretsViper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
	}
	var secrets Config
	if err := secretsViper.Unmarshal(&secrets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secrets file %s: %w", secretsFile, err)
	}
	if err := v.MergeConfigMap(secretsViper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge secrets: %w", err)
	}
	return &secrets, nil
}

func (l *ViperLoader) discoverSecretsFile() (string, error) {
	secretsEnv := l.prefixedEnv("SECRETS_FILE")
	if raw, ok := os.LookupEnv(secretsEnv); ok {
		secretsFile := strings.TrimSpace(raw)
		if secretsFile == "" {
			return "", fmt.Errorf("%s is set but empty", secretsEnv)
		}
		info, err := os.Stat(secretsFile)
		if err != nil {
			return "", fmt.Errorf("%s points to an inaccessible file %s: %w", secretsEnv, secretsFile, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s must point to a file, got directory %s", secretsEnv, secretsFile)
		}
		return secretsFile, nil
	}

	if l.configFile != "" {
		secretsFile := filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile))
		if info, err := os.Stat(secretsFile); err == nil && !info.IsDir() {
			return secretsFile, nil
		}
	}

	for _, ext := range []string{".yaml", ".yml", ".json", ".toml"} {
		secretsFile := "secrets" + ext
		if info, err := os.Stat(secretsFile); err == nil && !info.IsDir() {
			return secretsFile, nil
		}
	}
	return "", nil
}
