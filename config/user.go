package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/awse2b/awse2b/errors"
)

// userSettings is the merged env > user-file view of the user tier. Empty
// strings mean "not configured"; defaults are applied by Resolve.
type userSettings struct {
	Region      string
	Domain      string
	AccessToken string
	APIKey      string
	TeamID      string
}

// loadUser reads ~/.aws_e2b/config.toml (or path when non-empty) and binds
// the environment overrides. Viper gives the env > file precedence; a missing
// file is not an error.
func loadUser(path string) (*userSettings, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Environment variables take precedence over the user file for these
	// keys. Team ID has no environment override.
	mustBindEnv(v, "aws.aws_region", "AWS_REGION")
	mustBindEnv(v, "e2b.e2b_domain", "E2B_DOMAIN")
	mustBindEnv(v, "e2b.e2b_access_token", "E2B_ACCESS_TOKEN")
	mustBindEnv(v, "e2b.e2b_api_key", "E2B_API_KEY")

	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			path = filepath.Join(home, ".aws_e2b", "config.toml")
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrap("parse user configuration", path, err)
			}
		}
	}

	return &userSettings{
		Region:      v.GetString("aws.aws_region"),
		Domain:      v.GetString("e2b.e2b_domain"),
		AccessToken: v.GetString("e2b.e2b_access_token"),
		APIKey:      v.GetString("e2b.e2b_api_key"),
		TeamID:      v.GetString("e2b.e2b_team_id"),
	}, nil
}

// mustBindEnv binds a viper key to an environment variable. BindEnv only
// fails on empty input, which would be a programming error here.
func mustBindEnv(v *viper.Viper, key, envVar string) {
	if err := v.BindEnv(key, envVar); err != nil {
		panic(err)
	}
}
