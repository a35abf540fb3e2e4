// Package config resolves runtime settings from the environment, an
// optional .env file, and an optional JSON credential file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/LuneZ99/bili-downloader/internal/bili"
)

const envVarPrefix = "BILI"

// Config carries every tunable the commands share. Credential fields
// come from the environment first; a credential file passed on the
// command line overrides them.
type Config struct {
	SESSDATA   string `envconfig:"BILI_SESSDATA"`
	BiliJCT    string `envconfig:"BILI_JCT"`
	Buvid3     string `envconfig:"BILI_BUVID3"`
	DedeUserID string `envconfig:"BILI_DEDEUSERID"`

	OutputDir   string `envconfig:"BILI_OUTPUT_DIR" default:"."`
	Concurrent  int    `envconfig:"BILI_CONCURRENT" default:"3"`
	PageWorkers int    `envconfig:"BILI_PAGE_WORKERS" default:"1"`
	Quality     string `envconfig:"BILI_QUALITY"`
	AuthLevel   string `envconfig:"BILI_AUTH_LEVEL"`
	LogLevel    string `envconfig:"BILI_LOG_LEVEL" default:"info"`
}

// Load reads a .env file when one exists in the working directory, then
// fills Config from the environment.
func Load() (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

// Credential assembles the cookie credential from the loaded settings.
func (c *Config) Credential() bili.Credential {
	return bili.Credential{
		SESSDATA:   c.SESSDATA,
		BiliJCT:    c.BiliJCT,
		Buvid3:     c.Buvid3,
		DedeUserID: c.DedeUserID,
	}
}

// credentialFile mirrors the JSON layout browser cookie exporters
// produce for bilibili.
type credentialFile struct {
	SESSDATA   string `json:"SESSDATA"`
	BiliJCT    string `json:"bili_jct"`
	Buvid3     string `json:"buvid3"`
	DedeUserID string `json:"DedeUserID"`
}

// LoadCredentialFile reads a JSON credential file. Fields present in
// the file replace whatever the environment supplied.
func LoadCredentialFile(path string, base bili.Credential) (bili.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bili.Credential{}, fmt.Errorf("read credential file: %w", err)
	}
	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil {
		return bili.Credential{}, fmt.Errorf("parse credential file %s: %w", path, err)
	}
	cred := base
	if f.SESSDATA != "" {
		cred.SESSDATA = f.SESSDATA
	}
	if f.BiliJCT != "" {
		cred.BiliJCT = f.BiliJCT
	}
	if f.Buvid3 != "" {
		cred.Buvid3 = f.Buvid3
	}
	if f.DedeUserID != "" {
		cred.DedeUserID = f.DedeUserID
	}
	return cred, nil
}
