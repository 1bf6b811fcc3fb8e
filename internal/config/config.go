// Package config defines the necessary types to configure the course client.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	Remote   Remote   `yaml:"remote"`
	Storage  Storage  `yaml:"storage"`
	Sessions Sessions `yaml:"sessions"`
	Watch    Watch    `yaml:"watch"`
}

// Remote configures the client of the course service.
type Remote struct {
	BaseURL     string        `yaml:"baseURL" default:"http://localhost:8080/api"`
	Timeout     time.Duration `yaml:"timeout" default:"30s"`
	VideoSource string        `yaml:"videoSource" default:"upload"`
}

type StorageBackend string

const (
	StorageFile     StorageBackend = "file"
	StorageMemory   StorageBackend = "memory"
	StorageSQLite   StorageBackend = "sqlite"
	StorageValKey   StorageBackend = "valkey"
	StoragePostgres StorageBackend = "postgres"
)

// Storage selects where the user identity and token survive restarts.
type Storage struct {
	Backend  StorageBackend `yaml:"backend" default:"file"`
	// Profile namespaces the stored keys so several identities can share one backend.
	Profile  string         `yaml:"profile" default:"default"`
	File     File           `yaml:"file"`
	SQLite   SQLite         `yaml:"sqlite"`
	ValKey   ValKey         `yaml:"valkey"`
	Database Database       `yaml:"database"`
}

type File struct {
	Dir string `yaml:"dir" default:"$HOME/.course-client/state"`
}

type SQLite struct {
	Path string `yaml:"path" default:"$HOME/.course-client/state.db"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"course-client"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port" default:"5432"`
	SSLMode  string              `yaml:"sslMode" default:"disable"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

// Sessions configures the session state store.
type Sessions struct {
	OperationRetention time.Duration `yaml:"operationRetention" default:"10m"`
}

// Watch configures the periodic refresh of the session list.
type Watch struct {
	Interval time.Duration `yaml:"interval" default:"30s"`
}
