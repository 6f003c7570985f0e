// Copyright 2017 Vector Creations Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Version is the current version of the config format.
// This will change whenever we make breaking changes to the config format.
const Version = 1

// EventView contains all the config used by an eventview process.
// Relative paths are resolved relative to the current working directory
type EventView struct {
	// The version of the configuration file.
	// If the version in a file doesn't match the current eventview config
	// version then we can give a clear error message telling the user
	// to update their config file to the current version.
	Version int `yaml:"version"`

	Global Global     `yaml:"global"`
	API    APIOptions `yaml:"event_view"`

	// The config for logging informations. Each hook will be added to logrus.
	Logging []LogrusHook `yaml:"logging"`
}

// A Path on the filesystem.
type Path string

// A DataSource for opening a postgresql database using lib/pq, or an
// SQLite database using a file: URI.
type DataSource string

func (d DataSource) IsSQLite() bool {
	return strings.HasPrefix(string(d), "file:")
}

func (d DataSource) IsPostgres() bool {
	// commented line may not always be true?
	// return strings.HasPrefix(string(d), "postgres:")
	return !d.IsSQLite()
}

// An HTTPAddress to listen on, e.g. "http://localhost:8080".
type HTTPAddress string

// ListenAddress returns the host:port part of the address.
func (a HTTPAddress) ListenAddress() (string, error) {
	u, err := url.Parse(string(a))
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// LogrusHook represents a single logrus hook. At this point, only parsing and
// verification of the proper values for type and level are done.
// Validity/integrity checks on the parameters are done when configuring logrus.
type LogrusHook struct {
	// The type of hook, currently only "file", "syslog" and "std" are supported.
	Type string `yaml:"type"`

	// The level of the logs to produce. Will output only this level and above.
	Level string `yaml:"level"`

	// The parameters for this hook.
	Params map[string]interface{} `yaml:"params"`
}

// ConfigErrors stores problems encountered when parsing a config file.
// It implements the error interface.
type ConfigErrors []string

// Load a yaml config file
func Load(configPath string) (*EventView, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	basePath, err := filepath.Abs(".")
	if err != nil {
		return nil, err
	}
	// Pass the current working directory so that it can be mocked in the tests
	return loadConfig(basePath, configData)
}

func loadConfig(basePath string, configData []byte) (*EventView, error) {
	var c EventView
	c.Defaults(false)

	var err error
	if err = yaml.Unmarshal(configData, &c); err != nil {
		return nil, err
	}

	if err = c.check(); err != nil {
		return nil, err
	}

	for i, hook := range c.Logging {
		if path, ok := hook.Params["path"].(string); ok {
			c.Logging[i].Params["path"] = absPath(basePath, Path(path))
		}
	}

	return &c, nil
}

// Defaults sets default config values if they are not explicitly set.
// If generate is true, values suitable for a freshly generated config are used.
func (c *EventView) Defaults(generate bool) {
	c.Version = Version
	c.Logging = []LogrusHook{
		{
			Type:  "std",
			Level: "info",
		},
	}
	c.Global.Defaults(generate)
	c.API.Defaults(generate)
}

// Verify checks the config for problems, collecting them in configErrs.
func (c *EventView) Verify(configErrs *ConfigErrors) {
	c.Global.Verify(configErrs)
	c.API.Verify(configErrs, &c.Global)
	for i, hook := range c.Logging {
		checkNotEmpty(configErrs, fmt.Sprintf("logging[%d].type", i), hook.Type)
		checkNotEmpty(configErrs, fmt.Sprintf("logging[%d].level", i), hook.Level)
	}
}

// check returns an error type containing all errors found within the config
// file.
func (c *EventView) check() error {
	var configErrs ConfigErrors

	if c.Version != Version {
		configErrs.Add(fmt.Sprintf(
			"unknown config version %d, expected %d", c.Version, Version,
		))
		return configErrs
	}

	c.Verify(&configErrs)

	// Due to how Golang manages its interface types, this condition is not redundant.
	// In order to get the proper behaviour, it is necessary to return an explicit nil
	// and not a nil configErrors.
	// This is because the following equalities hold:
	// error(nil) == nil
	// error(configErrors(nil)) != nil
	if configErrs != nil {
		return configErrs
	}
	return nil
}

// Add appends an error to the list of errors in this configErrors.
// It is a wrapper to the builtin append and hides pointers from
// the client code.
// This method is safe to use with an uninitialized configErrors because
// if it is nil, it will be properly allocated.
func (errs *ConfigErrors) Add(str string) {
	*errs = append(*errs, str)
}

// Error returns a string detailing how many errors were contained within a
// configErrors type.
func (errs ConfigErrors) Error() string {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Sprintf(
		"%s (and %d other problems)", errs[0], len(errs)-1,
	)
}

// checkNotEmpty verifies the given value is not empty in the configuration.
// If it is, adds an error to the list.
func checkNotEmpty(configErrs *ConfigErrors, key, value string) {
	if value == "" {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

// checkPositive verifies the given value is positive (zero included)
// in the configuration. If it is not, adds an error to the list.
func checkPositive(configErrs *ConfigErrors, key string, value int64) {
	if value < 0 {
		configErrs.Add(fmt.Sprintf("invalid value for config key %q: %d", key, value))
	}
}

// checkURL verifies that the parameter is a valid URL
func checkURL(configErrs *ConfigErrors, key, value string) {
	if value == "" {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		configErrs.Add(fmt.Sprintf("config key %q contains invalid URL (%s)", key, err.Error()))
		return
	}
	switch u.Scheme {
	case "http":
	case "https":
	default:
		configErrs.Add(fmt.Sprintf("config key %q URL should be http:// or https://", key))
		return
	}
}

func absPath(dir string, path Path) string {
	if filepath.IsAbs(string(path)) {
		// filepath.Join cleans the path so we should clean the absolute paths as well for consistency.
		return filepath.Clean(string(path))
	}
	return filepath.Join(dir, string(path))
}
