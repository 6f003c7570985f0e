package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/matrix-org/eventview/setup/config"
)

func main() {
	cfg, err := buildConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	j, err := yaml.Marshal(cfg)
	if err != nil {
		panic(err)
	}

	fmt.Println(string(j))
}

func buildConfig(fs *flag.FlagSet, args []string) (*config.EventView, error) {
	defaultsForCI := fs.Bool("ci", false, "sane defaults for CI testing")
	dbURI := fs.String("db", "", "The DB URI to use for the event store (PostgreSQL or SQLite)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config.EventView{}
	cfg.Defaults(true)
	cfg.Logging = []config.LogrusHook{
		{
			Type:  "file",
			Level: "info",
			Params: map[string]interface{}{
				"path": "/var/log/eventview",
			},
		},
	}
	if *dbURI != "" {
		cfg.API.Database.ConnectionString = config.DataSource(*dbURI)
	}

	if *defaultsForCI {
		cfg.Logging[0].Type = "std"
		cfg.Logging[0].Level = "trace"
		cfg.Global.Metrics.Enabled = true
	}
	return cfg, nil
}
