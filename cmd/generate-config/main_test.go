package main

import (
	"flag"
	"testing"

	"github.com/matrix-org/eventview/setup/config"
)

func TestBuildConfig(t *testing.T) {
	tsts := []struct {
		Name string
		Args []string
		DB   config.DataSource
	}{
		{"default", nil, "file:eventview.db"},
		{"ci", []string{"-ci"}, "file:eventview.db"},
		{"postgres", []string{"-db", "postgres://eventview@localhost/eventview?sslmode=disable"}, "postgres://eventview@localhost/eventview?sslmode=disable"},
	}
	for _, tst := range tsts {
		t.Run(tst.Name, func(t *testing.T) {
			cfg, err := buildConfig(flag.NewFlagSet("main_test", flag.ContinueOnError), tst.Args)
			if err != nil {
				t.Fatalf("buildConfig failed: %v", err)
			}
			if cfg.API.Database.ConnectionString != tst.DB {
				t.Errorf("connection string: got %q, want %q", cfg.API.Database.ConnectionString, tst.DB)
			}

			var ss config.ConfigErrors
			cfg.Verify(&ss)
			for _, s := range ss {
				t.Errorf("Verify: %s", s)
			}
		})
	}
}
