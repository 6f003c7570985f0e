package config

type APIOptions struct {
	Matrix *Global `yaml:"-"`

	// The address the HTTP API listens on.
	Listen HTTPAddress `yaml:"listen"`

	// Database options for the event store. Falls back to
	// global.database when no connection string is given.
	Database DatabaseOptions `yaml:"database"`

	// Base path of all routes served by the API.
	PathPrefix string `yaml:"path_prefix"`
}

func (c *APIOptions) Defaults(generate bool) {
	c.Listen = "http://localhost:8090"
	c.PathPrefix = "/_eventview"
	c.Database.Defaults(10)
	if generate {
		c.Database.ConnectionString = "file:eventview.db"
	}
}

func (c *APIOptions) Verify(configErrs *ConfigErrors, global *Global) {
	c.Matrix = global
	if global.DatabaseOptions.ConnectionString == "" {
		checkNotEmpty(configErrs, "event_view.database.connection_string", string(c.Database.ConnectionString))
	}
	checkURL(configErrs, "event_view.listen", string(c.Listen))
	checkNotEmpty(configErrs, "event_view.path_prefix", c.PathPrefix)
}
