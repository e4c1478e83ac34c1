package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Jira      JiraConfig      `yaml:"jira" mapstructure:"jira"`
	ADO       ADOConfig       `yaml:"ado" mapstructure:"ado"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Recon     ReconConfig     `yaml:"recon" mapstructure:"recon"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// JiraConfig holds Jira Cloud credentials and the custom field ids carrying
// the ADO traceability data. Field ids vary per Jira instance.
type JiraConfig struct {
	URL           string `yaml:"url" mapstructure:"url"`
	Email         string `yaml:"email" mapstructure:"email"`
	Token         string `yaml:"token" mapstructure:"token"`
	JQL           string `yaml:"jql" mapstructure:"jql"`
	SeverityField string `yaml:"severity_field" mapstructure:"severity_field"`
	ADOIDField    string `yaml:"ado_id_field" mapstructure:"ado_id_field"`
	ADOStateField string `yaml:"ado_state_field" mapstructure:"ado_state_field"`
}

// ADOConfig holds Azure DevOps Server connection settings.
type ADOConfig struct {
	Server     string `yaml:"server" mapstructure:"server"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	Project    string `yaml:"project" mapstructure:"project"`
	PAT        string `yaml:"pat" mapstructure:"pat"`
}

// SourceConfig selects where Jira issues come from: the live API or an
// exported search payload on disk.
type SourceConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"` // api or file
	Input string `yaml:"input" mapstructure:"input"`
}

// MatchConfig tunes title similarity matching for unlinked issues.
type MatchConfig struct {
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
	Limit     int `yaml:"limit" mapstructure:"limit"`
}

// ReconConfig tunes the reconciliation run.
type ReconConfig struct {
	ScanDays     int `yaml:"scan_days" mapstructure:"scan_days"`
	ScanLimit    int `yaml:"scan_limit" mapstructure:"scan_limit"`
	Workers      int `yaml:"workers" mapstructure:"workers"`
	TopAssignees int `yaml:"top_assignees" mapstructure:"top_assignees"`
}

// NormalizeConfig overrides the status vocabularies.
type NormalizeConfig struct {
	ClosedStatuses []string `yaml:"closed_statuses" mapstructure:"closed_statuses"`
	OpenStatuses   []string `yaml:"open_statuses" mapstructure:"open_statuses"`
}

// ReportConfig configures artifact output.
type ReportConfig struct {
	Output string `yaml:"output" mapstructure:"output"`
}

// HistoryConfig configures the run ledger.
type HistoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the webhook server. An empty secret disables
// webhook authentication.
type ServerConfig struct {
	Port          int    `yaml:"port" mapstructure:"port"`
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("jira.jql", "project IS NOT EMPTY ORDER BY created DESC")
	v.SetDefault("jira.severity_field", "customfield_10042")
	v.SetDefault("jira.ado_id_field", "customfield_10109")
	v.SetDefault("jira.ado_state_field", "customfield_10110")
	v.SetDefault("ado.collection", "DefaultCollection")
	v.SetDefault("source.mode", "api")
	v.SetDefault("match.threshold", 70)
	v.SetDefault("match.limit", 5)
	v.SetDefault("recon.scan_days", 90)
	v.SetDefault("recon.scan_limit", 200)
	v.SetDefault("recon.workers", 5)
	v.SetDefault("recon.top_assignees", 10)
	v.SetDefault("report.output", "traceability_report.xlsx")
	v.SetDefault("history.path", "traceability.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given command mode are
// present. Mode is one of "run", "check", "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireJira := func() {
		if c.Jira.URL == "" {
			missing = append(missing, "jira.url is required")
		}
		if c.Jira.Email == "" {
			missing = append(missing, "jira.email is required")
		}
		if c.Jira.Token == "" {
			missing = append(missing, "jira.token is required")
		}
	}
	requireADO := func() {
		if c.ADO.Server == "" {
			missing = append(missing, "ado.server is required")
		}
		if c.ADO.Project == "" {
			missing = append(missing, "ado.project is required")
		}
		if c.ADO.PAT == "" {
			missing = append(missing, "ado.pat is required")
		}
	}

	switch mode {
	case "run":
		switch c.Source.Mode {
		case "file":
			if c.Source.Input == "" {
				missing = append(missing, "source.input is required in file mode")
			}
		case "api", "":
			requireJira()
		default:
			return eris.Errorf("config: unknown source.mode %q", c.Source.Mode)
		}
		requireADO()
	case "check":
		requireJira()
		requireADO()
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Match.Threshold < 0 || c.Match.Threshold > 100 {
		missing = append(missing, "match.threshold must be between 0 and 100")
	}
	if c.Match.Limit < 1 || c.Match.Limit > 50 {
		missing = append(missing, "match.limit must be between 1 and 50")
	}
	if c.Recon.Workers < 1 || c.Recon.Workers > 50 {
		missing = append(missing, "recon.workers must be between 1 and 50")
	}
	if c.Recon.ScanDays < 1 {
		missing = append(missing, "recon.scan_days must be > 0")
	}
	if c.Recon.ScanLimit < 1 {
		missing = append(missing, "recon.scan_limit must be > 0")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
