package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the local bot configuration (one YAML or JSON file).
//
// Everything the operator edits day-to-day (schedules, chat targets) lives in
// the REMOTE documents on Drive; this file only holds credentials, paths and
// tuning knobs.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1h").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Drive     DriveConfig     `json:"drive"`
	Publisher PublisherConfig `json:"publisher"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token          string `json:"token"`
	PollTimeout    string `json:"poll_timeout,omitempty"`
	SendRatePerSec int    `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string           `json:"level"`
	Console bool             `json:"console"`
	File    FileLogConfig    `json:"file"`
	Alert   AlertLogConfig   `json:"alert"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// AlertLogConfig routes warn/error log lines to the Aviso chat. The chat id
// itself comes from the remote directives document, not from here.
type AlertLogConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type DriveConfig struct {
	CredentialsFile string `json:"credentials_file"`
	RootFolderID    string `json:"root_folder_id"`

	SettingsFolder string `json:"settings_folder,omitempty"` // default "Settings"
	ScheduleDoc    string `json:"schedule_doc,omitempty"`    // default "horarios"
	DirectivesDoc  string `json:"directives_doc,omitempty"`  // default "destinos"
	EmojisDoc      string `json:"emojis_doc,omitempty"`      // default "mis_emojis"

	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

type PublisherConfig struct {
	Timezone     string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Madrid"
	DataDir      string `json:"data_dir,omitempty"`
	DownloadsDir string `json:"downloads_dir,omitempty"`

	// TestLead is how long before the real trigger a test publication fires
	// when a Pub_Test target is configured. Default "1h".
	TestLead string `json:"test_lead,omitempty"`

	// AuditTimes are the HH:MM check-points at which the visual audit runs.
	AuditTimes []string `json:"audit_times,omitempty"`

	// ExpectedMediaCount is the per-day media count that marks a day folder
	// "complete" during the visual audit.
	ExpectedMediaCount int `json:"expected_media_count,omitempty"`

	BacklogFolder string `json:"backlog_folder,omitempty"` // default "Backlog"

	// MonthNames overrides the folder names for months 1..12. Defaults to
	// Spanish month words, matching the hand-maintained Drive layout.
	MonthNames []string `json:"month_names,omitempty"`

	CompleteColor  string `json:"complete_color,omitempty"`
	AttentionColor string `json:"attention_color,omitempty"`
}

// StorageConfig controls the optional run-history persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./publibot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// Drive folder colors (folderColorRgb palette values).
const (
	defaultCompleteColor  = "#16a765" // green
	defaultAttentionColor = "#fb4c2f" // red
)

var defaultMonthNames = []string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// ApplyDefaults fills in zero-valued optional fields. Called after parse so
// the rest of the code never re-checks defaults.
func (c *Config) ApplyDefaults() {
	if c.Telegram.SendRatePerSec <= 0 {
		c.Telegram.SendRatePerSec = 1
	}
	if strings.TrimSpace(c.Drive.SettingsFolder) == "" {
		c.Drive.SettingsFolder = "Settings"
	}
	if strings.TrimSpace(c.Drive.ScheduleDoc) == "" {
		c.Drive.ScheduleDoc = "horarios"
	}
	if strings.TrimSpace(c.Drive.DirectivesDoc) == "" {
		c.Drive.DirectivesDoc = "destinos"
	}
	if strings.TrimSpace(c.Drive.EmojisDoc) == "" {
		c.Drive.EmojisDoc = "mis_emojis"
	}
	if c.Drive.RetryMax <= 0 {
		c.Drive.RetryMax = 4
	}
	if strings.TrimSpace(c.Publisher.DataDir) == "" {
		c.Publisher.DataDir = "./data"
	}
	if strings.TrimSpace(c.Publisher.DownloadsDir) == "" {
		c.Publisher.DownloadsDir = "./downloads"
	}
	if strings.TrimSpace(c.Publisher.TestLead) == "" {
		c.Publisher.TestLead = "1h"
	}
	if len(c.Publisher.AuditTimes) == 0 {
		c.Publisher.AuditTimes = []string{"08:00", "14:00", "20:00"}
	}
	if c.Publisher.ExpectedMediaCount <= 0 {
		c.Publisher.ExpectedMediaCount = 2
	}
	if strings.TrimSpace(c.Publisher.BacklogFolder) == "" {
		c.Publisher.BacklogFolder = "Backlog"
	}
	if len(c.Publisher.MonthNames) == 0 {
		c.Publisher.MonthNames = append([]string(nil), defaultMonthNames...)
	}
	if strings.TrimSpace(c.Publisher.CompleteColor) == "" {
		c.Publisher.CompleteColor = defaultCompleteColor
	}
	if strings.TrimSpace(c.Publisher.AttentionColor) == "" {
		c.Publisher.AttentionColor = defaultAttentionColor
	}
}

// Validate rejects configs that cannot possibly run. Called by the manager
// before committing a hot reload, so a bad edit never replaces a good config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(c.Drive.RootFolderID) == "" {
		return fmt.Errorf("drive.root_folder_id is required")
	}
	if strings.TrimSpace(c.Drive.CredentialsFile) == "" {
		return fmt.Errorf("drive.credentials_file is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("publisher.test_lead", c.Publisher.TestLead); err != nil {
		return err
	}
	if tz := strings.TrimSpace(c.Publisher.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("publisher.timezone: invalid %q: %w", tz, err)
		}
	}
	for _, at := range c.Publisher.AuditTimes {
		if !validHHMM(at) {
			return fmt.Errorf("publisher.audit_times: invalid time %q (want HH:MM)", at)
		}
	}
	if n := len(c.Publisher.MonthNames); n != 0 && n != 12 {
		return fmt.Errorf("publisher.month_names: want 12 entries, got %d", n)
	}
	return nil
}

func validHHMM(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return h <= 23 && m <= 59
}

// ParseDurationField parses an optional Go duration string. Empty means zero.
func ParseDurationField(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", name, raw)
	}
	return d, nil
}

// DurationOrDefault parses raw and falls back to def when raw is empty.
func DurationOrDefault(name, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(name, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
