package config

/*
Описание конфигурационного файла
*/

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"

	"github.com/daniil11ru/volovo/cli/tracker/track"
)

type Settings struct {
	BaseURL  string `yaml:"base_url"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`

	CookiePath  string            `yaml:"cookie_path"`
	CookieStore map[string]string `yaml:"cookie_store"`

	OIDs []int32 `yaml:"oids"`

	ChunkHours     int `yaml:"chunk_hours"`
	HTTPTimeout    int `yaml:"http_timeout"`
	HTTPRetries    int `yaml:"http_retries"`
	HTTPRetrySleep int `yaml:"http_retry_sleep"`
	RequestSleep   int `yaml:"request_sleep"`
	BufferLimit    int `yaml:"buffer_limit"`

	SandBaseLat      float64 `yaml:"sand_base_lat"`
	SandBaseLon      float64 `yaml:"sand_base_lon"`
	SandBaseRadiusKm float64 `yaml:"sand_base_radius_km"`

	MaxJumpKm   float64 `yaml:"max_jump_km"`
	MaxSpeedKmh float64 `yaml:"max_speed_kmh"`

	SyncCronExpression string `yaml:"sync_cron_expression"`
	ApiPort            int32  `yaml:"api_port"`
	TemplatePath       string `yaml:"template_path"`
	MigrationsPath     string `yaml:"migrations_path"`

	LogLevel      string `yaml:"log_level"`
	LogFilePath   string `yaml:"log_file_path"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`

	Store   map[string]string            `yaml:"storage"`
	Archive map[string]map[string]string `yaml:"archive"`
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

func (s *Settings) GetHTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeout) * time.Second
}

func (s *Settings) GetHTTPRetrySleep() time.Duration {
	return time.Duration(s.HTTPRetrySleep) * time.Second
}

func (s *Settings) GetRequestSleep() time.Duration {
	return time.Duration(s.RequestSleep) * time.Second
}

func (s *Settings) GetGeofence() track.Geofence {
	return track.Geofence{
		Latitude:  s.SandBaseLat,
		Longitude: s.SandBaseLon,
		RadiusKm:  s.SandBaseRadiusKm,
	}
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, err
	}

	if c.ChunkHours < 1 {
		c.ChunkHours = 6
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60
	}
	if c.HTTPRetries <= 0 {
		c.HTTPRetries = 3
	}
	if c.HTTPRetrySleep <= 0 {
		c.HTTPRetrySleep = 2
	}
	if c.BufferLimit <= 0 {
		c.BufferLimit = 5000
	}

	// Пескобаза по умолчанию — площадка погрузки в Волово.
	if c.SandBaseLat == 0 && c.SandBaseLon == 0 {
		c.SandBaseLat = 52.036242
		c.SandBaseLon = 37.887744
	}
	if c.SandBaseRadiusKm <= 0 {
		c.SandBaseRadiusKm = 0.02
	}

	if c.MaxJumpKm <= 0 || c.MaxJumpKm > 50 {
		if c.MaxJumpKm != 0 {
			log.Errorf("Недопустимое значение max_jump_km (%v). Используется значение по умолчанию %v.", c.MaxJumpKm, track.DefaultMaxJumpKm)
		}
		c.MaxJumpKm = track.DefaultMaxJumpKm
	}
	if c.MaxSpeedKmh < 1 || c.MaxSpeedKmh > 400 {
		if c.MaxSpeedKmh != 0 {
			log.Errorf("Недопустимое значение max_speed_kmh (%v). Используется значение по умолчанию %v.", c.MaxSpeedKmh, track.DefaultMaxSpeedKmh)
		}
		c.MaxSpeedKmh = track.DefaultMaxSpeedKmh
	}

	if c.CookiePath == "" {
		c.CookiePath = "cookie.txt"
	}
	if c.SyncCronExpression == "" {
		c.SyncCronExpression = "*/30 * * * *"
	}
	if c.ApiPort == 0 {
		c.ApiPort = 8000
	}

	return c, err
}
