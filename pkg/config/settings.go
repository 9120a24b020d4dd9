// Package config loads and saves the downloader settings file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/fetch"
)

const appName = "mangadl"

// Duration is a time.Duration that reads and writes as a string ("1.5s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// plain numbers are seconds
		var secs float64
		if err := json.Unmarshal(b, &secs); err != nil {
			return fmt.Errorf("invalid duration %s", string(b))
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadPath      string   `json:"download_path"`
	MaxChapterThreads int      `json:"max_chapter_threads"`
	MaxImageThreads   int      `json:"max_image_threads"` // 0 = derive from CPU count
	RetryAttempts     int      `json:"retry_attempts"`
	RetryBaseDelay    Duration `json:"retry_base_delay"`
	RequestTimeout    Duration `json:"request_timeout"`
	RequestsPerSecond float64  `json:"requests_per_second"` // 0 = unlimited
	UserAgent         string   `json:"user_agent"`

	// Packaging
	DefaultFormat               string `json:"default_format"`
	DeleteImagesAfterConversion bool   `json:"delete_images_after_conversion"`
	PDFMaxPageWidth             int    `json:"pdf_max_page_width"`

	// Library
	DatabasePath string `json:"database_path"`
	MangaDexLang string `json:"mangadex_language"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		DownloadPath:      "./downloads",
		MaxChapterThreads: 5,
		MaxImageThreads:   10,
		RetryAttempts:     3,
		RetryBaseDelay:    Duration(time.Second),
		RequestTimeout:    Duration(10 * time.Second),
		UserAgent:         fetch.DefaultUserAgent,

		DefaultFormat:               string(data.FormatCBZ),
		DeleteImagesAfterConversion: false,

		DatabasePath: filepath.Join(configDir(), "library.db"),
		MangaDexLang: "en",
	}
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

// DefaultPath is where the settings file lives unless --config says otherwise.
func DefaultPath() string {
	return filepath.Join(configDir(), "settings.json")
}

// Load reads settings from a JSON file. A missing file yields defaults.
func Load(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(raw, settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// Validate rejects settings the downloader cannot run with.
func (s *Settings) Validate() error {
	var errs []error
	if s.DownloadPath == "" {
		errs = append(errs, errors.New("download_path must not be empty"))
	}
	if s.MaxChapterThreads < 1 {
		errs = append(errs, fmt.Errorf("max_chapter_threads must be at least 1, got %d", s.MaxChapterThreads))
	}
	if s.MaxImageThreads < 0 {
		errs = append(errs, fmt.Errorf("max_image_threads must not be negative, got %d", s.MaxImageThreads))
	}
	if s.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry_attempts must be at least 1, got %d", s.RetryAttempts))
	}
	if s.RetryBaseDelay < 0 || s.RequestTimeout <= 0 {
		errs = append(errs, errors.New("retry_base_delay must be >= 0 and request_timeout > 0"))
	}
	if s.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must not be negative"))
	}
	if _, err := data.ParseFormat(s.DefaultFormat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Format returns the parsed default archive format.
func (s *Settings) Format() data.Format {
	f, err := data.ParseFormat(s.DefaultFormat)
	if err != nil {
		return data.FormatNone
	}
	return f
}

// ImageThreads resolves MaxImageThreads, deriving a value from the number
// of logical CPUs when it is 0.
func (s *Settings) ImageThreads() int {
	if s.MaxImageThreads > 0 {
		return s.MaxImageThreads
	}
	return autoImageThreads(cpu.Counts)
}

func autoImageThreads(counts func(logical bool) (int, error)) int {
	n, err := counts(true)
	if err != nil || n < 1 {
		return 10
	}
	// transfers are I/O bound, so oversubscribe the CPUs
	threads := n * 2
	if threads > 32 {
		threads = 32
	}
	return threads
}
