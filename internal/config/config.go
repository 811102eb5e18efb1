package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/viewport"
	"github.com/menta2k/image-annotator/pkg/vision"
)

// Inference backends
const (
	BackendRemote   = "remote"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendLocal    = "local"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Inference InferenceConfig `json:"inference"`
	Viewport  ViewportConfig  `json:"viewport"`
	Analyzer  AnalyzerConfig  `json:"analyzer"`
	Vision    VisionConfig    `json:"vision"`
	Cache     CacheConfig     `json:"cache"`
	Output    OutputConfig    `json:"output"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr           string `json:"addr"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

// InferenceConfig selects and tunes the outline backend
type InferenceConfig struct {
	Backend        string  `json:"backend"`
	URL            string  `json:"url"`
	Model          string  `json:"model"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	SendFormat     string  `json:"send_format"`
	SendMaxDim     int     `json:"send_max_dim"`
	SendQuality    int     `json:"send_quality"`
	MinConfidence  float64 `json:"min_confidence"`
}

// ViewportConfig holds the canvas fitting limits
type ViewportConfig struct {
	MobileBreakpoint float64 `json:"mobile_breakpoint"`
	MaxCanvasArea    float64 `json:"max_canvas_area"`
	FitToWidth       bool    `json:"fit_to_width"`
}

// AnalyzerConfig holds the upload validation rules
type AnalyzerConfig struct {
	SupportedFormats []string `json:"supported_formats"`
	MinImageSize     int      `json:"min_image_size"`
}

// VisionConfig tunes the offline saliency backend
type VisionConfig struct {
	EdgeThreshold   float64 `json:"edge_threshold"`
	ContrastWeight  float64 `json:"contrast_weight"`
	ColorWeight     float64 `json:"color_weight"`
	MinSubjectRatio float64 `json:"min_subject_ratio"`
	MaxRegions      int     `json:"max_regions"`
}

// CacheConfig holds the outline cache settings. An empty path disables it.
type CacheConfig struct {
	Path        string `json:"path"`
	MaxAgeHours int    `json:"max_age_hours"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir string `json:"output_dir"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
}

// Default returns a configuration with default values
func Default() *Config {
	dc := detection.DefaultConfig()
	vc := vision.DefaultConfig()
	ac := analyzer.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: ac.MaxUploadBytes,
		},
		Inference: InferenceConfig{
			Backend:        BackendRemote,
			URL:            "http://localhost:8000",
			Model:          "",
			TimeoutSeconds: 120,
			SendFormat:     dc.SendFormat,
			SendMaxDim:     dc.SendMaxDim,
			SendQuality:    dc.SendQuality,
			MinConfidence:  dc.MinConfidence,
		},
		Viewport: ViewportConfig{
			MobileBreakpoint: viewport.DefaultMobileBreakpoint,
			MaxCanvasArea:    viewport.DefaultMaxCanvasArea,
			FitToWidth:       false,
		},
		Analyzer: AnalyzerConfig{
			SupportedFormats: ac.SupportedFormats,
			MinImageSize:     ac.MinImageSize,
		},
		Vision: VisionConfig{
			EdgeThreshold:   vc.EdgeThreshold,
			ContrastWeight:  vc.ContrastWeight,
			ColorWeight:     vc.ColorWeight,
			MinSubjectRatio: vc.MinSubjectRatio,
			MaxRegions:      vc.MaxRegions,
		},
		Cache: CacheConfig{
			Path:        "",
			MaxAgeHours: 24 * 7,
		},
		Output: OutputConfig{
			OutputDir: "./output",
			Prefix:    "",
			Suffix:    "_annotations",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes cannot be negative")
	}

	switch c.Inference.Backend {
	case BackendRemote, BackendOllama, BackendLlamaCpp:
		if c.Inference.URL == "" {
			return fmt.Errorf("inference.url is required for backend %q", c.Inference.Backend)
		}
	case BackendLocal:
	default:
		return fmt.Errorf("inference.backend must be one of remote, ollama, llamacpp, local")
	}

	if (c.Inference.Backend == BackendOllama || c.Inference.Backend == BackendLlamaCpp) && c.Inference.Model == "" {
		return fmt.Errorf("inference.model is required for backend %q", c.Inference.Backend)
	}

	if c.Inference.SendQuality < 1 || c.Inference.SendQuality > 100 {
		return fmt.Errorf("inference.send_quality must be between 1 and 100")
	}

	if c.Inference.MinConfidence < 0 || c.Inference.MinConfidence > 1 {
		return fmt.Errorf("inference.min_confidence must be between 0 and 1")
	}

	if c.Viewport.MobileBreakpoint <= 0 || c.Viewport.MaxCanvasArea <= 0 {
		return fmt.Errorf("viewport limits must be positive")
	}

	if c.Analyzer.MinImageSize < 1 {
		return fmt.Errorf("analyzer.min_image_size must be positive")
	}

	if len(c.Analyzer.SupportedFormats) == 0 {
		return fmt.Errorf("analyzer.supported_formats cannot be empty")
	}

	if c.Vision.EdgeThreshold < 0 || c.Vision.EdgeThreshold > 1 {
		return fmt.Errorf("vision.edge_threshold must be between 0 and 1")
	}

	if c.Vision.MinSubjectRatio < 0 || c.Vision.MinSubjectRatio > 1 {
		return fmt.Errorf("vision.min_subject_ratio must be between 0 and 1")
	}

	if c.Cache.MaxAgeHours < 0 {
		return fmt.Errorf("cache.max_age_hours cannot be negative")
	}

	return nil
}

// Timeout returns the inference timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

// CacheMaxAge returns how long cached outlines stay valid, zero meaning forever
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeHours) * time.Hour
}

// AnalyzerConfig returns the upload validator settings
func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		SupportedFormats: c.Analyzer.SupportedFormats,
		MinImageSize:     c.Analyzer.MinImageSize,
		MaxUploadBytes:   c.Server.MaxUploadBytes,
	}
}

// ViewportConfig returns the scaler limits
func (c *Config) ViewportConfig() viewport.Config {
	return viewport.Config{
		MobileBreakpoint: c.Viewport.MobileBreakpoint,
		MaxCanvasArea:    c.Viewport.MaxCanvasArea,
	}
}

// DetectionConfig returns the vision model settings
func (c *Config) DetectionConfig() detection.Config {
	dc := detection.DefaultConfig()
	dc.Model = c.Inference.Model
	dc.SendFormat = c.Inference.SendFormat
	dc.SendMaxDim = c.Inference.SendMaxDim
	dc.SendQuality = c.Inference.SendQuality
	dc.MinConfidence = c.Inference.MinConfidence
	return dc
}

// VisionConfig returns the saliency backend settings
func (c *Config) VisionConfig() vision.DetectionConfig {
	vc := vision.DefaultConfig()
	vc.EdgeThreshold = c.Vision.EdgeThreshold
	vc.ContrastWeight = c.Vision.ContrastWeight
	vc.ColorWeight = c.Vision.ColorWeight
	vc.MinSubjectRatio = c.Vision.MinSubjectRatio
	vc.MaxRegions = c.Vision.MaxRegions
	return vc
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-annotator", "config.json")
}
