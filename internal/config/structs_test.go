package config

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

const testHost = "0.0.0.0"

// TestConfigJSONMarshaling tests marshaling Config to JSON.
func TestConfigJSONMarshaling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = debugLevel
	cfg.Verbose = true
	cfg.Server.Port = 9090

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}

	if len(data) == 0 {
		t.Error("Marshaled JSON is empty")
	}

	// Verify it contains expected fields
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}

	if result["log_level"] != debugLevel {
		t.Errorf("Expected log_level '%s', got %v", debugLevel, result["log_level"])
	}
	if result["verbose"] != true {
		t.Errorf("Expected verbose true, got %v", result["verbose"])
	}
}

// TestConfigJSONUnmarshaling tests unmarshaling Config from JSON.
func TestConfigJSONUnmarshaling(t *testing.T) {
	jsonData := `{
		"log_level": "debug",
		"verbose": true,
		"decode": {
			"variants": ["gray", "otsu"],
			"formats": ["qr"],
			"try_harder": true
		},
		"server": {
			"host": "0.0.0.0",
			"port": 9090
		},
		"zxing": {
			"enabled": true,
			"timeout_sec": 90
		}
	}`

	var cfg Config
	err := json.Unmarshal([]byte(jsonData), &cfg)
	if err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}

	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected log_level '%s', got %s", debugLevel, cfg.LogLevel)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose true")
	}
	if len(cfg.Decode.Variants) != 2 || cfg.Decode.Variants[1] != "otsu" {
		t.Errorf("Expected variants [gray otsu], got %v", cfg.Decode.Variants)
	}
	if len(cfg.Decode.Formats) != 1 || cfg.Decode.Formats[0] != "qr" {
		t.Errorf("Expected formats [qr], got %v", cfg.Decode.Formats)
	}
	if !cfg.Decode.TryHarder {
		t.Error("Expected try_harder true")
	}
	if cfg.Server.Host != testHost {
		t.Errorf("Expected host '%s', got %s", testHost, cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Zxing.Enabled {
		t.Error("Expected zxing enabled")
	}
	if cfg.Zxing.TimeoutSec != 90 {
		t.Errorf("Expected zxing timeout 90, got %d", cfg.Zxing.TimeoutSec)
	}
}

// TestConfigYAMLUnmarshaling tests unmarshaling Config from YAML.
func TestConfigYAMLUnmarshaling(t *testing.T) {
	yamlData := `
log_level: error
verbose: true
decode:
  variants:
    - original
    - clahe
  multi: true
output:
  format: csv
  annotate: true
  annotate_dir: /out/overlays
  line_color: "#FF00FF"
server:
  host: 127.0.0.1
  port: 7070
pdf:
  pages: 1-3
  workers: 2
`

	var cfg Config
	err := yaml.Unmarshal([]byte(yamlData), &cfg)
	if err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("Expected log_level 'error', got %s", cfg.LogLevel)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose true")
	}
	if len(cfg.Decode.Variants) != 2 || cfg.Decode.Variants[1] != "clahe" {
		t.Errorf("Expected variants [original clahe], got %v", cfg.Decode.Variants)
	}
	if !cfg.Decode.Multi {
		t.Error("Expected multi true")
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("Expected output format 'csv', got %s", cfg.Output.Format)
	}
	if !cfg.Output.Annotate {
		t.Error("Expected annotate true")
	}
	if cfg.Output.AnnotateDir != "/out/overlays" {
		t.Errorf("Expected annotate_dir '/out/overlays', got %s", cfg.Output.AnnotateDir)
	}
	if cfg.Output.LineColor != "#FF00FF" {
		t.Errorf("Expected line_color '#FF00FF', got %s", cfg.Output.LineColor)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host '127.0.0.1', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070, got %d", cfg.Server.Port)
	}
	if cfg.PDF.Pages != "1-3" {
		t.Errorf("Expected pdf pages '1-3', got %s", cfg.PDF.Pages)
	}
	if cfg.PDF.Workers != 2 {
		t.Errorf("Expected pdf workers 2, got %d", cfg.PDF.Workers)
	}
}

// TestConfigRoundTripYAML tests YAML round-trip serialization.
func TestConfigRoundTripYAML(t *testing.T) {
	original := DefaultConfig()
	original.LogLevel = warnLevel
	original.Server.Host = "192.168.1.1"
	original.Server.Port = 8888
	original.Decode.Formats = []string{"qr", "code128"}
	original.Zxing.Enabled = true
	original.Zxing.Image = "eclipse-temurin:21"
	original.PDF.Password = "secret"

	// Marshal to YAML
	data, err := yaml.Marshal(original)
	if err != nil {
		t.Fatalf("yaml.Marshal() error: %v", err)
	}

	// Unmarshal back
	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}

	// Compare key fields
	if decoded.LogLevel != original.LogLevel {
		t.Errorf("LogLevel mismatch: expected %s, got %s", original.LogLevel, decoded.LogLevel)
	}
	if decoded.Server.Host != original.Server.Host {
		t.Errorf("Host mismatch: expected %s, got %s", original.Server.Host, decoded.Server.Host)
	}
	if decoded.Server.Port != original.Server.Port {
		t.Errorf("Port mismatch: expected %d, got %d", original.Server.Port, decoded.Server.Port)
	}
	if len(decoded.Decode.Formats) != 2 || decoded.Decode.Formats[1] != "code128" {
		t.Errorf("Formats mismatch: expected %v, got %v", original.Decode.Formats, decoded.Decode.Formats)
	}
	if decoded.Zxing.Enabled != original.Zxing.Enabled {
		t.Errorf("Zxing.Enabled mismatch: expected %v, got %v", original.Zxing.Enabled, decoded.Zxing.Enabled)
	}
	if decoded.Zxing.Image != original.Zxing.Image {
		t.Errorf("Zxing.Image mismatch: expected %s, got %s", original.Zxing.Image, decoded.Zxing.Image)
	}
	if decoded.PDF.Password != original.PDF.Password {
		t.Errorf("PDF.Password mismatch: expected %s, got %s", original.PDF.Password, decoded.PDF.Password)
	}
}

// TestDecodeConfigStructure tests DecodeConfig structure.
func TestDecodeConfigStructure(t *testing.T) {
	cfg := DecodeConfig{
		Variants:  []string{"original", "otsu", "upscale"},
		Formats:   []string{"qr", "1d"},
		TryHarder: true,
		Multi:     true,
	}

	if len(cfg.Variants) != 3 {
		t.Errorf("Expected 3 variants, got %d", len(cfg.Variants))
	}
	if len(cfg.Formats) != 2 {
		t.Errorf("Expected 2 formats, got %d", len(cfg.Formats))
	}
	if !cfg.TryHarder {
		t.Error("Expected TryHarder true")
	}
	if !cfg.Multi {
		t.Error("Expected Multi true")
	}
}

// TestServerConfigStructure tests ServerConfig structure.
func TestServerConfigStructure(t *testing.T) {
	cfg := ServerConfig{
		Host:            "0.0.0.0",
		Port:            9090,
		CORSOrigin:      "*",
		MaxUploadMB:     100,
		TimeoutSec:      60,
		ShutdownTimeout: 30,
		RateLimitPerMin: 120,
		OverlayEnabled:  true,
	}

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Expected Host '0.0.0.0', got %s", cfg.Host)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected Port 9090, got %d", cfg.Port)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Errorf("Expected RateLimitPerMin 120, got %d", cfg.RateLimitPerMin)
	}
	if !cfg.OverlayEnabled {
		t.Error("Expected OverlayEnabled true")
	}
}

// TestZeroValuesVsDefaults tests zero values vs defaults.
func TestZeroValuesVsDefaults(t *testing.T) {
	var zero Config
	defaults := DefaultConfig()

	// Zero values should be different from defaults
	if zero.LogLevel == defaults.LogLevel {
		t.Error("Zero LogLevel should differ from default")
	}
	if zero.Server.Port == defaults.Server.Port {
		t.Error("Zero Port should differ from default")
	}
	if zero.Batch.Workers == defaults.Batch.Workers {
		t.Error("Zero Workers should differ from default")
	}
	if zero.Zxing.TimeoutSec == defaults.Zxing.TimeoutSec {
		t.Error("Zero zxing timeout should differ from default")
	}
}

// TestStructTags tests that all struct fields have proper tags.
func TestStructTags(t *testing.T) {
	// This is a simple sanity check that the structs can be marshaled
	cfg := DefaultConfig()

	// Test JSON tags
	jsonData, err := json.Marshal(cfg)
	if err != nil {
		t.Errorf("Failed to marshal config to JSON: %v", err)
	}
	if len(jsonData) == 0 {
		t.Error("JSON marshaling produced empty output")
	}

	// Test YAML tags
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		t.Errorf("Failed to marshal config to YAML: %v", err)
	}
	if len(yamlData) == 0 {
		t.Error("YAML marshaling produced empty output")
	}
}
