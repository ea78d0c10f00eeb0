package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"vigil-worker-go/internal/models"
)

// DeviceFile describes one edge device: its identity, the cameras wired to
// it, and the alert rules it evaluates. Loaded from YAML, then overlaid with
// environment variables so a deployment can override identity fields without
// editing the file.
type DeviceFile struct {
	DeviceID    string                `yaml:"device_id" env:"DEVICE_ID"`
	DeviceLabel string                `yaml:"device_label" env:"DEVICE_LABEL"`
	Location    string                `yaml:"location" env:"DEVICE_LOCATION"`
	Cameras     []models.CameraConfig `yaml:"cameras"`
	Rules       []models.Rule         `yaml:"rules"`
}

// LoadDevice reads and validates the device file at path.
func LoadDevice(path string) (*DeviceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device file %s: %w", path, err)
	}

	var device DeviceFile
	if err := yaml.Unmarshal(data, &device); err != nil {
		return nil, fmt.Errorf("parsing device file %s: %w", path, err)
	}

	if err := env.Parse(&device); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := device.validate(); err != nil {
		return nil, fmt.Errorf("invalid device file %s: %w", path, err)
	}

	return &device, nil
}

func (d *DeviceFile) validate() error {
	seen := make(map[string]bool, len(d.Cameras))
	for i, cam := range d.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera %d: missing id", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera %s: duplicate id", cam.ID)
		}
		seen[cam.ID] = true
		if cam.URL == "" {
			return fmt.Errorf("camera %s: missing url", cam.ID)
		}
	}
	for i, rule := range d.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: missing name", i)
		}
		if rule.Field == "" {
			return fmt.Errorf("rule %s: missing field", rule.Name)
		}
		switch rule.Op {
		case ">", ">=", "<", "<=", "==":
		default:
			return fmt.Errorf("rule %s: unsupported op %q", rule.Name, rule.Op)
		}
	}
	return nil
}

// Camera returns the configuration of a camera by id.
func (d *DeviceFile) Camera(id string) (models.CameraConfig, bool) {
	for _, cam := range d.Cameras {
		if cam.ID == id {
			return cam, true
		}
	}
	return models.CameraConfig{}, false
}
