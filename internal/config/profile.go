package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/gridopt/internal/placement"
)

// stationDoc uses pointers so absent keys can be told apart from zeros
type stationDoc struct {
	XCoord *float64 `yaml:"x_coord" validate:"required,finite"`
	YCoord *float64 `yaml:"y_coord" validate:"required,finite"`
	Weight *float64 `yaml:"weight" validate:"required,finite"`
}

// LoadProfile reads one named profile: station id -> {x_coord, y_coord, weight}
func LoadProfile(path, name string) (placement.Configuration, error) {
	var doc map[string]map[string]stationDoc
	if err := readDocument(path, &doc); err != nil {
		return nil, err
	}

	profile, ok := doc[name]
	if !ok {
		return nil, &placement.DataShapeError{Source: path, Field: name, Reason: "profile not found"}
	}
	if len(profile) == 0 {
		return nil, &placement.DataShapeError{Source: path, Field: name, Reason: "profile has no stations"}
	}

	cfg := make(placement.Configuration, len(profile))
	for id, s := range profile {
		if err := checkStruct(path, name+"."+id+".", s); err != nil {
			return nil, err
		}
		cfg[id] = placement.Station{XCoord: *s.XCoord, YCoord: *s.YCoord, Weight: *s.Weight}
	}

	slog.Debug("Loaded profile", "path", path, "profile", name, "stations", len(cfg))
	return cfg, nil
}

// ListProfiles returns the profile names in a document
func ListProfiles(path string) ([]string, error) {
	var doc map[string]yaml.Node
	if err := readDocument(path, &doc); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	return names, nil
}

// SaveProfile writes cfg under name into the profile document at path,
// keeping the other profiles. A missing document is created. Files ending in
// .json are written as indented JSON, everything else as YAML.
func SaveProfile(path, name string, cfg placement.Configuration) error {
	if name == "" {
		return &placement.ConfigError{Field: "profile", Reason: "name cannot be empty"}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc := map[string]any{}
	if _, err := os.Stat(path); err == nil {
		if err := readDocument(path, &doc); err != nil {
			return err
		}
		if doc == nil {
			doc = map[string]any{}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat profile document: %w", err)
	}

	stations := make(map[string]placement.Station, len(cfg))
	for id, s := range cfg {
		stations[id] = s
	}
	doc[name] = stations

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to encode profile document: %w", err)
	}

	if err := writeAtomic(path, data); err != nil {
		return err
	}
	slog.Info("Saved profile", "path", path, "profile", name, "stations", len(cfg))
	return nil
}

// writeAtomic uses the temp file + rename pattern
func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
