package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/localci/rlci/internal/model"
)

// LoadDir reads every *.yaml/*.yml file in dir as a Pipeline
// definition and saves it into s, keyed by its Name field. The store
// itself only lives in memory; this is how an operator seeds it from
// definitions checked into a repo.
func LoadDir(s *Store, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading pipeline directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := loadFile(s, path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

func loadFile(s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var p model.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.SavePipeline(p.Name, p)
	return nil
}
