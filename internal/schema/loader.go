package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"RequestCriteria/internal/logger"
)

// entityFiles lists the *.yml and *.yaml files of dir in a stable order.
func entityFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir reads every entity definition in dir. The file name without
// extension is the entity name.
func LoadDir(dir string) (map[string]*Entity, error) {
	files, err := entityFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no entity definitions in %s", dir)
	}

	entities := make(map[string]*Entity, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, dup := entities[name]; dup {
			return nil, fmt.Errorf("entity %s defined twice", name)
		}
		e, err := parseEntity(name, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entities[name] = e
		logger.Debug("entity_loaded", logger.Fields{
			"entity":    name,
			"relations": len(e.Relations),
		})
	}
	return entities, nil
}

func parseEntity(name string, data []byte) (*Entity, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty definition")
	}
	if err := validateNode(&root, "document"); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	var e Entity
	if err := root.Decode(&e); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	e.Name = name
	return &e, nil
}
