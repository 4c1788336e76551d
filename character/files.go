package character

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ErrNoCharacterFiles is returned by LatestFile for a directory without
// character files.
var ErrNoCharacterFiles = errors.New("no character files found")

// Parse decodes a character file body. ext selects the format: ".yaml" and
// ".yml" are YAML, anything else is JSON with comments and trailing commas
// allowed.
func Parse(data []byte, ext string) (*Document, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var obj map[string]any
		if err := yaml.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
		// Round-trip through JSON so numbers and nesting match the JSON path.
		encoded, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("converting yaml: %w", err)
		}
		data = encoded
	default:
		data = jsonc.ToJSON(data)
	}

	obj, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("parsing character: %w", err)
	}
	return FromObject(obj), nil
}

// LoadFile reads and parses a character file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// WriteFile stores doc as indented JSON in dir, named after the character,
// and returns the file path.
func WriteFile(dir string, doc *Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding character: %w", err)
	}
	path := filepath.Join(dir, Slug(doc.Name)+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// LatestFile returns the name of the most recently modified .json file in
// dir.
func LatestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}

	var latest string
	var latestMod int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestMod {
			latest, latestMod = entry.Name(), mod
		}
	}
	if latest == "" {
		return "", ErrNoCharacterFiles
	}
	return latest, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a character name into a file-system safe base name.
func Slug(name string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "character"
	}
	return slug
}
