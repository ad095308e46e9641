package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"argus/core"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ruleIDPattern restricts rule IDs to names that are safe as file stems.
// Anything with path separators, dots or shell metacharacters is rejected
// before it can touch the filesystem.
var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// FileRuleStore keeps one YAML file per rule under a single directory.
// Suited to small rule sets edited by hand and kept in version control.
type FileRuleStore struct {
	dir    string
	logger *zap.SugaredLogger
}

// NewFileRuleStore creates the rules directory when missing and returns a
// store over it.
func NewFileRuleStore(dir string, logger *zap.SugaredLogger) (*FileRuleStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create rules directory: %w", err)
	}
	return &FileRuleStore{dir: dir, logger: logger}, nil
}

// rulePath maps a rule ID to its YAML file, rejecting IDs that could escape
// the rules directory.
func (fs *FileRuleStore) rulePath(id string) (string, error) {
	if !ruleIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRuleID, id)
	}
	return filepath.Join(fs.dir, id+".yaml"), nil
}

// ListRules loads every *.yaml file in the rules directory, sorted by ID.
// A file that fails to parse is skipped with a warning rather than hiding
// the rest of the rule set.
func (fs *FileRuleStore) ListRules() ([]*core.RuleDefinition, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory: %w", err)
	}

	var defs []*core.RuleDefinition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		def, err := fs.loadFile(filepath.Join(fs.dir, entry.Name()))
		if err != nil {
			fs.logger.Warnw("Skipping unreadable rule file", "file", entry.Name(), "error", err)
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// GetRule loads a single rule by ID.
func (fs *FileRuleStore) GetRule(id string) (*core.RuleDefinition, error) {
	path, err := fs.rulePath(id)
	if err != nil {
		return nil, err
	}
	def, err := fs.loadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return def, err
}

// CreateRule writes a new rule file, refusing to overwrite an existing one.
func (fs *FileRuleStore) CreateRule(def *core.RuleDefinition) error {
	path, err := fs.rulePath(def.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, def.ID)
	}
	return fs.writeFile(path, def)
}

// UpdateRule replaces the rule stored under id. An update that changes the
// rule's ID removes the old file and writes under the new ID, refusing to
// clobber a different existing rule.
func (fs *FileRuleStore) UpdateRule(id string, def *core.RuleDefinition) error {
	oldPath, err := fs.rulePath(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(oldPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		return fmt.Errorf("failed to stat rule file: %w", err)
	}

	if def.ID == id {
		return fs.writeFile(oldPath, def)
	}

	newPath, err := fs.rulePath(def.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, def.ID)
	}
	if err := fs.writeFile(newPath, def); err != nil {
		return err
	}
	if err := os.Remove(oldPath); err != nil {
		fs.logger.Warnw("Failed to remove old rule file after re-key", "file", oldPath, "error", err)
	}
	return nil
}

// DeleteRule removes the rule's YAML file.
func (fs *FileRuleStore) DeleteRule(id string) error {
	path, err := fs.rulePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		return fmt.Errorf("failed to delete rule file: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (fs *FileRuleStore) Close() error { return nil }

func (fs *FileRuleStore) loadFile(path string) (*core.RuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def core.RuleDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	return &def, nil
}

func (fs *FileRuleStore) writeFile(path string, def *core.RuleDefinition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to serialize rule: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	return nil
}
