package autotag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const reloadDebounce = 200 * time.Millisecond

type ruleFile struct {
	Rules RuleSet `yaml:"rules"`
}

// Tagger holds the active rule set. The set can be swapped at runtime; each
// call to Tag sees exactly one set.
type Tagger struct {
	rules atomic.Pointer[RuleSet]
}

func NewTagger(rules RuleSet) *Tagger {
	t := &Tagger{}
	t.rules.Store(&rules)
	return t
}

func (t *Tagger) Tag(title, description string) []string {
	return t.rules.Load().Tag(title, description)
}

func (t *Tagger) Rules() RuleSet {
	return *t.rules.Load()
}

func (t *Tagger) SetRules(rules RuleSet) {
	t.rules.Store(&rules)
}

// LoadRules reads a rule file of the form
//
//	rules:
//	  - label: bug
//	    keywords: [bug, fix]
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag rules: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tag rules %s: %w", path, err)
	}
	if err := f.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tag rules %s: %w", path, err)
	}
	return f.Rules, nil
}

// Watch reloads the rule file whenever it changes until ctx is done. A file
// that fails to load leaves the current rules in place.
func (t *Tagger) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	slog.InfoContext(ctx, "watching tag rules", "path", path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				t.reload(ctx, path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "tag rules watcher error", "error", err)
		}
	}
}

func (t *Tagger) reload(ctx context.Context, path string) {
	rules, err := LoadRules(path)
	if err != nil {
		slog.WarnContext(ctx, "keeping previous tag rules", "path", path, "error", err)
		return
	}
	t.SetRules(rules)
	slog.InfoContext(ctx, "tag rules reloaded", "path", path, "rules", len(rules))
}
