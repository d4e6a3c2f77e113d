package us

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const progressFile = ".fetch-progress.yaml"

// fetchProgress is the on-disk resume state of the daily fetcher.
type fetchProgress struct {
	LastCompleted string   `yaml:"last_completed"`
	Empty         []string `yaml:"empty"`
}

// progressTracker records which symbols came back empty and the end date of
// the last completed run, so an interrupted fetch resumes instead of
// starting over.
type progressTracker struct {
	mu    sync.Mutex
	path  string
	last  string
	empty map[string]struct{}
}

// newProgressTracker loads the progress file in dir, creating dir if needed.
func newProgressTracker(dir string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}
	pt := &progressTracker{
		path:  filepath.Join(dir, progressFile),
		empty: make(map[string]struct{}),
	}

	data, err := os.ReadFile(pt.path)
	if errors.Is(err, os.ErrNotExist) {
		return pt, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pt.path, err)
	}
	var st fetchProgress
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pt.path, err)
	}
	pt.last = st.LastCompleted
	for _, s := range st.Empty {
		pt.empty[s] = struct{}{}
	}
	return pt, nil
}

// IsEmpty reports whether symbol already returned no bars.
func (p *progressTracker) IsEmpty(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.empty[symbol]
	return ok
}

// MarkEmpty records symbols that returned no bars.
func (p *progressTracker) MarkEmpty(symbols []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range symbols {
		p.empty[s] = struct{}{}
	}
	return p.saveLocked()
}

// MarkCompleted records date as the end of a finished run.
func (p *progressTracker) MarkCompleted(date string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = date
	return p.saveLocked()
}

// IsCompleted reports whether the last finished run ended on date.
func (p *progressTracker) IsCompleted(date string) bool {
	return p.LastCompleted() == date
}

// LastCompleted returns the end date of the last finished run, or "".
func (p *progressTracker) LastCompleted() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Reset forgets the empty set. The completed date is kept.
func (p *progressTracker) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.empty = make(map[string]struct{})
	return p.saveLocked()
}

func (p *progressTracker) saveLocked() error {
	st := fetchProgress{LastCompleted: p.last, Empty: make([]string, 0, len(p.empty))}
	for s := range p.empty {
		st.Empty = append(st.Empty, s)
	}
	sort.Strings(st.Empty)

	data, err := yaml.Marshal(&st)
	if err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return os.Rename(tmp, p.path)
}
