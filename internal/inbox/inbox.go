package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/sync"
)

// Recorder records one day. *sync.Facade implements it.
type Recorder interface {
	RecordDay(ctx context.Context, day schema.DayLog) (schema.LocalState, error)
}

// Config configures an Importer.
type Config struct {
	// Dir is the watched inbox directory
	Dir string

	// Settle is how long a file must go unmodified before it is imported
	// (default: 250ms)
	Settle time.Duration

	// Events receives an imported event per file (optional)
	Events sync.EventSink

	// Logger for importer activity (default: stderr logger)
	Logger *log.Logger
}

// Importer records day logs found in the inbox. Imported files are moved to
// Dir/processed, rejected ones to Dir/failed.
type Importer struct {
	recorder Recorder
	config   Config
	logger   *log.Logger
}

// NewImporter creates an importer.
func NewImporter(recorder Recorder, config Config) *Importer {
	if config.Settle <= 0 {
		config.Settle = 250 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[inbox] ", log.LstdFlags)
	}
	return &Importer{recorder: recorder, config: config, logger: logger}
}

// ImportResult counts what one pass over the inbox did.
type ImportResult struct {
	Imported int
	Failed   int
	Errors   []string
}

// ImportAll imports every *.json file currently in the inbox, oldest name
// first.
func (im *Importer) ImportAll(ctx context.Context) (*ImportResult, error) {
	entries, err := os.ReadDir(im.config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	result := &ImportResult{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := im.ImportFile(ctx, filepath.Join(im.config.Dir, name)); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// ImportFile records the day log in path and moves the file out of the inbox.
func (im *Importer) ImportFile(ctx context.Context, path string) error {
	// #nosec G304 - path is inside the configured inbox
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var day schema.DayLog
	if err := json.Unmarshal(data, &day); err != nil {
		im.reject(path, err)
		return fmt.Errorf("invalid day log: %w", err)
	}
	if day.Entries == nil {
		day.Entries = make(map[string]schema.Entry)
	}

	st, err := im.recorder.RecordDay(ctx, day)
	if err != nil {
		// Context errors leave the file for the next pass.
		if ctx.Err() == nil {
			im.reject(path, err)
		}
		return err
	}

	if err := im.move(path, "processed"); err != nil {
		return err
	}
	im.logger.Printf("Imported %s (total XP %d)", day.Date, st.TotalXP)
	if im.config.Events != nil {
		im.config.Events.Publish(sync.Event{
			Type:    sync.EventImported,
			Time:    time.Now().UTC(),
			Message: day.Date,
		})
	}
	return nil
}

func (im *Importer) reject(path string, cause error) {
	im.logger.Printf("Rejected %s: %v", filepath.Base(path), cause)
	if err := im.move(path, "failed"); err != nil {
		im.logger.Printf("Warning: %v", err)
	}
}

func (im *Importer) move(path, sub string) error {
	dir := filepath.Join(im.config.Dir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", sub, err)
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", filepath.Base(path), sub, err)
	}
	return nil
}

// Run imports existing files, then watches the inbox until ctx is done.
// A file is imported once it has been quiet for the settle interval.
func (im *Importer) Run(ctx context.Context) error {
	if err := os.MkdirAll(im.config.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	w, err := NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Start(im.config.Dir); err != nil {
		return err
	}
	defer w.Stop()

	if res, err := im.ImportAll(ctx); err != nil {
		return err
	} else if res.Imported+res.Failed > 0 {
		im.logger.Printf("Startup import: %d imported, %d failed", res.Imported, res.Failed)
	}

	due := make(map[string]time.Time)
	ticker := time.NewTicker(im.config.Settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case path, ok := <-w.Paths():
			if !ok {
				return nil
			}
			due[path] = time.Now().Add(im.config.Settle)

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			im.logger.Printf("Watcher error: %v", err)

		case now := <-ticker.C:
			for path, at := range due {
				if now.Before(at) {
					continue
				}
				delete(due, path)
				if err := im.ImportFile(ctx, path); err != nil {
					im.logger.Printf("Import failed: %v", err)
				}
			}
		}
	}
}
