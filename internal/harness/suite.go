package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover resolves path into scenario files. A file is returned as is; a
// directory yields its *.yaml and *.yml files in lexical order.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// SuiteEntry is the outcome of one scenario file.
type SuiteEntry struct {
	Path     string  `json:"path"`
	Scenario string  `json:"scenario,omitempty"`
	Result   *Result `json:"result,omitempty"`
	// Err is set when the file could not be loaded or run.
	Err string `json:"error,omitempty"`
}

// Passed reports whether the scenario loaded, ran and passed.
func (e SuiteEntry) Passed() bool {
	return e.Err == "" && e.Result != nil && e.Result.Pass
}

// RunSuite loads and runs every scenario under path. Load failures are
// recorded per entry rather than aborting the suite.
func RunSuite(path string, opts ...Option) ([]SuiteEntry, error) {
	files, err := Discover(path)
	if err != nil {
		return nil, err
	}

	entries := make([]SuiteEntry, 0, len(files))
	for _, file := range files {
		entry := SuiteEntry{Path: file}
		scenario, err := LoadScenario(file)
		if err != nil {
			entry.Err = err.Error()
			entries = append(entries, entry)
			continue
		}
		entry.Scenario = scenario.Name
		result, err := Run(scenario, opts...)
		if err != nil {
			entry.Err = err.Error()
		} else {
			entry.Result = result
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
