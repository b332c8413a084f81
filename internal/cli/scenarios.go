package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Error codes reported in CLI responses.
const (
	ErrCodeLoad           = "E_LOAD"
	ErrCodeInvalid        = "E_INVALID_SCENARIO"
	ErrCodeScenarioFailed = "E_SCENARIO_FAILED"
)

// findScenarioFiles expands args into YAML scenario files. Directories are
// walked recursively; a filter glob is matched against the file name
// without extension.
func findScenarioFiles(args []string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("scenario path not found: %s", arg)
		}

		if !info.IsDir() {
			if matchesFilter(arg, filter) {
				files = append(files, arg)
			}
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := filepath.Ext(path)
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			if matchesFilter(path, filter) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func matchesFilter(path, filter string) bool {
	if filter == "" {
		return true
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	matched, _ := filepath.Match(filter, name)
	return matched
}
