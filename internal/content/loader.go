// Package content loads and serves the course tree, the exercise trainer
// catalogue and the about page. Content lives on disk as YAML or JSON:
//
//	<root>/courses/*.yaml|*.yml|*.json   one course per file
//	<root>/exercises.yaml|json           list of exercises
//	<root>/about.yaml|json               about page
package content

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const coursesDir = "courses"

// snapshot is everything read from one content directory.
type snapshot struct {
	courses   []Course
	paths     map[string]string // course id -> source file
	exercises []Exercise
	about     About
}

func loadDir(rootDir string) (*snapshot, error) {
	snap := &snapshot{paths: make(map[string]string)}

	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		slog.Warn("content directory missing, starting empty", "path", rootDir)
		return snap, nil
	}

	err := filepath.Walk(filepath.Join(rootDir, coursesDir), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !isContentFile(path) {
			return nil
		}
		return snap.loadCourse(path)
	})
	if err != nil {
		return nil, err
	}

	if path, ok := findFile(rootDir, "exercises"); ok {
		if err := decodeFile(path, &snap.exercises); err != nil {
			return nil, fmt.Errorf("reading exercises: %w", err)
		}
		valid := snap.exercises[:0]
		for _, e := range snap.exercises {
			if err := ValidateExercise(e); err != nil {
				slog.Warn("skipping invalid exercise", "path", path, "error", err)
				continue
			}
			valid = append(valid, e)
		}
		snap.exercises = valid
	}

	if path, ok := findFile(rootDir, "about"); ok {
		if err := decodeFile(path, &snap.about); err != nil {
			return nil, fmt.Errorf("reading about page: %w", err)
		}
	}

	return snap, nil
}

func (s *snapshot) loadCourse(path string) error {
	var course Course
	if err := decodeFile(path, &course); err != nil {
		slog.Warn("skipping unreadable course file", "path", path, "error", err)
		return nil
	}
	if course.ID == "" {
		return nil // not a course file
	}
	if err := ValidateCourse(course); err != nil {
		slog.Warn("skipping invalid course", "path", path, "error", err)
		return nil
	}
	if prev, dup := s.paths[course.ID]; dup {
		slog.Warn("skipping duplicate course id", "id", course.ID, "path", path, "first", prev)
		return nil
	}
	s.courses = append(s.courses, course)
	s.paths[course.ID] = path
	return nil
}

func isContentFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func findFile(dir, base string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// writeJSON replaces path atomically with the JSON encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Lint reads rootDir the way NewCatalog does and returns one message for
// every file or entry that NewCatalog would skip. A nil slice means the
// content is clean.
func Lint(rootDir string) ([]string, error) {
	if _, err := os.Stat(rootDir); err != nil {
		return nil, fmt.Errorf("content directory: %w", err)
	}
	var problems []string
	seen := map[string]string{}

	err := filepath.Walk(filepath.Join(rootDir, coursesDir), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !isContentFile(path) {
			return nil
		}
		var course Course
		if err := decodeFile(path, &course); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		if course.ID == "" {
			problems = append(problems, fmt.Sprintf("%s: no course id", path))
			return nil
		}
		if err := ValidateCourse(course); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", path, err))
		}
		if prev, dup := seen[course.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: course id %q already used by %s", path, course.ID, prev))
		}
		seen[course.ID] = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	if path, ok := findFile(rootDir, "exercises"); ok {
		var exercises []Exercise
		if err := decodeFile(path, &exercises); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", path, err))
		}
		ids := map[string]bool{}
		for _, e := range exercises {
			if err := ValidateExercise(e); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", path, err))
			}
			if ids[e.ID] {
				problems = append(problems, fmt.Sprintf("%s: duplicate exercise id %q", path, e.ID))
			}
			ids[e.ID] = true
		}
	}

	if path, ok := findFile(rootDir, "about"); ok {
		var a About
		if err := decodeFile(path, &a); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", path, err))
		}
	}
	return problems, nil
}
