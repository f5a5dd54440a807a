package content

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Catalog holds the loaded content and applies admin edits, writing each
// change back to the content directory before it becomes visible.
// Returned values are copies; callers may keep them.
type Catalog struct {
	rootDir string

	mu        sync.RWMutex
	courses   []Course
	paths     map[string]string
	exercises []Exercise
	about     About
}

// NewCatalog creates a catalog and loads all content under rootDir.
func NewCatalog(rootDir string) (*Catalog, error) {
	snap, err := loadDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}

	c := &Catalog{
		rootDir:   rootDir,
		courses:   snap.courses,
		paths:     snap.paths,
		exercises: snap.exercises,
		about:     snap.about,
	}
	slog.Info("content loaded", "courses", len(c.courses), "exercises", len(c.exercises))
	return c, nil
}

// Courses returns all courses in load order.
func (c *Catalog) Courses() []Course {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Course, len(c.courses))
	for i, course := range c.courses {
		out[i] = course.clone()
	}
	return out
}

// Course returns a course by id.
func (c *Catalog) Course(id string) (Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.courseIndex(id)
	if i < 0 {
		return Course{}, fmt.Errorf("course %q: %w", id, ErrNotFound)
	}
	return c.courses[i].clone(), nil
}

// Lesson returns a lesson by course and lesson id.
func (c *Catalog) Lesson(courseID, lessonID string) (Lesson, error) {
	course, err := c.Course(courseID)
	if err != nil {
		return Lesson{}, err
	}
	l, ok := course.FindLesson(lessonID)
	if !ok {
		return Lesson{}, fmt.Errorf("lesson %q in course %q: %w", lessonID, courseID, ErrNotFound)
	}
	return l, nil
}

// Sublesson returns a sub-lesson and its parent lesson.
func (c *Catalog) Sublesson(courseID, lessonID, sublessonID string) (Sublesson, Lesson, error) {
	l, err := c.Lesson(courseID, lessonID)
	if err != nil {
		return Sublesson{}, Lesson{}, err
	}
	s, ok := l.Sublesson(sublessonID)
	if !ok {
		return Sublesson{}, Lesson{}, fmt.Errorf("sub-lesson %q in lesson %q: %w", sublessonID, lessonID, ErrNotFound)
	}
	return s, l, nil
}

// Exercises returns the exercises that pass filter, in catalogue order.
func (c *Catalog) Exercises(filter ExerciseFilter) []Exercise {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Exercise
	for _, e := range c.exercises {
		if filter.Match(e) {
			e.Answers = slices.Clone(e.Answers)
			out = append(out, e)
		}
	}
	return out
}

// Exercise returns an exercise by id.
func (c *Catalog) Exercise(id string) (Exercise, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.exerciseIndex(id)
	if i < 0 {
		return Exercise{}, fmt.Errorf("exercise %q: %w", id, ErrNotFound)
	}
	e := c.exercises[i]
	e.Answers = slices.Clone(e.Answers)
	return e, nil
}

// About returns the about page.
func (c *Catalog) About() About {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.about
}

// CreateCourse adds a course. An empty id is generated.
func (c *Catalog) CreateCourse(course Course) (Course, error) {
	if course.ID == "" {
		course.ID = newID("course")
	}
	if course.Modules == nil {
		course.Modules = []Module{}
	}
	if err := ValidateCourse(course); err != nil {
		return Course{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.courseIndex(course.ID) >= 0 {
		return Course{}, fmt.Errorf("course %q: %w", course.ID, ErrConflict)
	}
	if err := c.saveCourse(course); err != nil {
		return Course{}, err
	}
	c.courses = append(c.courses, course)
	return course.clone(), nil
}

// UpdateCourse replaces a course's title and description. Modules are kept
// unless patch carries its own.
func (c *Catalog) UpdateCourse(id string, patch Course) (Course, error) {
	return c.mutateCourse(id, func(course *Course) error {
		course.Title = patch.Title
		course.Description = patch.Description
		if patch.Modules != nil {
			course.Modules = patch.Modules
		}
		return nil
	})
}

// DeleteCourse removes a course and its file.
func (c *Catalog) DeleteCourse(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.courseIndex(id)
	if i < 0 {
		return fmt.Errorf("course %q: %w", id, ErrNotFound)
	}
	if path, ok := c.paths[id]; ok {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing course file: %w", err)
		}
		delete(c.paths, id)
	}
	c.courses = slices.Delete(c.courses, i, i+1)
	return nil
}

// CreateModule appends a module to a course.
func (c *Catalog) CreateModule(courseID string, m Module) (Module, error) {
	if m.ID == "" {
		m.ID = newID("module")
	}
	if m.Lessons == nil {
		m.Lessons = []Lesson{}
	}
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		if _, ok := course.Module(m.ID); ok {
			return fmt.Errorf("module %q: %w", m.ID, ErrConflict)
		}
		if m.Number == 0 {
			m.Number = len(course.Modules) + 1
		}
		course.Modules = append(course.Modules, m)
		return nil
	})
	return m, err
}

// UpdateModule replaces a module's metadata, keeping its lessons.
func (c *Catalog) UpdateModule(courseID, moduleID string, patch Module) (Module, error) {
	var out Module
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		m, err := findModule(course, moduleID)
		if err != nil {
			return err
		}
		m.Title = patch.Title
		m.Description = patch.Description
		if patch.Number != 0 {
			m.Number = patch.Number
		}
		out = m.clone()
		return nil
	})
	return out, err
}

// DeleteModule removes a module with all its lessons.
func (c *Catalog) DeleteModule(courseID, moduleID string) error {
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		i := slices.IndexFunc(course.Modules, func(m Module) bool { return m.ID == moduleID })
		if i < 0 {
			return fmt.Errorf("module %q: %w", moduleID, ErrNotFound)
		}
		course.Modules = slices.Delete(course.Modules, i, i+1)
		return nil
	})
	return err
}

// CreateLesson appends a lesson to a module.
func (c *Catalog) CreateLesson(courseID, moduleID string, l Lesson) (Lesson, error) {
	if l.ID == "" {
		l.ID = newID("lesson")
	}
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		if _, ok := course.FindLesson(l.ID); ok {
			return fmt.Errorf("lesson %q: %w", l.ID, ErrConflict)
		}
		m, err := findModule(course, moduleID)
		if err != nil {
			return err
		}
		m.Lessons = append(m.Lessons, l)
		return nil
	})
	return l, err
}

// UpdateLesson replaces a lesson's body. Sub-lessons are kept unless patch
// carries its own.
func (c *Catalog) UpdateLesson(courseID, moduleID, lessonID string, patch Lesson) (Lesson, error) {
	var out Lesson
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		l, err := findLesson(course, moduleID, lessonID)
		if err != nil {
			return err
		}
		l.Title = patch.Title
		l.Content = patch.Content
		l.Quizzes = patch.Quizzes
		l.Tasks = patch.Tasks
		if patch.Sublessons != nil {
			l.Sublessons = patch.Sublessons
		}
		out = l.clone()
		return nil
	})
	return out, err
}

// DeleteLesson removes a lesson from a module.
func (c *Catalog) DeleteLesson(courseID, moduleID, lessonID string) error {
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		m, err := findModule(course, moduleID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(m.Lessons, func(l Lesson) bool { return l.ID == lessonID })
		if i < 0 {
			return fmt.Errorf("lesson %q: %w", lessonID, ErrNotFound)
		}
		m.Lessons = slices.Delete(m.Lessons, i, i+1)
		return nil
	})
	return err
}

// CreateSublesson appends a sub-lesson to a lesson.
func (c *Catalog) CreateSublesson(courseID, moduleID, lessonID string, s Sublesson) (Sublesson, error) {
	if s.ID == "" {
		s.ID = newID("sublesson")
	}
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		l, err := findLesson(course, moduleID, lessonID)
		if err != nil {
			return err
		}
		if _, ok := l.Sublesson(s.ID); ok {
			return fmt.Errorf("sub-lesson %q: %w", s.ID, ErrConflict)
		}
		l.Sublessons = append(l.Sublessons, s)
		return nil
	})
	return s, err
}

// UpdateSublesson replaces a sub-lesson's body.
func (c *Catalog) UpdateSublesson(courseID, moduleID, lessonID, sublessonID string, patch Sublesson) (Sublesson, error) {
	var out Sublesson
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		l, err := findLesson(course, moduleID, lessonID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(l.Sublessons, func(s Sublesson) bool { return s.ID == sublessonID })
		if i < 0 {
			return fmt.Errorf("sub-lesson %q: %w", sublessonID, ErrNotFound)
		}
		patch.ID = sublessonID
		l.Sublessons[i] = patch
		out = patch.clone()
		return nil
	})
	return out, err
}

// DeleteSublesson removes a sub-lesson from a lesson.
func (c *Catalog) DeleteSublesson(courseID, moduleID, lessonID, sublessonID string) error {
	_, err := c.mutateCourse(courseID, func(course *Course) error {
		l, err := findLesson(course, moduleID, lessonID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(l.Sublessons, func(s Sublesson) bool { return s.ID == sublessonID })
		if i < 0 {
			return fmt.Errorf("sub-lesson %q: %w", sublessonID, ErrNotFound)
		}
		l.Sublessons = slices.Delete(l.Sublessons, i, i+1)
		return nil
	})
	return err
}

// CreateExercise adds an exercise to the trainer catalogue.
func (c *Catalog) CreateExercise(e Exercise) (Exercise, error) {
	if e.ID == "" {
		e.ID = newID("exercise")
	}
	if err := ValidateExercise(e); err != nil {
		return Exercise{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exerciseIndex(e.ID) >= 0 {
		return Exercise{}, fmt.Errorf("exercise %q: %w", e.ID, ErrConflict)
	}
	next := append(slices.Clone(c.exercises), e)
	if err := c.saveExercises(next); err != nil {
		return Exercise{}, err
	}
	c.exercises = next
	return e, nil
}

// UpdateExercise replaces an exercise.
func (c *Catalog) UpdateExercise(id string, e Exercise) (Exercise, error) {
	e.ID = id
	if err := ValidateExercise(e); err != nil {
		return Exercise{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.exerciseIndex(id)
	if i < 0 {
		return Exercise{}, fmt.Errorf("exercise %q: %w", id, ErrNotFound)
	}
	next := slices.Clone(c.exercises)
	next[i] = e
	if err := c.saveExercises(next); err != nil {
		return Exercise{}, err
	}
	c.exercises = next
	return e, nil
}

// DeleteExercise removes an exercise.
func (c *Catalog) DeleteExercise(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.exerciseIndex(id)
	if i < 0 {
		return fmt.Errorf("exercise %q: %w", id, ErrNotFound)
	}
	next := slices.Delete(slices.Clone(c.exercises), i, i+1)
	if err := c.saveExercises(next); err != nil {
		return err
	}
	c.exercises = next
	return nil
}

// SetAbout replaces the about page.
func (c *Catalog) SetAbout(a About) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.replaceFile("about", a); err != nil {
		return fmt.Errorf("saving about page: %w", err)
	}
	c.about = a
	return nil
}

// mutateCourse edits a copy of the course and swaps it in only after it
// validates and is written to disk.
func (c *Catalog) mutateCourse(id string, fn func(*Course) error) (Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.courseIndex(id)
	if i < 0 {
		return Course{}, fmt.Errorf("course %q: %w", id, ErrNotFound)
	}
	next := c.courses[i].clone()
	if err := fn(&next); err != nil {
		return Course{}, err
	}
	if err := ValidateCourse(next); err != nil {
		return Course{}, err
	}
	if err := c.saveCourse(next); err != nil {
		return Course{}, err
	}
	c.courses[i] = next
	return next.clone(), nil
}

func (c *Catalog) saveCourse(course Course) error {
	path := filepath.Join(c.rootDir, coursesDir, course.ID+".json")
	if err := writeJSON(path, course); err != nil {
		return fmt.Errorf("saving course %q: %w", course.ID, err)
	}
	if old, ok := c.paths[course.ID]; ok && old != path {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not remove replaced course file", "path", old, "error", err)
		}
	}
	c.paths[course.ID] = path
	return nil
}

func (c *Catalog) saveExercises(exercises []Exercise) error {
	if exercises == nil {
		exercises = []Exercise{}
	}
	if err := c.replaceFile("exercises", exercises); err != nil {
		return fmt.Errorf("saving exercises: %w", err)
	}
	return nil
}

// replaceFile writes <root>/<base>.json and drops YAML variants so the next
// load reads the same data.
func (c *Catalog) replaceFile(base string, v any) error {
	if err := writeJSON(filepath.Join(c.rootDir, base+".json"), v); err != nil {
		return err
	}
	for _, ext := range []string{".yaml", ".yml"} {
		if err := os.Remove(filepath.Join(c.rootDir, base+ext)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (c *Catalog) courseIndex(id string) int {
	return slices.IndexFunc(c.courses, func(course Course) bool { return course.ID == id })
}

func (c *Catalog) exerciseIndex(id string) int {
	return slices.IndexFunc(c.exercises, func(e Exercise) bool { return e.ID == id })
}

func findModule(course *Course, id string) (*Module, error) {
	for i := range course.Modules {
		if course.Modules[i].ID == id {
			return &course.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("module %q: %w", id, ErrNotFound)
}

func findLesson(course *Course, moduleID, lessonID string) (*Lesson, error) {
	m, err := findModule(course, moduleID)
	if err != nil {
		return nil, err
	}
	for i := range m.Lessons {
		if m.Lessons[i].ID == lessonID {
			return &m.Lessons[i], nil
		}
	}
	return nil, fmt.Errorf("lesson %q: %w", lessonID, ErrNotFound)
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
