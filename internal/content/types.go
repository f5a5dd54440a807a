package content

import (
	"strings"

	"golang.org/x/text/cases"
)

// Course is the top of the content tree: modules, then lessons, then
// optional sub-lessons.
type Course struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Modules     []Module `json:"modules" yaml:"modules"`
}

// Module groups lessons within a course.
type Module struct {
	ID          string   `json:"id" yaml:"id"`
	Number      int      `json:"number,omitempty" yaml:"number,omitempty"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Lessons     []Lesson `json:"lessons" yaml:"lessons"`
}

// Lesson is a unit of study. Content is markdown.
type Lesson struct {
	ID         string      `json:"id" yaml:"id"`
	Title      string      `json:"title" yaml:"title"`
	Content    string      `json:"content,omitempty" yaml:"content,omitempty"`
	Quizzes    []Quiz      `json:"quizzes,omitempty" yaml:"quizzes,omitempty"`
	Tasks      []Task      `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Sublessons []Sublesson `json:"sublessons,omitempty" yaml:"sublessons,omitempty"`
}

// Sublesson is a lesson nested one level inside another lesson.
type Sublesson struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	Quizzes []Quiz `json:"quizzes,omitempty" yaml:"quizzes,omitempty"`
	Tasks   []Task `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// Quiz is a single multiple-choice question. Correct indexes Options.
type Quiz struct {
	ID          string   `json:"id" yaml:"id"`
	Question    string   `json:"question" yaml:"question"`
	Code        string   `json:"code,omitempty" yaml:"code,omitempty"`
	Options     []string `json:"options" yaml:"options"`
	Correct     int      `json:"correct" yaml:"correct"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Task is a free-text practice question attached to a lesson.
type Task struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Answer      string   `json:"answer,omitempty" yaml:"answer,omitempty"`
	Answers     []string `json:"answers,omitempty" yaml:"answers,omitempty"`
	Solution    string   `json:"solution,omitempty" yaml:"solution,omitempty"`
}

// Exercise is a standalone problem in the trainer. CourseID is empty for
// exercises that belong to no course.
type Exercise struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	CourseID    string   `json:"courseId,omitempty" yaml:"courseId,omitempty"`
	Level       int      `json:"level" yaml:"level"`
	Answer      string   `json:"answer,omitempty" yaml:"answer,omitempty"`
	Answers     []string `json:"answers,omitempty" yaml:"answers,omitempty"`
	Hint        string   `json:"hint,omitempty" yaml:"hint,omitempty"`
	Solution    string   `json:"solution,omitempty" yaml:"solution,omitempty"`
}

// About is the static "about the project" page.
type About struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Content     string `json:"content,omitempty" yaml:"content,omitempty"`
}

// HasSublessons reports whether the lesson has at least one sub-lesson.
// A nil list and an empty list are the same.
func (l Lesson) HasSublessons() bool { return len(l.Sublessons) > 0 }

// HasQuizzes reports whether the lesson has at least one quiz.
func (l Lesson) HasQuizzes() bool { return len(l.Quizzes) > 0 }

// HasTasks reports whether the lesson has at least one task.
func (l Lesson) HasTasks() bool { return len(l.Tasks) > 0 }

// HasQuizzes reports whether the sub-lesson has at least one quiz.
func (s Sublesson) HasQuizzes() bool { return len(s.Quizzes) > 0 }

// HasTasks reports whether the sub-lesson has at least one task.
func (s Sublesson) HasTasks() bool { return len(s.Tasks) > 0 }

// Sublesson finds a sub-lesson by id.
func (l Lesson) Sublesson(id string) (Sublesson, bool) {
	for _, s := range l.Sublessons {
		if s.ID == id {
			return s, true
		}
	}
	return Sublesson{}, false
}

// Module finds a module by id.
func (c Course) Module(id string) (Module, bool) {
	for _, m := range c.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// FindLesson finds a lesson by id in any module of the course.
// Lesson ids are unique within a course.
func (c Course) FindLesson(id string) (Lesson, bool) {
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			if l.ID == id {
				return l, true
			}
		}
	}
	return Lesson{}, false
}

// Lessons returns every lesson of the course in module order.
func (c Course) Lessons() []Lesson {
	var out []Lesson
	for _, m := range c.Modules {
		out = append(out, m.Lessons...)
	}
	return out
}

// Accepts reports whether choice is the correct option.
func (q Quiz) Accepts(choice int) bool {
	return choice == q.Correct
}

// Accepts reports whether input matches one of the task's answers after
// trimming and case folding.
func (t Task) Accepts(input string) bool {
	return matchAnswer(input, t.Answer, t.Answers)
}

// Accepts reports whether input matches one of the exercise's answers after
// trimming and case folding.
func (e Exercise) Accepts(input string) bool {
	return matchAnswer(input, e.Answer, e.Answers)
}

// Answers, when set, replace Answer.
func matchAnswer(input, answer string, answers []string) bool {
	accepted := answers
	if len(accepted) == 0 {
		accepted = []string{answer}
	}
	got := normalizeAnswer(input)
	for _, a := range accepted {
		if normalizeAnswer(a) == got {
			return true
		}
	}
	return false
}

func normalizeAnswer(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ExerciseFilter narrows an exercise listing. A zero Level matches every
// level. A nil CourseID matches every course; a pointer to "" matches only
// exercises without a course.
type ExerciseFilter struct {
	Level    int
	CourseID *string
}

// Match reports whether e passes the filter.
func (f ExerciseFilter) Match(e Exercise) bool {
	if f.Level != 0 && e.Level != f.Level {
		return false
	}
	if f.CourseID != nil && e.CourseID != *f.CourseID {
		return false
	}
	return true
}

func (c Course) clone() Course {
	out := c
	out.Modules = make([]Module, len(c.Modules))
	for i, m := range c.Modules {
		out.Modules[i] = m.clone()
	}
	return out
}

func (m Module) clone() Module {
	out := m
	out.Lessons = make([]Lesson, len(m.Lessons))
	for i, l := range m.Lessons {
		out.Lessons[i] = l.clone()
	}
	return out
}

func (l Lesson) clone() Lesson {
	out := l
	out.Quizzes = cloneQuizzes(l.Quizzes)
	out.Tasks = cloneTasks(l.Tasks)
	if l.Sublessons != nil {
		out.Sublessons = make([]Sublesson, len(l.Sublessons))
		for i, s := range l.Sublessons {
			out.Sublessons[i] = s.clone()
		}
	}
	return out
}

func (s Sublesson) clone() Sublesson {
	out := s
	out.Quizzes = cloneQuizzes(s.Quizzes)
	out.Tasks = cloneTasks(s.Tasks)
	return out
}

func cloneQuizzes(qs []Quiz) []Quiz {
	if qs == nil {
		return nil
	}
	out := make([]Quiz, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

func cloneTasks(ts []Task) []Task {
	if ts == nil {
		return nil
	}
	out := make([]Task, len(ts))
	for i, t := range ts {
		t.Answers = append([]string(nil), t.Answers...)
		out[i] = t
	}
	return out
}
