package httpapi

import "github.com/p-n-ai/academy/internal/content"

// Learner-facing views leave out correct answers and solutions; those are
// only revealed by the grading endpoints.

type quizView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Code     string   `json:"code,omitempty"`
	Options  []string `json:"options"`
}

type taskView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type sublessonView struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Content string     `json:"content,omitempty"`
	Quizzes []quizView `json:"quizzes"`
	Tasks   []taskView `json:"tasks"`
}

type lessonView struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Content    string          `json:"content,omitempty"`
	Quizzes    []quizView      `json:"quizzes"`
	Tasks      []taskView      `json:"tasks"`
	Sublessons []sublessonView `json:"sublessons"`
}

type moduleView struct {
	ID          string       `json:"id"`
	Number      int          `json:"number,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Lessons     []lessonView `json:"lessons"`
}

type courseView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Modules     []moduleView `json:"modules"`
}

type exerciseView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CourseID    string `json:"courseId,omitempty"`
	Level       int    `json:"level"`
	Hint        string `json:"hint,omitempty"`
}

func quizViews(qs []content.Quiz) []quizView {
	out := make([]quizView, len(qs))
	for i, q := range qs {
		out[i] = quizView{ID: q.ID, Question: q.Question, Code: q.Code, Options: q.Options}
	}
	return out
}

func taskViews(ts []content.Task) []taskView {
	out := make([]taskView, len(ts))
	for i, t := range ts {
		out[i] = taskView{ID: t.ID, Title: t.Title, Description: t.Description}
	}
	return out
}

func newSublessonView(s content.Sublesson) sublessonView {
	return sublessonView{
		ID:      s.ID,
		Title:   s.Title,
		Content: s.Content,
		Quizzes: quizViews(s.Quizzes),
		Tasks:   taskViews(s.Tasks),
	}
}

func newLessonView(l content.Lesson) lessonView {
	v := lessonView{
		ID:         l.ID,
		Title:      l.Title,
		Content:    l.Content,
		Quizzes:    quizViews(l.Quizzes),
		Tasks:      taskViews(l.Tasks),
		Sublessons: make([]sublessonView, len(l.Sublessons)),
	}
	for i, s := range l.Sublessons {
		v.Sublessons[i] = newSublessonView(s)
	}
	return v
}

func newCourseView(c content.Course) courseView {
	v := courseView{ID: c.ID, Title: c.Title, Description: c.Description, Modules: make([]moduleView, len(c.Modules))}
	for i, m := range c.Modules {
		mv := moduleView{ID: m.ID, Number: m.Number, Title: m.Title, Description: m.Description, Lessons: make([]lessonView, len(m.Lessons))}
		for j, l := range m.Lessons {
			mv.Lessons[j] = newLessonView(l)
		}
		v.Modules[i] = mv
	}
	return v
}

func newExerciseView(e content.Exercise) exerciseView {
	return exerciseView{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		CourseID:    e.CourseID,
		Level:       e.Level,
		Hint:        e.Hint,
	}
}
