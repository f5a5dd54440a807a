package content

import (
	"errors"
	"testing"
)

func TestTask_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		task  Task
		input string
		want  bool
	}{
		{"exact", Task{Answer: "42"}, "42", true},
		{"trimmed and folded", Task{Answer: "Hello"}, "  hELLo \n", true},
		{"wrong", Task{Answer: "42"}, "43", false},
		{"answers list", Task{Answers: []string{"ten", "10"}}, "10", true},
		{"answers list replaces answer", Task{Answer: "x", Answers: []string{"y"}}, "x", false},
		{"empty input against empty answer", Task{}, "  ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Accepts(tt.input); got != tt.want {
				t.Errorf("Accepts(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestQuiz_Accepts(t *testing.T) {
	q := Quiz{Options: []string{"a", "b"}, Correct: 1}
	if !q.Accepts(1) {
		t.Error("Accepts(1) = false, want true")
	}
	if q.Accepts(0) {
		t.Error("Accepts(0) = true, want false")
	}
}

func TestLesson_EmptyListsMeanAbsent(t *testing.T) {
	l := Lesson{Quizzes: []Quiz{}, Tasks: nil, Sublessons: []Sublesson{}}
	if l.HasQuizzes() || l.HasTasks() || l.HasSublessons() {
		t.Errorf("empty lists reported as present: %+v", l)
	}
}

func TestCourse_clone(t *testing.T) {
	c := Course{Modules: []Module{{Lessons: []Lesson{{
		Quizzes:    []Quiz{{Options: []string{"a"}}},
		Sublessons: []Sublesson{{Tasks: []Task{{Answers: []string{"x"}}}}},
	}}}}}
	cp := c.clone()
	cp.Modules[0].Lessons[0].Quizzes[0].Options[0] = "changed"
	cp.Modules[0].Lessons[0].Sublessons[0].Tasks[0].Answers[0] = "changed"

	if c.Modules[0].Lessons[0].Quizzes[0].Options[0] != "a" {
		t.Error("clone shares quiz options")
	}
	if c.Modules[0].Lessons[0].Sublessons[0].Tasks[0].Answers[0] != "x" {
		t.Error("clone shares task answers")
	}
}

func TestValidateCourse(t *testing.T) {
	valid := Course{ID: "c", Title: "C", Modules: []Module{{ID: "m", Title: "M", Lessons: []Lesson{{ID: "l", Title: "L"}}}}}
	if err := ValidateCourse(valid); err != nil {
		t.Fatalf("ValidateCourse(valid) = %v", err)
	}

	dup := valid.clone()
	dup.Modules = append(dup.Modules, Module{ID: "m2", Title: "M2", Lessons: []Lesson{{ID: "l", Title: "again"}}})
	if err := ValidateCourse(dup); err == nil {
		t.Error("duplicate lesson id accepted")
	}

	noTitle := valid.clone()
	noTitle.Title = ""
	if err := ValidateCourse(noTitle); err == nil {
		t.Error("course without title accepted")
	}
}

func TestValidate_RejectsColonInIDs(t *testing.T) {
	sub := Course{ID: "c", Title: "C", Modules: []Module{{ID: "m", Title: "M", Lessons: []Lesson{{
		ID: "l", Title: "L", Sublessons: []Sublesson{{ID: "s:1", Title: "S"}},
	}}}}}
	if err := ValidateCourse(sub); !errors.Is(err, ErrInvalid) {
		t.Errorf("sub-lesson id with ':' = %v, want ErrInvalid", err)
	}

	lesson := Course{ID: "c", Title: "C", Modules: []Module{{ID: "m", Title: "M", Lessons: []Lesson{{ID: "a:b", Title: "L"}}}}}
	if err := ValidateCourse(lesson); !errors.Is(err, ErrInvalid) {
		t.Errorf("lesson id with ':' = %v, want ErrInvalid", err)
	}

	if err := ValidateExercise(Exercise{ID: "ex:1", Title: "E", Level: 1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("exercise id with ':' = %v, want ErrInvalid", err)
	}
	if err := ValidateExercise(Exercise{ID: "ex-1", Title: "E", Level: 1}); err != nil {
		t.Errorf("ValidateExercise(valid) = %v", err)
	}
}
