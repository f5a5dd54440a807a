package progress

import (
	"fmt"
	"strings"
)

// Kind tells what a completion key records.
type Kind string

const (
	// KindUnit marks a lesson or sub-lesson as completed.
	KindUnit Kind = "unit"
	// KindQuizzes marks every quiz of a unit as answered correctly.
	KindQuizzes Kind = "quizzes"
	// KindTasks marks every task of a unit as answered correctly.
	KindTasks Kind = "tasks"
	// KindExercise marks a trainer exercise as solved.
	KindExercise Kind = "exercise"
)

// Key identifies one completion fact. Keys are compared field by field, so
// a lesson id that happens to prefix another never collides with it.
type Key struct {
	Kind        Kind   `json:"kind"`
	CourseID    string `json:"courseId,omitempty"`
	LessonID    string `json:"lessonId,omitempty"`
	SublessonID string `json:"sublessonId,omitempty"`
	ExerciseID  string `json:"exerciseId,omitempty"`
}

// LessonKey is the completion key of a lesson.
func LessonKey(courseID, lessonID string) Key {
	return mustKey(Key{Kind: KindUnit, CourseID: courseID, LessonID: lessonID})
}

// SublessonKey is the completion key of a sub-lesson.
func SublessonKey(courseID, lessonID, sublessonID string) Key {
	if sublessonID == "" {
		panic("progress: empty sub-lesson id")
	}
	return mustKey(Key{Kind: KindUnit, CourseID: courseID, LessonID: lessonID, SublessonID: sublessonID})
}

// UnitKey is LessonKey when sublessonID is empty and SublessonKey otherwise.
func UnitKey(courseID, lessonID, sublessonID string) Key {
	return mustKey(Key{Kind: KindUnit, CourseID: courseID, LessonID: lessonID, SublessonID: sublessonID})
}

// QuizzesKey is the all-quizzes-correct marker of a unit.
func QuizzesKey(courseID, lessonID, sublessonID string) Key {
	return mustKey(Key{Kind: KindQuizzes, CourseID: courseID, LessonID: lessonID, SublessonID: sublessonID})
}

// TasksKey is the all-tasks-correct marker of a unit.
func TasksKey(courseID, lessonID, sublessonID string) Key {
	return mustKey(Key{Kind: KindTasks, CourseID: courseID, LessonID: lessonID, SublessonID: sublessonID})
}

// ExerciseKey is the completion key of a trainer exercise.
func ExerciseKey(exerciseID string) Key {
	return mustKey(Key{Kind: KindExercise, ExerciseID: exerciseID})
}

func mustKey(k Key) Key {
	if err := k.Validate(); err != nil {
		panic("progress: " + err.Error())
	}
	return k
}

// Validate reports whether the key is well formed.
func (k Key) Validate() error {
	switch k.Kind {
	case KindUnit, KindQuizzes, KindTasks:
		if k.CourseID == "" || k.LessonID == "" {
			return fmt.Errorf("%s key needs course and lesson ids", k.Kind)
		}
		if k.ExerciseID != "" {
			return fmt.Errorf("%s key cannot carry an exercise id", k.Kind)
		}
	case KindExercise:
		if k.ExerciseID == "" {
			return fmt.Errorf("exercise key needs an exercise id")
		}
		if k.CourseID != "" || k.LessonID != "" || k.SublessonID != "" {
			return fmt.Errorf("exercise key cannot carry course or lesson ids")
		}
	default:
		return fmt.Errorf("unknown key kind %q", k.Kind)
	}
	return nil
}

// String renders the key in the colon-separated form used by stored data
// from before structured keys, e.g. "py:loops:while:quizzes".
func (k Key) String() string {
	if k.Kind == KindExercise {
		return "exercise:" + k.ExerciseID
	}
	parts := []string{k.CourseID, k.LessonID}
	if k.SublessonID != "" {
		parts = append(parts, k.SublessonID)
	}
	if k.Kind == KindQuizzes || k.Kind == KindTasks {
		parts = append(parts, string(k.Kind))
	}
	return strings.Join(parts, ":")
}

// ParseKey reads the colon-separated form produced by String.
func ParseKey(s string) (Key, error) {
	if id, ok := strings.CutPrefix(s, "exercise:"); ok {
		k := Key{Kind: KindExercise, ExerciseID: id}
		return k, k.Validate()
	}

	parts := strings.Split(s, ":")
	var k Key
	switch len(parts) {
	case 2:
		k = Key{Kind: KindUnit, CourseID: parts[0], LessonID: parts[1]}
	case 3:
		switch Kind(parts[2]) {
		case KindQuizzes, KindTasks:
			k = Key{Kind: Kind(parts[2]), CourseID: parts[0], LessonID: parts[1]}
		default:
			k = Key{Kind: KindUnit, CourseID: parts[0], LessonID: parts[1], SublessonID: parts[2]}
		}
	case 4:
		switch Kind(parts[3]) {
		case KindQuizzes, KindTasks:
			k = Key{Kind: Kind(parts[3]), CourseID: parts[0], LessonID: parts[1], SublessonID: parts[2]}
		default:
			return Key{}, fmt.Errorf("parse key %q: unknown marker %q", s, parts[3])
		}
	default:
		return Key{}, fmt.Errorf("parse key %q: unexpected shape", s)
	}
	if k.SublessonID == "" && len(parts) == 3 && k.Kind == KindUnit {
		return Key{}, fmt.Errorf("parse key %q: empty sub-lesson id", s)
	}
	if len(parts) == 4 && parts[2] == "" {
		return Key{}, fmt.Errorf("parse key %q: empty sub-lesson id", s)
	}
	if err := k.Validate(); err != nil {
		return Key{}, fmt.Errorf("parse key %q: %w", s, err)
	}
	return k, nil
}

// inLesson reports whether k belongs to the lesson or one of its sub-lessons.
func (k Key) inLesson(courseID, lessonID string) bool {
	return k.Kind != KindExercise && k.CourseID == courseID && k.LessonID == lessonID
}

// inUnit reports whether k belongs to exactly the given unit.
func (k Key) inUnit(courseID, lessonID, sublessonID string) bool {
	return k.inLesson(courseID, lessonID) && k.SublessonID == sublessonID
}
