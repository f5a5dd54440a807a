package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrNotFound is returned when a course, lesson or exercise does not exist.
	ErrNotFound = errors.New("content not found")
	// ErrInvalid is returned when content fails validation.
	ErrInvalid = errors.New("invalid content")
	// ErrConflict is returned when creating content whose id is taken.
	ErrConflict = errors.New("content id already exists")
)

const quizSchema = `{
  "type": "object",
  "required": ["id", "question", "options", "correct"],
  "properties": {
    "id": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
    "question": {"type": "string", "minLength": 1},
    "options": {"type": "array", "minItems": 2, "items": {"type": "string"}},
    "correct": {"type": "integer", "minimum": 0}
  }
}`

const taskSchema = `{
  "type": "object",
  "required": ["id", "title"],
  "properties": {
    "id": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
    "title": {"type": "string", "minLength": 1},
    "answers": {"type": "array", "items": {"type": "string"}}
  }
}`

var courseSchema = mustSchema(`{
  "type": "object",
  "required": ["id", "title"],
  "definitions": {
    "quiz": ` + quizSchema + `,
    "task": ` + taskSchema + `,
    "sublesson": {
      "type": "object",
      "required": ["id", "title"],
      "properties": {
        "id": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
        "title": {"type": "string", "minLength": 1},
        "quizzes": {"type": ["array", "null"], "items": {"$ref": "#/definitions/quiz"}},
        "tasks": {"type": ["array", "null"], "items": {"$ref": "#/definitions/task"}}
      }
    },
    "lesson": {
      "type": "object",
      "required": ["id", "title"],
      "properties": {
        "id": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
        "title": {"type": "string", "minLength": 1},
        "quizzes": {"type": ["array", "null"], "items": {"$ref": "#/definitions/quiz"}},
        "tasks": {"type": ["array", "null"], "items": {"$ref": "#/definitions/task"}},
        "sublessons": {"type": ["array", "null"], "items": {"$ref": "#/definitions/sublesson"}}
      }
    },
    "module": {
      "type": "object",
      "required": ["id", "title"],
      "properties": {
        "id": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
        "title": {"type": "string", "minLength": 1},
        "lessons": {"type": ["array", "null"], "items": {"$ref": "#/definitions/lesson"}}
      }
    }
  },
  "properties": {
    "id": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
    "title": {"type": "string", "minLength": 1},
    "modules": {"type": ["array", "null"], "items": {"$ref": "#/definitions/module"}}
  }
}`)

var exerciseSchema = mustSchema(`{
  "type": "object",
  "required": ["id", "title", "level"],
  "properties": {
    "id": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
    "title": {"type": "string", "minLength": 1},
    "level": {"type": "integer", "minimum": 1, "maximum": 3},
    "answers": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("content: bad schema: %v", err))
	}
	return schema
}

// ValidateCourse checks a course against the course schema and the rules the
// schema cannot express: unique ids per level and in-range quiz answers.
func ValidateCourse(c Course) error {
	if err := validate(courseSchema, c); err != nil {
		return fmt.Errorf("course %q: %w", c.ID, err)
	}

	var problems []string
	modules := map[string]bool{}
	lessons := map[string]bool{}
	for _, m := range c.Modules {
		if modules[m.ID] {
			problems = append(problems, fmt.Sprintf("duplicate module id %q", m.ID))
		}
		modules[m.ID] = true
		for _, l := range m.Lessons {
			if lessons[l.ID] {
				problems = append(problems, fmt.Sprintf("duplicate lesson id %q", l.ID))
			}
			lessons[l.ID] = true
			problems = append(problems, checkQuizzes(l.ID, l.Quizzes)...)
			subs := map[string]bool{}
			for _, s := range l.Sublessons {
				if subs[s.ID] {
					problems = append(problems, fmt.Sprintf("lesson %q: duplicate sub-lesson id %q", l.ID, s.ID))
				}
				subs[s.ID] = true
				problems = append(problems, checkQuizzes(l.ID+"/"+s.ID, s.Quizzes)...)
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("course %q: %w: %s", c.ID, ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateExercise checks an exercise against the exercise schema.
func ValidateExercise(e Exercise) error {
	if err := validate(exerciseSchema, e); err != nil {
		return fmt.Errorf("exercise %q: %w", e.ID, err)
	}
	return nil
}

func checkQuizzes(where string, quizzes []Quiz) []string {
	var problems []string
	for _, q := range quizzes {
		if q.Correct >= len(q.Options) {
			problems = append(problems, fmt.Sprintf("%s: quiz %q: correct index %d out of range", where, q.ID, q.Correct))
		}
	}
	return problems
}

func validate(schema *gojsonschema.Schema, v any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
