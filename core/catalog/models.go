package catalog

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/eligue/academy/core"
)

const (
	// DefaultPassingScore is given to the exam created along with a new part.
	DefaultPassingScore = 80
	examTitlePrefix     = "Examen - "
)

type Formation struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PartIDs     []int  `json:"part_ids"` // ordered
	ImageURL    string `json:"image_url,omitempty"`
}

// Part is an ordered group of courses closed by exactly one exam.
type Part struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	CourseIDs []int  `json:"course_ids"` // ordered
	ExamID    int    `json:"exam_id"`
}

type Question struct {
	ID                 int      `json:"id" validate:"gte=0"`
	Text               string   `json:"text" validate:"required,notblank"`
	Options            []string `json:"options" validate:"required,min=1,dive,required"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
}

// PublicQuestion is a Question without its answer.
type PublicQuestion struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Text: q.Text, Options: q.Options}
}

// Answers maps a question ID to the index of the chosen option.
type Answers map[int]int

// IsCorrect tells whether the question was answered with the right option. An unanswered question is wrong.
func (a Answers) IsCorrect(q Question) bool {
	idx, ok := a[q.ID]
	return ok && idx == q.CorrectAnswerIndex
}

type Course struct {
	ID                 int        `json:"id"`
	Title              string     `json:"title"`
	Content            Content    `json:"-"`
	QuickTestQuestions []Question `json:"quick_test_questions"`
}

func (c Course) Type() CourseType {
	if c.Content == nil {
		return ""
	}
	return c.Content.Type()
}

type courseJSON struct {
	ID                 int        `json:"id"`
	Title              string     `json:"title"`
	Type               CourseType `json:"type"`
	Content            string     `json:"content"`
	YouTubeID          string     `json:"youtube_id,omitempty"`
	QuickTestQuestions []Question `json:"quick_test_questions"`
}

func (c Course) MarshalJSON() ([]byte, error) {
	aux := courseJSON{
		ID:                 c.ID,
		Title:              c.Title,
		Type:               c.Type(),
		QuickTestQuestions: c.QuickTestQuestions,
	}
	if c.Content != nil {
		aux.Content = c.Content.Raw()
	}
	if v, ok := c.Content.(VideoContent); ok {
		aux.YouTubeID = v.YouTubeID()
	}
	if aux.QuickTestQuestions == nil {
		aux.QuickTestQuestions = []Question{}
	}
	return json.Marshal(aux)
}

func (c *Course) UnmarshalJSON(data []byte) error {
	var aux courseJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	content, err := NewContent(aux.Type, aux.Content)
	if err != nil {
		return err
	}
	*c = Course{
		ID:                 aux.ID,
		Title:              aux.Title,
		Content:            content,
		QuickTestQuestions: aux.QuickTestQuestions,
	}
	return nil
}

// PassesQuickTest is true when every quick test question is answered correctly.
// Courses without quick test always pass.
func (c Course) PassesQuickTest(answers Answers) bool {
	for _, q := range c.QuickTestQuestions {
		if !answers.IsCorrect(q) {
			return false
		}
	}
	return true
}

// Public hides the quick test answers.
func (c Course) Public() PublicCourse {
	pc := PublicCourse{
		ID:                 c.ID,
		Title:              c.Title,
		Type:               c.Type(),
		QuickTestQuestions: make([]PublicQuestion, 0, len(c.QuickTestQuestions)),
	}
	if c.Content != nil {
		pc.Content = c.Content.Raw()
	}
	if v, ok := c.Content.(VideoContent); ok {
		pc.YouTubeID = v.YouTubeID()
	}
	for _, q := range c.QuickTestQuestions {
		pc.QuickTestQuestions = append(pc.QuickTestQuestions, q.Public())
	}
	return pc
}

type PublicCourse struct {
	ID                 int              `json:"id"`
	Title              string           `json:"title"`
	Type               CourseType       `json:"type"`
	Content            string           `json:"content"`
	YouTubeID          string           `json:"youtube_id,omitempty"`
	QuickTestQuestions []PublicQuestion `json:"quick_test_questions"`
}

type Exam struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	Questions    []Question `json:"questions"`
	PassingScore int        `json:"passing_score"` // 0..100
}

// PublicExam is an Exam as shown to a learner taking it.
type PublicExam struct {
	ID           int              `json:"id"`
	Title        string           `json:"title"`
	Questions    []PublicQuestion `json:"questions"`
	PassingScore int              `json:"passing_score"`
}

func (e Exam) Public() PublicExam {
	pe := PublicExam{
		ID:           e.ID,
		Title:        e.Title,
		Questions:    make([]PublicQuestion, 0, len(e.Questions)),
		PassingScore: e.PassingScore,
	}
	for _, q := range e.Questions {
		pe.Questions = append(pe.Questions, q.Public())
	}
	return pe
}

// PartDetail is a Part with its courses & exam resolved.
type PartDetail struct {
	Part
	Courses []Course `json:"courses"`
	Exam    Exam     `json:"exam"`
}

// FormationDetail is a Formation with its parts resolved, in order.
type FormationDetail struct {
	Formation
	Parts []PartDetail `json:"parts"`
}

// PartList returns the bare parts, in order.
func (fd FormationDetail) PartList() []Part {
	parts := make([]Part, 0, len(fd.Parts))
	for _, p := range fd.Parts {
		parts = append(parts, p.Part)
	}
	return parts
}

// FindCourse returns the index of the part holding courseID.
func (fd FormationDetail) FindCourse(courseID int) (int, Course, bool) {
	for i, p := range fd.Parts {
		for _, c := range p.Courses {
			if c.ID == courseID {
				return i, c, true
			}
		}
	}
	return -1, Course{}, false
}

// FindPart returns the index of partID in the formation.
func (fd FormationDetail) FindPart(partID int) (int, PartDetail, bool) {
	for i, p := range fd.Parts {
		if p.ID == partID {
			return i, p, true
		}
	}
	return -1, PartDetail{}, false
}

// TotalCourses counts the courses of every part.
func (fd FormationDetail) TotalCourses() int {
	var total int
	for _, p := range fd.Parts {
		total += len(p.CourseIDs)
	}
	return total
}

// Inputs

type FormationInput struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

func (in *FormationInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.Description = core.CleanString(in.Description)
	in.ImageURL = core.CleanString(in.ImageURL)
	return validate.Struct(in)
}

type PartInput struct {
	Title string `json:"title" validate:"required,notblank"`
}

func (in *PartInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	return validate.Struct(in)
}

type CourseInput struct {
	Title              string     `json:"title" validate:"required,notblank"`
	Type               CourseType `json:"type" validate:"required,coursetype"`
	Content            string     `json:"content" validate:"required,notblank"`
	QuickTestQuestions []Question `json:"quick_test_questions" validate:"dive"`
}

func (in *CourseInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.Type = CourseType(strings.ToUpper(core.CleanString(string(in.Type))))
	return validate.Struct(in)
}

// Course builds the course described by the input.
func (in CourseInput) Course(id int) (Course, error) {
	content, err := NewContent(in.Type, in.Content)
	if err != nil {
		return Course{}, errors.Wrap(err, "building course content")
	}
	return Course{ID: id, Title: in.Title, Content: content, QuickTestQuestions: numberQuestions(in.QuickTestQuestions)}, nil
}

type ExamInput struct {
	Title        string     `json:"title" validate:"required,notblank"`
	PassingScore int        `json:"passing_score" validate:"gte=0,lte=100"`
	Questions    []Question `json:"questions" validate:"dive"`
}

func (in *ExamInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	return validate.Struct(in)
}

// numberQuestions gives an ID to questions lacking one, unique within the list.
func numberQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	var maxID int
	for _, q := range out {
		if q.ID > maxID {
			maxID = q.ID
		}
	}
	seen := make(map[int]bool, len(out))
	for i := range out {
		if out[i].ID == 0 || seen[out[i].ID] {
			maxID++
			out[i].ID = maxID
		}
		seen[out[i].ID] = true
	}
	return out
}
