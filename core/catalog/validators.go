package catalog

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/eligue/academy/core"
)

var (
	courseTypeTag  = "coursetype"
	courseTypeText = "course type must be one of VIDEO, ARTICLE or PDF"

	correctIndexTag  = "correctindex"
	correctIndexText = "the correct answer must be one of the options"
)

// InitValidators registers the catalog validations & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseTypeTag, courseTypeValidation)
	core.RegisterCustomTranslation(validate, translator, courseTypeTag, courseTypeText)

	validate.RegisterStructValidation(questionStructValidation, Question{})
	core.RegisterCustomTranslation(validate, translator, correctIndexTag, correctIndexText)
}

func courseTypeValidation(fl validator.FieldLevel) bool {
	return CourseType(fl.Field().String()).IsValid()
}

// questionStructValidation checks that CorrectAnswerIndex points to an option.
func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(Question)
	if !ok {
		return
	}
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
		sl.ReportError(q.CorrectAnswerIndex, "correct_answer_index", "CorrectAnswerIndex", correctIndexTag, "")
	}
}
