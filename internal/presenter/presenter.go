package presenter

import (
	"strconv"

	"github.com/example/meibo-check/internal/prediction"
)

// Color buckets for the severity grades. Grades outside 0..3 use ColorUnknown.
const (
	ColorGrade0  = "grade-0"
	ColorGrade1  = "grade-1"
	ColorGrade2  = "grade-2"
	ColorGrade3  = "grade-3"
	ColorUnknown = "grade-unknown"
)

var gradeColors = map[int]string{
	0: ColorGrade0,
	1: ColorGrade1,
	2: ColorGrade2,
	3: ColorGrade3,
}

// View holds the display facts for a settled prediction.
type View struct {
	ColorClass     string `json:"color_class"`
	Label          string `json:"label"`
	ConfidenceText string `json:"confidence_text"`
}

// Present maps a result to its view. It never fails.
func Present(result prediction.Result) View {
	return View{
		ColorClass:     ColorClass(result.PredictedGrade),
		Label:          result.PredictedClass,
		ConfidenceText: FormatConfidence(result.Confidence),
	}
}

// ColorClass returns the color bucket for grade.
func ColorClass(grade int) string {
	if color, ok := gradeColors[grade]; ok {
		return color
	}
	return ColorUnknown
}

// FormatConfidence renders confidence as given with a trailing percent sign.
func FormatConfidence(confidence float64) string {
	return strconv.FormatFloat(confidence, 'f', -1, 64) + "%"
}
