package model

// Named tests recorded as scored test results. Every other test name is a
// skill badge.
const (
	TestNameGeneralAptitude = "General Aptitude Test"
	TestNameTechnical       = "Technical Test"
)

// PassMark is the inclusive score needed for a 'P' status.
const PassMark = 70.0

// TestDefinition is the question set and metadata of a named test as served
// by GET /test/getTestByName/{testName}.
type TestDefinition struct {
	TestName          string     `json:"testName,omitempty"`
	Questions         []Question `json:"questions"`
	Duration          int        `json:"duration"`
	NumberOfQuestions int        `json:"numberOfQuestions"`
	TopicsCovered     []string   `json:"topicsCovered"`
}

// Question is a single-select question. Answer is the canonical correct
// option string; a selection is correct only on exact string equality.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// QuestionForLearner is a question without the correct answer.
type QuestionForLearner struct {
	Index    int      `json:"index"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// IsScoredTest reports whether the test persists through the test-result
// endpoint rather than as a skill badge.
func IsScoredTest(testName string) bool {
	return testName == TestNameGeneralAptitude || testName == TestNameTechnical
}

// TestStats is what the instructions page shows before the learner starts.
type TestStats struct {
	TestName          string   `json:"test_name"`
	NumberOfQuestions int      `json:"number_of_questions"`
	BackendDuration   int      `json:"backend_duration"`
	DurationSeconds   int      `json:"duration_seconds"`
	TopicsCovered     []string `json:"topics_covered"`
}
