package attempt

import "github.com/bitlabs/talentstream-proctor/internal/model"

// Score grades selections against canonical answers. Unanswered indices are
// incorrect and an empty question set scores 0.
func Score(questions []model.Question, selected map[int]string) model.ScoreResult {
	res := model.ScoreResult{Total: len(questions), Status: model.TestStatusFail}
	for i, q := range questions {
		if ans, ok := selected[i]; ok && ans == q.Answer {
			res.Correct++
		}
	}
	if res.Total > 0 {
		res.Score = float64(res.Correct) * 100 / float64(res.Total)
	}
	res.Status = StatusFor(res.Score)
	return res
}

// StatusFor applies the inclusive pass mark.
func StatusFor(score float64) model.TestStatus {
	if score >= model.PassMark {
		return model.TestStatusPass
	}
	return model.TestStatusFail
}

// ExitResult is recorded when the learner leaves before finishing.
func ExitResult(total int) model.ScoreResult {
	return model.ScoreResult{Total: total, Score: 0, Status: model.TestStatusFail}
}

// Classify returns the grid class of question index.
func Classify(index, current int, selected map[int]string, visited map[int]bool) model.QuestionState {
	switch {
	case index == current:
		return model.QuestionCurrent
	case selected[index] != "":
		return model.QuestionAnswered
	case visited[index]:
		return model.QuestionNotAnswered
	default:
		return model.QuestionNotVisited
	}
}
