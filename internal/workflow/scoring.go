package workflow

import (
	"fmt"
	"math"
)

// ValidateScore 校验分数范围与粒度
func ValidateScore(policy Policy, score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return invalidField("score", "必须为有效数字")
	}
	if score < policy.ScoreMin || score > policy.ScoreMax {
		return invalidField("score", fmt.Sprintf("必须在 [%g, %g] 之间", policy.ScoreMin, policy.ScoreMax))
	}
	if policy.ScoreStep > 0 {
		steps := (score - policy.ScoreMin) / policy.ScoreStep
		if math.Abs(steps-math.Round(steps)) > 1e-9 {
			return invalidField("score", fmt.Sprintf("粒度必须为 %g", policy.ScoreStep))
		}
	}
	return nil
}

// MeanScore 算术平均并保留两位小数，所有评委权重相同
func MeanScore(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return Round2(sum / float64(len(scores)))
}

// FinalScore 全部评委都已打分时返回最终成绩
func FinalScore(juryIDs []string, scores map[string]float64) (float64, bool) {
	if len(juryIDs) == 0 {
		return 0, false
	}
	for _, id := range juryIDs {
		if _, ok := scores[id]; !ok {
			return 0, false
		}
	}
	return MeanScore(scores), true
}

// Round2 四舍五入到两位小数
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
