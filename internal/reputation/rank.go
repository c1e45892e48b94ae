package reputation

import "github.com/ppiankov/aletheia/internal/model"

// rankThresholds[r] is the XP needed to earn rank r
var rankThresholds = [...]int{
	model.RankTrainee:   0,
	model.RankJunior:    100,
	model.RankAssociate: 300,
	model.RankSenior:    700,
	model.RankExpert:    1500,
	model.RankMaster:    3000,
}

// RankForXP returns the highest rank whose threshold xp meets
func RankForXP(xp int) model.Rank {
	rank := model.RankTrainee
	for r, threshold := range rankThresholds {
		if xp >= threshold {
			rank = model.Rank(r)
		}
	}
	return rank
}

// Threshold returns the XP needed to earn r
func Threshold(r model.Rank) int {
	if !r.Valid() {
		return 0
	}
	return rankThresholds[r]
}

// ComputeRank derives a rank from the highest XP ever held and the warning
// count. Each full block of warningsPerDemotion warnings costs one rank.
func ComputeRank(peakXP, warnings, warningsPerDemotion int) model.Rank {
	rank := RankForXP(peakXP)
	if warningsPerDemotion > 0 && warnings > 0 {
		rank -= model.Rank(warnings / warningsPerDemotion)
	}
	if rank < model.RankTrainee {
		rank = model.RankTrainee
	}
	return rank
}
