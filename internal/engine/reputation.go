package engine

// Reputation scoring constants. Each component is capped independently; the
// construction bounds the total at 1000.
const (
	completionWeight = 500 // perfect completion rate
	volumeStep       = 100 // units of volume per bracket
	volumePoints     = 30  // points per volume bracket
	volumeCap        = 300
	stakePoints      = 10 // points per staked unit
	stakeCap         = 200
	newcomerCap      = 200 // agents with no history are judged on collateral alone
)

// Score derives the bounded reputation score from an agent's accumulated
// statistics. It is a pure function: same agent snapshot, same score.
//
// Agents with no deal history score on stake alone, capped at 200. Otherwise
// the score is the sum of a completion-rate component (integer division, so a
// high but imperfect rate never rounds up), a volume component, and a stake
// component.
func Score(a Agent) int {
	stake := stakeScore(a.Staked)

	total := a.DealsCompleted + a.DealsFailed
	if total == 0 {
		if stake > newcomerCap {
			return newcomerCap
		}
		return stake
	}

	completion := int(a.DealsCompleted * completionWeight / total)

	volume := volumeCap
	if a.TotalVolume < volumeStep*(volumeCap/volumePoints) {
		volume = int(a.TotalVolume/volumeStep) * volumePoints
	}

	return completion + volume + stake
}

func stakeScore(staked uint64) int {
	if staked >= stakeCap/stakePoints {
		return stakeCap
	}
	return int(staked) * stakePoints
}

// GetReputation returns the agent's reputation score. An unregistered
// identity scores 0: a defined default for outsiders, not an error.
func (e *Engine) GetReputation(identity string) int {
	a, ok := e.GetAgent(identity)
	if !ok {
		return 0
	}
	return Score(a)
}
