package player

import (
	"github.com/learnloop/campaign-engine/internal/models"
)

// ModuleView is the lock and phase state of one module as shown by the player
type ModuleView struct {
	ItemID  string             `json:"itemId"`
	VideoID string             `json:"videoId"`
	Phase   string             `json:"phase"`
	Locked  bool               `json:"locked"`
	State   models.ModuleState `json:"state"`
}

// ResumeIndex returns the slide a returning learner should land on and
// whether every module is already complete. When allComplete is true the
// index is meaningless and callers show the completion view instead.
func ResumeIndex(seq *Sequence, progress map[string]models.ModuleState) (index int, allComplete bool) {
	for _, item := range seq.Items {
		state := progress[item.ItemID]
		videoIdx, _ := seq.VideoSlideIndex(item.ItemID)

		switch state.Phase() {
		case models.PhaseComplete:
			continue
		case models.PhaseWatching:
			return videoIdx, false
		case models.PhaseAnswering:
			answered := state.QuestionsAnswered
			if answered < 0 {
				answered = 0
			}
			if answered < len(item.QuestionIDs) {
				return videoIdx + 1 + answered, false
			}
			// stored target is ahead of the question list; replay the video
			return videoIdx, false
		}
	}
	return 0, true
}

// Modules returns per-module views in sequence order. A module is locked
// while any earlier module is incomplete.
func Modules(seq *Sequence, progress map[string]models.ModuleState) []ModuleView {
	views := make([]ModuleView, 0, len(seq.Items))
	blocked := false
	for _, item := range seq.Items {
		state := progress[item.ItemID]
		phase := state.Phase()
		views = append(views, ModuleView{
			ItemID:  item.ItemID,
			VideoID: item.VideoID,
			Phase:   phase.String(),
			Locked:  blocked,
			State:   state,
		})
		if phase != models.PhaseComplete {
			blocked = true
		}
	}
	return views
}
