package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/campaign-engine/internal/models"
)

func twoModules() []ResolvedItem {
	return []ResolvedItem{
		{ItemID: "m2", VideoID: "v2", Order: 2},
		{ItemID: "m1", VideoID: "v1", Order: 1, QuestionIDs: []string{"q1", "q2"}},
	}
}

func TestBuildSequenceShape(t *testing.T) {
	seq := BuildSequence(twoModules())

	want := []Slide{
		{Index: 0, Type: SlideVideo, ItemID: "m1", VideoID: "v1"},
		{Index: 1, Type: SlideQuestion, ItemID: "m1", VideoID: "v1", QuestionID: "q1"},
		{Index: 2, Type: SlideQuestion, ItemID: "m1", VideoID: "v1", QuestionID: "q2"},
		{Index: 3, Type: SlideVideo, ItemID: "m2", VideoID: "v2"},
	}
	assert.Equal(t, want, seq.Slides)

	idx, ok := seq.VideoSlideIndex("m2")
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	_, ok = seq.VideoSlideIndex("m9")
	assert.False(t, ok)
}

func TestBuildSequenceEmpty(t *testing.T) {
	seq := BuildSequence(nil)
	assert.Empty(t, seq.Slides)
}

func TestResumeIndex(t *testing.T) {
	seq := BuildSequence(twoModules())

	tests := []struct {
		name        string
		progress    map[string]models.ModuleState
		wantIndex   int
		allComplete bool
	}{
		{
			name:      "fresh learner starts at first video",
			progress:  nil,
			wantIndex: 0,
		},
		{
			name: "video watched resumes at first question",
			progress: map[string]models.ModuleState{
				"m1": {VideoFinished: true, QuestionTarget: 2},
			},
			wantIndex: 1,
		},
		{
			name: "one answered skips to second question",
			progress: map[string]models.ModuleState{
				"m1": {VideoFinished: true, QuestionsAnswered: 1, QuestionTarget: 2},
			},
			wantIndex: 2,
		},
		{
			name: "first module complete resumes at next video",
			progress: map[string]models.ModuleState{
				"m1": {VideoFinished: true, QuestionsAnswered: 2, QuestionTarget: 2, Completed: true},
			},
			wantIndex: 3,
		},
		{
			name: "stale target larger than question list falls back to video",
			progress: map[string]models.ModuleState{
				"m1": {VideoFinished: true, QuestionsAnswered: 2, QuestionTarget: 3},
			},
			wantIndex: 0,
		},
		{
			name: "zero question module completes on video",
			progress: map[string]models.ModuleState{
				"m1": {VideoFinished: true, QuestionsAnswered: 2, QuestionTarget: 2},
				"m2": {VideoFinished: true},
			},
			allComplete: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, done := ResumeIndex(seq, tt.progress)
			assert.Equal(t, tt.allComplete, done)
			if !tt.allComplete {
				assert.Equal(t, tt.wantIndex, idx)
			}
		})
	}
}

// Resume never lands inside a module that is already complete, for every
// combination of per-module progress prefixes.
func TestResumeIndexNeverInsideCompletedModule(t *testing.T) {
	items := []ResolvedItem{
		{ItemID: "a", VideoID: "va", Order: 1, QuestionIDs: []string{"a1", "a2"}},
		{ItemID: "b", VideoID: "vb", Order: 2},
		{ItemID: "c", VideoID: "vc", Order: 3, QuestionIDs: []string{"c1"}},
	}
	seq := BuildSequence(items)

	states := func(q int) []models.ModuleState {
		out := []models.ModuleState{{QuestionTarget: q}}
		for k := 0; k <= q; k++ {
			out = append(out, models.ModuleState{VideoFinished: true, QuestionsAnswered: k, QuestionTarget: q})
		}
		return out
	}

	for _, sa := range states(2) {
		for _, sb := range states(0) {
			for _, sc := range states(1) {
				progress := map[string]models.ModuleState{"a": sa, "b": sb, "c": sc}
				idx, done := ResumeIndex(seq, progress)
				if done {
					for _, item := range items {
						assert.True(t, progress[item.ItemID].IsComplete())
					}
					continue
				}
				slide := seq.Slides[idx]
				assert.False(t, progress[slide.ItemID].IsComplete(), "resumed inside completed module %s", slide.ItemID)
				for _, item := range seq.Items {
					if item.ItemID == slide.ItemID {
						break
					}
					assert.True(t, progress[item.ItemID].IsComplete(), "earlier module %s incomplete", item.ItemID)
				}
			}
		}
	}
}

func TestModulesLockState(t *testing.T) {
	seq := BuildSequence(twoModules())
	views := Modules(seq, map[string]models.ModuleState{
		"m1": {VideoFinished: true, QuestionsAnswered: 1, QuestionTarget: 2},
	})

	require.Len(t, views, 2)
	assert.Equal(t, "answering", views[0].Phase)
	assert.False(t, views[0].Locked)
	assert.Equal(t, "watching", views[1].Phase)
	assert.True(t, views[1].Locked)
}
