// Package player turns a campaign into the linear slide sequence a learner
// plays through and works out where a returning learner resumes.
package player

import (
	"sort"
)

// SlideType distinguishes video slides from question slides
type SlideType string

const (
	SlideVideo    SlideType = "video"
	SlideQuestion SlideType = "question"
)

// Slide is one position in the global sequence
type Slide struct {
	Index      int       `json:"index"`
	Type       SlideType `json:"type"`
	ItemID     string    `json:"itemId"`
	VideoID    string    `json:"videoId"`
	QuestionID string    `json:"questionId,omitempty"`
}

// ResolvedItem is a campaign item joined with its video's ordered question ids
type ResolvedItem struct {
	ItemID      string
	VideoID     string
	Order       int
	QuestionIDs []string
}

// Sequence is the flat slide list plus the position of each module's video slide
type Sequence struct {
	Slides []Slide
	Items  []ResolvedItem

	videoIndex map[string]int
}

// BuildSequence lays items out as video, its questions, next video, ... with
// zero-based global indices. Items are ordered by Order; ties keep input order.
func BuildSequence(items []ResolvedItem) *Sequence {
	ordered := make([]ResolvedItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	seq := &Sequence{
		Items:      ordered,
		videoIndex: make(map[string]int, len(ordered)),
	}
	for _, item := range ordered {
		seq.videoIndex[item.ItemID] = len(seq.Slides)
		seq.Slides = append(seq.Slides, Slide{
			Index:   len(seq.Slides),
			Type:    SlideVideo,
			ItemID:  item.ItemID,
			VideoID: item.VideoID,
		})
		for _, questionID := range item.QuestionIDs {
			seq.Slides = append(seq.Slides, Slide{
				Index:      len(seq.Slides),
				Type:       SlideQuestion,
				ItemID:     item.ItemID,
				VideoID:    item.VideoID,
				QuestionID: questionID,
			})
		}
	}
	return seq
}

// VideoSlideIndex returns the global index of an item's video slide
func (s *Sequence) VideoSlideIndex(itemID string) (int, bool) {
	idx, ok := s.videoIndex[itemID]
	return idx, ok
}
