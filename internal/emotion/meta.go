package emotion

import "fmt"

// EmotionType is the fixed label set produced by the face-expression model.
type EmotionType string

const (
	Happy     EmotionType = "happy"
	Sad       EmotionType = "sad"
	Angry     EmotionType = "angry"
	Surprised EmotionType = "surprised"
	Fearful   EmotionType = "fearful"
	Disgusted EmotionType = "disgusted"
	Neutral   EmotionType = "neutral"
)

var AllEmotions = []EmotionType{Happy, Sad, Angry, Surprised, Fearful, Disgusted, Neutral}

func (e EmotionType) Valid() bool {
	for _, known := range AllEmotions {
		if e == known {
			return true
		}
	}
	return false
}

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Descriptor is the static UI metadata for one emotion label.
type Descriptor struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
	Suggestions []string `json:"suggestions"`
}

// Metadata maps every emotion label to its descriptor. Init() refuses to start
// the server if a label is missing here, so handlers can index it freely.
var Metadata = map[EmotionType]Descriptor{
	Happy: {
		Label:       "Happy",
		Description: "Positive affect: raised cheeks, crow's feet, upturned mouth corners.",
		Icon:        "😊",
		Color:       "#FFD166",
		Suggestions: []string{"Keep doing what you're doing", "Share the moment"},
	},
	Sad: {
		Label:       "Sad",
		Description: "Low affect: drooping eyelids, downturned mouth corners, raised inner brows.",
		Icon:        "😢",
		Color:       "#118AB2",
		Suggestions: []string{"Take a short break", "Reach out to someone you trust"},
	},
	Angry: {
		Label:       "Angry",
		Description: "High arousal negative affect: lowered brows, tightened lips, glaring eyes.",
		Icon:        "😠",
		Color:       "#EF476F",
		Suggestions: []string{"Pause before responding", "Try a slow breathing exercise"},
	},
	Surprised: {
		Label:       "Surprised",
		Description: "Brief high arousal: raised brows, widened eyes, dropped jaw.",
		Icon:        "😮",
		Color:       "#9B5DE5",
		Suggestions: []string{"Give yourself a moment to process"},
	},
	Fearful: {
		Label:       "Fearful",
		Description: "Threat response: raised and drawn brows, stretched lips, widened eyes.",
		Icon:        "😨",
		Color:       "#8338EC",
		Suggestions: []string{"Ground yourself: name five things you can see", "Step away from the stressor"},
	},
	Disgusted: {
		Label:       "Disgusted",
		Description: "Aversion: wrinkled nose, raised upper lip, lowered brows.",
		Icon:        "🤢",
		Color:       "#06D6A0",
		Suggestions: []string{"Identify and remove the trigger if you can"},
	},
	Neutral: {
		Label:       "Neutral",
		Description: "Resting expression with no dominant affect signal.",
		Icon:        "😐",
		Color:       "#8D99AE",
		Suggestions: []string{"Nothing to act on"},
	},
}

// checkMetadata verifies the descriptor map covers the enum exactly, so an
// unhandled label is a startup failure instead of a runtime nil.
func checkMetadata() error {
	for _, e := range AllEmotions {
		if _, ok := Metadata[e]; !ok {
			return fmt.Errorf("emotion %q has no metadata descriptor", e)
		}
	}
	if len(Metadata) != len(AllEmotions) {
		return fmt.Errorf("metadata has %d entries, enum has %d", len(Metadata), len(AllEmotions))
	}
	return nil
}
