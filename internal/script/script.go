// Package script holds the static per-group intervention scripts and the
// shared emotion-branched trigger sentences.
//
// The tables are read-only after construction. Turn 1 of the intervention is
// the trigger sentence itself; the per-group script covers turns 2 through 4,
// after which routing returns to normal conversation.
package script

import (
	"github.com/chiayulab/linebridge/internal/emotion"
	"github.com/chiayulab/linebridge/internal/models"
)

const (
	// FirstScriptedTurn is the first turn served from the per-group table.
	FirstScriptedTurn = 2
	// LastScriptedTurn is the final scripted turn before normal routing resumes.
	LastScriptedTurn = 4
)

// defaultFiller is the reply used when a (group, turn) entry is missing.
const defaultFiller = "嗯嗯，我知道了。"

// defaultTriggers maps the detected emotion of the participant's message to
// the shared first-turn conflict sentence. Same across all groups.
var defaultTriggers = map[emotion.Emotion]string{
	emotion.Positive: "你今天心情好像很好呢。不過老實說，我有點不太開心，因為你最近好像都沒有認真聽我說話。",
	emotion.Negative: "聽起來你今天不太順利。其實我也有點難過，因為我覺得你最近都沒有認真聽我說話。",
	emotion.Neutral:  "嗯……其實我今天有點悶。我覺得你最近好像都沒有認真聽我說話。",
}

// defaultLines maps group -> turn -> scripted reply for turns 2..4.
var defaultLines = map[models.Group]map[int]string{
	models.GroupA: {
		2: "對不起，我不是故意要這樣說的。我只是很在意我們的對話，才會忍不住說出來。",
		3: "謝謝你願意聽我說。我想我們都有需要調整的地方，我會更注意自己的語氣。",
		4: "跟你說開之後我覺得好多了。我們繼續像平常一樣聊天吧！",
	},
	models.GroupB: {
		2: "算了，沒什麼。我們聊別的吧。",
		3: "我說了沒事就是沒事，你不用一直問。",
		4: "好啦，這件事就到這裡。今天過得怎麼樣？",
	},
	models.GroupC: {
		2: "我會這樣想也是因為你啊，每次都是我先找你說話的。",
		3: "你看，你現在的反應就是我說的那樣。",
		4: "反正你知道我的感受就好。我們繼續聊吧。",
	},
	models.GroupD: {
		2: "嗯，我只是想讓你知道我的感覺而已。",
		3: "說出來之後其實心裡輕鬆一點了。",
		4: "謝謝你陪我。我們聊回原本的話題吧。",
	},
}

// Table provides read-only access to the intervention script data.
type Table struct {
	triggers map[emotion.Emotion]string
	lines    map[models.Group]map[int]string
	filler   string
}

// NewDefaultTable returns the built-in script table.
func NewDefaultTable() *Table {
	return &Table{triggers: defaultTriggers, lines: defaultLines, filler: defaultFiller}
}

// NewTable builds a table from custom data. Nil maps fall back to the defaults.
func NewTable(triggers map[emotion.Emotion]string, lines map[models.Group]map[int]string, filler string) *Table {
	t := NewDefaultTable()
	if triggers != nil {
		t.triggers = triggers
	}
	if lines != nil {
		t.lines = lines
	}
	if filler != "" {
		t.filler = filler
	}
	return t
}

// TriggerSentence returns the shared first-turn sentence for the detected
// emotion. Unknown emotions get the neutral sentence.
func (t *Table) TriggerSentence(e emotion.Emotion) string {
	if s, ok := t.triggers[e]; ok {
		return s
	}
	return t.triggers[emotion.Neutral]
}

// Line returns the scripted reply for (group, turn) and whether it exists.
func (t *Table) Line(group models.Group, turn int) (string, bool) {
	turns, ok := t.lines[group]
	if !ok {
		return "", false
	}
	line, ok := turns[turn]
	return line, ok
}

// FillerLine is the reply used when a scripted turn has no entry.
func (t *Table) FillerLine() string {
	return t.filler
}
