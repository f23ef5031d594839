package apkg

import (
	"time"

	"github.com/conorfennell/blonki/internal/snapshot"
)

const (
	modelID        = 1
	deckConfigID   = 1
	schemaVersion  = 11
	collectionRow  = 1
	basicAnswerFmt = "{{FrontSide}}\n\n<hr id=answer>\n\n{{Back}}"
	basicCSS       = ".card {\n font-family: arial;\n font-size: 20px;\n text-align: center;\n color: black;\n background-color: white;\n}\n"
	latexPre       = "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n"
	latexPost      = "\\end{document}"
)

// basicModel is the two-field front/back note type every exported note uses.
func basicModel(deckID int64, now time.Time) snapshot.Model {
	field := func(name string, ord int) snapshot.Field {
		return snapshot.Field{Name: name, Ord: ord, Font: "Arial", Size: 20, Media: []any{}}
	}
	return snapshot.Model{
		ID:    modelID,
		Name:  "Basic",
		Type:  0,
		Mod:   now.Unix(),
		Sortf: 0,
		Did:   deckID,
		Tmpls: []snapshot.Template{{
			Name: "Card 1",
			Ord:  0,
			Qfmt: "{{Front}}",
			Afmt: basicAnswerFmt,
		}},
		Flds:      []snapshot.Field{field("Front", 0), field("Back", 1)},
		CSS:       basicCSS,
		LatexPre:  latexPre,
		LatexPost: latexPost,
		Req:       [][]any{{0, "all", []int{0}}},
		Tags:      []string{},
		Vers:      []any{},
	}
}

func defaultDeckConfig() snapshot.DeckConfig {
	return snapshot.DeckConfig{
		New:      snapshot.NewConfig{PerDay: 20, Delays: []int{1, 10}},
		Rev:      snapshot.RevConfig{PerDay: 200, Fuzz: 0.1, IvlFct: 1, MaxIvl: 36500, Ease4: 1.3, Bury: true},
		Lapse:    snapshot.LapseConfig{LeechFails: 8, Delays: []int{10}, LeechAction: 0},
		Dyn:      false,
		Autoplay: true,
		Timer:    0,
		Replayq:  true,
		Mod:      0,
	}
}

func defaultCollectionConfig(deckID int64) snapshot.CollectionConfig {
	return snapshot.CollectionConfig{
		NextPos:      1,
		EstTimes:     true,
		ActiveDecks:  []int64{deckID},
		CurDeck:      deckID,
		NewBury:      true,
		DueCounts:    true,
		CurModel:     modelID,
		CollapseTime: 1200,
		AddToCur:     true,
		LearnCutoff:  20,
		LeechFails:   8,
		MaxTaken:     60,
	}
}
