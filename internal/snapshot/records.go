package snapshot

// Snapshot is the full content of one exported collection database.
type Snapshot struct {
	Collection CollectionRow
	Decks      []DeckRow
	Notes      []NoteRow
	Cards      []CardRow
}

// CollectionRow is the singleton row of the col table. The JSON columns are
// stored pre-encoded.
type CollectionRow struct {
	ID     int64  `db:"id"`
	Crt    int64  `db:"crt"`
	Mod    int64  `db:"mod"`
	Scm    int64  `db:"scm"`
	Ver    int    `db:"ver"`
	Dty    int    `db:"dty"`
	Usn    int    `db:"usn"`
	Ls     int64  `db:"ls"`
	Conf   string `db:"conf"`
	Models string `db:"models"`
	Decks  string `db:"decks"`
	Dconf  string `db:"dconf"`
	Tags   string `db:"tags"`
}

type DeckRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	MtimeSecs int64  `db:"mtime_secs"`
	Usn       int    `db:"usn"`
	Config    string `db:"config"`
	Desc      string `db:"desc"`
}

// NoteRow is one row of the notes table. Flds holds the unit-separated fields.
type NoteRow struct {
	ID    int64  `db:"id"`
	GUID  string `db:"guid"`
	Mid   int64  `db:"mid"`
	Mod   int64  `db:"mod"`
	Usn   int    `db:"usn"`
	Tags  string `db:"tags"`
	Flds  string `db:"flds"`
	Sfld  string `db:"sfld"`
	Csum  int64  `db:"csum"`
	Flags int    `db:"flags"`
	Data  string `db:"data"`
}

// CardRow is one row of the cards table.
type CardRow struct {
	ID     int64  `db:"id"`
	Nid    int64  `db:"nid"`
	Did    int64  `db:"did"`
	Ord    int    `db:"ord"`
	Mod    int64  `db:"mod"`
	Usn    int    `db:"usn"`
	Type   int    `db:"type"`
	Queue  int    `db:"queue"`
	Due    int64  `db:"due"`
	Ivl    int    `db:"ivl"`
	Factor int    `db:"factor"`
	Reps   int    `db:"reps"`
	Lapses int    `db:"lapses"`
	Left   int    `db:"left"`
	Odue   int64  `db:"odue"`
	Odid   int64  `db:"odid"`
	Flags  int    `db:"flags"`
	Data   string `db:"data"`
}

// Model is a note type as stored in col.models, keyed by its id.
type Model struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      int        `json:"type"`
	Mod       int64      `json:"mod"`
	Usn       int        `json:"usn"`
	Sortf     int        `json:"sortf"`
	Did       int64      `json:"did"`
	Tmpls     []Template `json:"tmpls"`
	Flds      []Field    `json:"flds"`
	CSS       string     `json:"css"`
	LatexPre  string     `json:"latexPre"`
	LatexPost string     `json:"latexPost"`
	LatexSvg  bool       `json:"latexsvg"`
	Req       [][]any    `json:"req"`
	Tags      []string   `json:"tags"`
	Vers      []any      `json:"vers"`
}

type Template struct {
	Name  string `json:"name"`
	Ord   int    `json:"ord"`
	Qfmt  string `json:"qfmt"`
	Afmt  string `json:"afmt"`
	Did   *int64 `json:"did"`
	Bqfmt string `json:"bqfmt"`
	Bafmt string `json:"bafmt"`
}

type Field struct {
	Name   string `json:"name"`
	Ord    int    `json:"ord"`
	Sticky bool   `json:"sticky"`
	RTL    bool   `json:"rtl"`
	Font   string `json:"font"`
	Size   int    `json:"size"`
	Media  []any  `json:"media"`
}

// DeckEntry is one value of col.decks.
type DeckEntry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	Mod       int64  `json:"mod"`
	Usn       int    `json:"usn"`
	Conf      int64  `json:"conf"`
	Dyn       int    `json:"dyn"`
	Collapsed bool   `json:"collapsed"`
	ExtendNew int    `json:"extendNew"`
	ExtendRev int    `json:"extendRev"`
}

// DeckConfig holds the review limits stored per deck and in col.dconf.
type DeckConfig struct {
	New      NewConfig   `json:"new"`
	Rev      RevConfig   `json:"rev"`
	Lapse    LapseConfig `json:"lapse"`
	Dyn      bool        `json:"dyn"`
	Autoplay bool        `json:"autoplay"`
	Timer    int         `json:"timer"`
	Replayq  bool        `json:"replayq"`
	Mod      int64       `json:"mod"`
}

type NewConfig struct {
	PerDay int   `json:"perDay"`
	Delays []int `json:"delays"`
}

type RevConfig struct {
	PerDay int     `json:"perDay"`
	Fuzz   float64 `json:"fuzz"`
	IvlFct float64 `json:"ivlFct"`
	MaxIvl int     `json:"maxIvl"`
	Ease4  float64 `json:"ease4"`
	Bury   bool    `json:"bury"`
}

type LapseConfig struct {
	LeechFails  int   `json:"leechFails"`
	Delays      []int `json:"delays"`
	LeechAction int   `json:"leechAction"`
}

// CollectionConfig is the col.conf settings blob.
type CollectionConfig struct {
	NextPos          int     `json:"nextPos"`
	EstTimes         bool    `json:"estTimes"`
	ActiveDecks      []int64 `json:"activeDecks"`
	CurDeck          int64   `json:"curDeck"`
	NewBury          bool    `json:"newBury"`
	TimeLim          int     `json:"timeLim"`
	NewSpread        int     `json:"newSpread"`
	DueCounts        bool    `json:"dueCounts"`
	CurModel         int64   `json:"curModel"`
	CollapseTime     int     `json:"collapseTime"`
	AddToCur         bool    `json:"addToCur"`
	DayLearnFirst    bool    `json:"dayLearnFirst"`
	NewMix           int     `json:"newMix"`
	LearnCutoff      int     `json:"learnCutoff"`
	LeechFails       int     `json:"leechFails"`
	Disp             int     `json:"disp"`
	MaxTaken         int     `json:"maxTaken"`
	NewSort          int     `json:"newSort"`
	NewPerDayMinimum int     `json:"newPerDayMinimum"`
}
