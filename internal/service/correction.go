package service

import (
	"strings"

	"go.uber.org/zap"

	"surveysearch/internal/model"
	"surveysearch/internal/utils"
)

// Filter slots a keyword can be lifted into.
const (
	SlotGender    = "gender"
	SlotAgeBucket = "age_bucket"
	SlotRegion    = "region"
)

// Correction actions.
const (
	ActionMoved         = "moved"
	ActionDeduplicated  = "deduplicated"
	ActionCanonicalised = "canonicalised"
	ActionDropped       = "dropped"
	ActionConflict      = "conflict"
)

// Correction records one change the corrector made to a parsed query.
type Correction struct {
	Slot   string `json:"slot"`
	Token  string `json:"token"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
	Action string `json:"action"`
}

// Corrector lifts structured predicates that the parser left among the
// semantic keywords (a region name, an age decade, a gender term) into
// filters, and canonicalises the filters themselves. Running it on its own
// output changes nothing.
type Corrector struct {
	lexicon  *utils.Lexicon
	logger   *zap.Logger
	observer RetrievalObserver
}

func NewCorrector(lexicon *utils.Lexicon, logger *zap.Logger, observer RetrievalObserver) *Corrector {
	if lexicon == nil {
		lexicon = utils.DefaultLexicon()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Corrector{lexicon: lexicon, logger: logger, observer: observerOrNoop(observer)}
}

type liftedToken struct {
	slot  string
	value string
}

// Correct returns a corrected copy of q and the list of changes.
func (c *Corrector) Correct(q model.ParsedQuery) (model.ParsedQuery, []Correction) {
	out := q.Clone()
	var changes []Correction

	changes = append(changes, c.canonicaliseFilters(&out.Filters)...)

	var kept []string
	for _, raw := range out.SemanticKeywords {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			continue
		}
		lifted, ok := c.classify(kw)
		if !ok {
			kept = append(kept, kw)
			continue
		}

		var conflicts []Correction
		var applied []Correction
		for _, tok := range lifted {
			slot := filterSlot(&out.Filters, tok.slot)
			switch {
			case *slot == nil:
				applied = append(applied, Correction{Slot: tok.slot, Token: kw, After: tok.value, Action: ActionMoved})
			case **slot == tok.value:
				applied = append(applied, Correction{Slot: tok.slot, Token: kw, Before: **slot, After: tok.value, Action: ActionDeduplicated})
			default:
				conflicts = append(conflicts, Correction{Slot: tok.slot, Token: kw, Before: **slot, After: tok.value, Action: ActionConflict})
			}
		}

		// A keyword is lifted as a unit or not at all.
		if len(conflicts) > 0 {
			kept = append(kept, kw)
			changes = append(changes, conflicts...)
			continue
		}
		for _, ch := range applied {
			if ch.Action == ActionMoved {
				v := ch.After
				*filterSlot(&out.Filters, ch.Slot) = &v
			}
		}
		changes = append(changes, applied...)
	}
	out.SemanticKeywords = kept

	for _, ch := range changes {
		c.log(ch)
	}
	return out, changes
}

// classify maps a whole keyword, or every word of a multi-word keyword, to
// filter slots.
func (c *Corrector) classify(kw string) ([]liftedToken, bool) {
	if tok, ok := c.classifyToken(kw); ok {
		return []liftedToken{tok}, true
	}
	words := strings.Fields(kw)
	if len(words) < 2 {
		return nil, false
	}
	seen := map[string]bool{}
	out := make([]liftedToken, 0, len(words))
	for _, w := range words {
		tok, ok := c.classifyToken(w)
		if !ok || seen[tok.slot] {
			return nil, false
		}
		seen[tok.slot] = true
		out = append(out, tok)
	}
	return out, true
}

func (c *Corrector) classifyToken(token string) (liftedToken, bool) {
	if region, ok := c.lexicon.Region(token); ok {
		return liftedToken{slot: SlotRegion, value: region}, true
	}
	if gender, ok := c.lexicon.Gender(token); ok {
		return liftedToken{slot: SlotGender, value: gender}, true
	}
	if bucket, ok := model.ParseAgeBucket(token); ok {
		return liftedToken{slot: SlotAgeBucket, value: bucket.Label}, true
	}
	return liftedToken{}, false
}

func (c *Corrector) canonicaliseFilters(f *model.Filters) []Correction {
	var changes []Correction

	if f.Gender != nil {
		raw := strings.TrimSpace(*f.Gender)
		switch canonical, ok := c.lexicon.Gender(raw); {
		case raw == "":
			f.Gender = nil
		case ok && canonical != *f.Gender:
			changes = append(changes, Correction{Slot: SlotGender, Token: *f.Gender, Before: *f.Gender, After: canonical, Action: ActionCanonicalised})
			f.Gender = &canonical
		}
	}

	if f.AgeBucket != nil {
		raw := strings.TrimSpace(*f.AgeBucket)
		bucket, ok := model.ParseAgeBucket(raw)
		switch {
		case raw == "":
			f.AgeBucket = nil
		case !ok:
			changes = append(changes, Correction{Slot: SlotAgeBucket, Token: *f.AgeBucket, Before: *f.AgeBucket, Action: ActionDropped})
			f.AgeBucket = nil
		case bucket.Label != *f.AgeBucket:
			changes = append(changes, Correction{Slot: SlotAgeBucket, Token: *f.AgeBucket, Before: *f.AgeBucket, After: bucket.Label, Action: ActionCanonicalised})
			label := bucket.Label
			f.AgeBucket = &label
		}
	}

	if f.Region != nil {
		raw := strings.TrimSpace(*f.Region)
		switch canonical, ok := c.lexicon.Region(raw); {
		case raw == "":
			f.Region = nil
		case ok && canonical != *f.Region:
			changes = append(changes, Correction{Slot: SlotRegion, Token: *f.Region, Before: *f.Region, After: canonical, Action: ActionCanonicalised})
			f.Region = &canonical
		case !ok && raw != *f.Region:
			f.Region = &raw
		}
	}
	return changes
}

func (c *Corrector) log(ch Correction) {
	fields := []zap.Field{
		zap.String("slot", ch.Slot),
		zap.String("token", ch.Token),
		zap.String("before", ch.Before),
		zap.String("after", ch.After),
		zap.String("action", ch.Action),
	}
	switch ch.Action {
	case ActionMoved:
		c.observer.ObserveCorrection(ch.Slot)
		c.logger.Info("keyword lifted into filter", fields...)
	case ActionDropped, ActionConflict:
		c.logger.Warn("filter correction skipped", fields...)
	default:
		c.logger.Info("filter corrected", fields...)
	}
}

func filterSlot(f *model.Filters, slot string) **string {
	switch slot {
	case SlotGender:
		return &f.Gender
	case SlotAgeBucket:
		return &f.AgeBucket
	default:
		return &f.Region
	}
}
