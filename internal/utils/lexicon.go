package utils

import (
	"strings"
)

// Gender codes stored in respondents.gender.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// Lexicon maps surface tokens found in free text to canonical filter values.
// It is built once at startup and only read afterwards.
type Lexicon struct {
	regions         map[string]string
	genders         map[string]string
	negationMarkers []string
}

// LexiconOverrides is the on-disk shape of a lexicon file. Entries are
// merged onto the built-in defaults; a non-empty marker list replaces them.
type LexiconOverrides struct {
	Regions         map[string][]string `yaml:"regions"`
	Genders         map[string][]string `yaml:"genders"`
	NegationMarkers []string            `yaml:"negation_markers"`
}

var defaultRegions = map[string][]string{
	"Seoul":     {"seoul", "서울", "서울시", "서울특별시"},
	"Busan":     {"busan", "pusan", "부산", "부산시", "부산광역시"},
	"Incheon":   {"incheon", "인천", "인천시", "인천광역시"},
	"Daegu":     {"daegu", "대구", "대구시", "대구광역시"},
	"Daejeon":   {"daejeon", "대전", "대전시", "대전광역시"},
	"Gwangju":   {"gwangju", "광주", "광주시", "광주광역시"},
	"Ulsan":     {"ulsan", "울산", "울산시", "울산광역시"},
	"Sejong":    {"sejong", "세종", "세종시", "세종특별자치시"},
	"Gyeonggi":  {"gyeonggi", "gyeonggi-do", "경기", "경기도"},
	"Gangwon":   {"gangwon", "gangwon-do", "강원", "강원도"},
	"Chungbuk":  {"chungbuk", "north chungcheong", "충북", "충청북도"},
	"Chungnam":  {"chungnam", "south chungcheong", "충남", "충청남도"},
	"Jeonbuk":   {"jeonbuk", "north jeolla", "전북", "전라북도"},
	"Jeonnam":   {"jeonnam", "south jeolla", "전남", "전라남도"},
	"Gyeongbuk": {"gyeongbuk", "north gyeongsang", "경북", "경상북도"},
	"Gyeongnam": {"gyeongnam", "south gyeongsang", "경남", "경상남도"},
	"Jeju":      {"jeju", "jeju-do", "제주", "제주도"},
}

var defaultGenders = map[string][]string{
	GenderMale:   {"m", "male", "males", "man", "men", "남", "남성", "남자"},
	GenderFemale: {"f", "female", "females", "woman", "women", "여", "여성", "여자"},
}

// DefaultNegationMarkers is the built-in negation vocabulary. The trailing
// space in "안 " is significant.
var DefaultNegationMarkers = []string{
	"don't have", "do not", "don't", "never", "not", "no", "none", "without",
	"없", "않", "안 ",
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() *Lexicon {
	l := &Lexicon{
		regions:         map[string]string{},
		genders:         map[string]string{},
		negationMarkers: append([]string(nil), DefaultNegationMarkers...),
	}
	l.addAliases(l.regions, defaultRegions)
	l.addAliases(l.genders, defaultGenders)
	return l
}

// WithOverrides returns a copy of l with o merged in.
func (l *Lexicon) WithOverrides(o LexiconOverrides) *Lexicon {
	out := &Lexicon{
		regions:         make(map[string]string, len(l.regions)),
		genders:         make(map[string]string, len(l.genders)),
		negationMarkers: append([]string(nil), l.negationMarkers...),
	}
	for k, v := range l.regions {
		out.regions[k] = v
	}
	for k, v := range l.genders {
		out.genders[k] = v
	}
	out.addAliases(out.regions, o.Regions)
	out.addAliases(out.genders, o.Genders)
	if len(o.NegationMarkers) > 0 {
		out.negationMarkers = append([]string(nil), o.NegationMarkers...)
	}
	return out
}

func (l *Lexicon) addAliases(dst map[string]string, src map[string][]string) {
	for canonical, aliases := range src {
		canonical = strings.TrimSpace(canonical)
		if canonical == "" {
			continue
		}
		dst[NormalizeToken(canonical)] = canonical
		for _, alias := range aliases {
			if key := NormalizeToken(alias); key != "" {
				dst[key] = canonical
			}
		}
	}
}

// Region returns the canonical region for token.
func (l *Lexicon) Region(token string) (string, bool) {
	v, ok := l.regions[NormalizeToken(token)]
	return v, ok
}

// Gender returns "M" or "F" for a gender term.
func (l *Lexicon) Gender(token string) (string, bool) {
	v, ok := l.genders[NormalizeToken(token)]
	return v, ok
}

// NegationMarkers returns a copy of the configured markers.
func (l *Lexicon) NegationMarkers() []string {
	return append([]string(nil), l.negationMarkers...)
}

// NormalizeToken lowercases, trims and collapses inner whitespace.
func NormalizeToken(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
