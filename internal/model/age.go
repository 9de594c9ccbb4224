package model

import (
	"strconv"
	"strings"
)

// MaxAge bounds open-ended buckets such as "60s+".
const MaxAge = 120

// AgeBucket is a canonical decade bucket.
type AgeBucket struct {
	Label string
	Min   int
	Max   int
}

var decadeWords = map[string]int{
	"teens":     10,
	"twenties":  20,
	"thirties":  30,
	"forties":   40,
	"fifties":   50,
	"sixties":   60,
	"seventies": 70,
	"eighties":  80,
	"nineties":  90,
}

// ParseAgeBucket understands "20s", "20대", "twenties", "teens", "60+",
// "60s+", "60대 이상" and returns the canonical bucket.
func ParseAgeBucket(raw string) (AgeBucket, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return AgeBucket{}, false
	}

	openEnded := false
	for _, suffix := range []string{"이상", "+", "plus", "and over", "and above"} {
		if strings.HasSuffix(s, suffix) {
			openEnded = true
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
	}

	decade := -1
	if d, ok := decadeWords[s]; ok {
		decade = d
	} else {
		digits := strings.TrimRight(s, "s대")
		if digits != s || openEnded {
			if n, err := strconv.Atoi(digits); err == nil {
				decade = n
			}
		}
	}
	if decade < 10 || decade > 100 || decade%10 != 0 {
		return AgeBucket{}, false
	}

	if openEnded {
		return AgeBucket{Label: strconv.Itoa(decade) + "s+", Min: decade, Max: MaxAge}, true
	}
	return AgeBucket{Label: strconv.Itoa(decade) + "s", Min: decade, Max: decade + 9}, true
}

// AgeBucketFor returns the canonical decade label for an age.
func AgeBucketFor(age int) string {
	if age < 10 {
		return "under 10"
	}
	return strconv.Itoa(age/10*10) + "s"
}
