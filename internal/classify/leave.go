package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/araddon/dateparse"
	"github.com/zulandar/frontdesk/internal/models"
)

// LeaveIntent is a detected request for time off. A nil Window means the
// requested time could not be understood.
type LeaveIntent struct {
	Keyword string         `json:"keyword"`
	Window  *models.Window `json:"window,omitempty"`
}

// LeaveDetector recognises leave requests in employee messages. ref is the
// message timestamp, used to resolve relative and year-less dates.
type LeaveDetector interface {
	Detect(body string, ref time.Time) (LeaveIntent, bool)
}

// DefaultLeaveKeywords is the vocabulary RuleDetector matches.
var DefaultLeaveKeywords = []string{
	"leave", "day off", "time off", "absent", "absence", "sick",
	"vacation", "holiday", "off work",
	"请假", "休假", "病假",
}

// fuzzyMinLen is the shortest word that may match a keyword with one typo.
const fuzzyMinLen = 6

// RuleDetector is the default keyword and pattern based LeaveDetector.
type RuleDetector struct {
	Keywords []string
	Location *time.Location
}

// NewRuleDetector returns a detector with the default vocabulary that reads
// dates in loc.
func NewRuleDetector(loc *time.Location) *RuleDetector {
	if loc == nil {
		loc = time.Local
	}
	return &RuleDetector{Keywords: DefaultLeaveKeywords, Location: loc}
}

// Detect implements LeaveDetector.
func (d *RuleDetector) Detect(body string, ref time.Time) (LeaveIntent, bool) {
	text := strings.ToLower(strings.TrimSpace(body))
	if text == "" {
		return LeaveIntent{}, false
	}
	kw, ok := d.match(text)
	if !ok {
		return LeaveIntent{}, false
	}
	intent := LeaveIntent{Keyword: kw}
	if w, ok := ExtractWindow(text, ref, d.loc()); ok {
		intent.Window = &w
	}
	return intent, true
}

func (d *RuleDetector) loc() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

// match returns the first keyword found in text. Single ASCII words match on
// word boundaries, including plural and inflected forms, and tolerate one
// edit for longer words. ASCII phrases match on word sequences, so "day-off"
// matches "day off". CJK keywords match as substrings.
func (d *RuleDetector) match(text string) (string, bool) {
	words := asciiWords(text)
	line := " " + strings.Join(words, " ") + " "
	for _, kw := range d.Keywords {
		switch {
		case isASCIIWord(kw):
			for i, w := range words {
				if inflected(w, kw) && (!verbKeywords[kw] || nounReading(words, i)) {
					return kw, true
				}
			}
		case isASCIIPhrase(kw):
			if strings.Contains(line, " "+kw+" ") {
				return kw, true
			}
		default:
			if strings.Contains(text, kw) {
				return kw, true
			}
		}
	}
	for _, kw := range d.Keywords {
		if !isASCIIWord(kw) || len(kw) < fuzzyMinLen || verbKeywords[kw] {
			continue
		}
		for _, w := range words {
			if len(w) >= fuzzyMinLen && levenshtein.ComputeDistance(w, kw) <= 1 {
				return kw, true
			}
		}
	}
	return "", false
}

var inflections = []string{"s", "es", "d", "ed", "ing", "ness"}

// inflected reports whether w is kw or kw with a common English suffix.
func inflected(w, kw string) bool {
	if w == kw {
		return true
	}
	stem := strings.TrimSuffix(kw, "e")
	for _, suf := range inflections {
		if w == kw+suf || w == stem+suf {
			return true
		}
	}
	return false
}

// verbKeywords are keywords that double as everyday verbs. They count only
// when read as a noun: "on leave", "taking leave", "leave from Monday".
var verbKeywords = map[string]bool{"leave": true}

var (
	nounBefore = wordSet("on", "take", "taking", "took", "request", "requesting", "requested",
		"need", "needs", "want", "apply", "applying", "annual", "sick", "personal", "unpaid",
		"paid", "my", "a", "of", "for", "some", "half", "day", "family", "maternity",
		"paternity", "emergency", "compassionate")
	nounAfter = wordSet("on", "for", "from", "of", "request", "requests", "today", "tomorrow",
		"until", "till", "please")
	// objects that mark "leave" as a verb when it opens a message.
	verbObjects = wordSet("the", "a", "an", "it", "this", "that", "these", "those", "my", "your",
		"our", "his", "her", "their", "them", "him", "me", "you", "us", "at", "here", "there",
		"early", "now", "soon", "home", "work", "message")
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// nounReading reports whether words[i] is used as a noun, judged by its
// neighbours.
func nounReading(words []string, i int) bool {
	if i > 0 && nounBefore[words[i-1]] {
		return true
	}
	if i+1 < len(words) {
		next := words[i+1]
		if nounAfter[next] {
			return true
		}
		return i == 0 && !verbObjects[next]
	}
	return i == 0
}

func asciiWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r > unicode.MaxASCII || !unicode.IsLetter(r)
	})
}

func isASCIIPhrase(s string) bool {
	if !strings.Contains(s, " ") {
		return false
	}
	for _, w := range strings.Fields(s) {
		if !isASCIIWord(w) {
			return false
		}
	}
	return true
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

const dateToken = `(\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}月\d{1,2}[日号]?|\d{1,2}/\d{1,2}|today|tomorrow|今天|明天|后天)`

var (
	timedRangeRe = regexp.MustCompile(dateToken + `\s*(\d{1,2}:\d{2})\s*(?:-|~|到|至|to)\s*(\d{1,2}:\d{2})`)
	dayRangeRe   = regexp.MustCompile(dateToken + `\s*(?:-|~|到|至|to|until)\s*` + dateToken)
	singleDayRe  = regexp.MustCompile(dateToken)
	numbersRe    = regexp.MustCompile(`\d+`)
)

// ExtractWindow finds a requested time window in lower-cased text. Patterns
// are tried in order: a date with a time range, a date range in whole days
// (end exclusive), then a single whole day. Unparseable or inverted windows
// report false.
func ExtractWindow(text string, ref time.Time, loc *time.Location) (models.Window, bool) {
	ref = ref.In(loc)

	if m := timedRangeRe.FindStringSubmatch(text); m != nil {
		day, err := parseDay(m[1], ref, loc)
		if err != nil {
			return models.Window{}, false
		}
		start, err1 := atClock(day, m[2], loc)
		end, err2 := atClock(day, m[3], loc)
		if err1 != nil || err2 != nil {
			return models.Window{}, false
		}
		return checked(start, end)
	}

	if m := dayRangeRe.FindStringSubmatch(text); m != nil {
		from, err1 := parseDay(m[1], ref, loc)
		to, err2 := parseDay(m[2], ref, loc)
		if err1 != nil || err2 != nil {
			return models.Window{}, false
		}
		return checked(from, to.AddDate(0, 0, 1))
	}

	if m := singleDayRe.FindStringSubmatch(text); m != nil {
		day, err := parseDay(m[1], ref, loc)
		if err != nil {
			return models.Window{}, false
		}
		return checked(day, day.AddDate(0, 0, 1))
	}
	return models.Window{}, false
}

func checked(start, end time.Time) (models.Window, bool) {
	w := models.Window{Start: start.UTC(), End: end.UTC()}
	if !w.Valid() {
		return models.Window{}, false
	}
	return w, true
}

// parseDay resolves a date token to local midnight.
func parseDay(tok string, ref time.Time, loc *time.Location) (time.Time, error) {
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
	switch tok {
	case "today", "今天":
		return midnight, nil
	case "tomorrow", "明天":
		return midnight.AddDate(0, 0, 1), nil
	case "后天":
		return midnight.AddDate(0, 0, 2), nil
	}

	nums := numbersRe.FindAllString(tok, -1)
	var y, m, d int
	switch len(nums) {
	case 3:
		y, _ = strconv.Atoi(nums[0])
		m, _ = strconv.Atoi(nums[1])
		d, _ = strconv.Atoi(nums[2])
	case 2:
		y = ref.Year()
		m, _ = strconv.Atoi(nums[0])
		d, _ = strconv.Atoi(nums[1])
	default:
		return time.Time{}, fmt.Errorf("classify: unrecognised date %q", tok)
	}
	t, err := dateparse.ParseIn(fmt.Sprintf("%04d-%02d-%02d", y, m, d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("classify: date %q: %w", tok, err)
	}
	return t, nil
}

// atClock places an "H:MM" clock reading on day.
func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	parts := strings.SplitN(clock, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	if h > 24 || m > 59 || (h == 24 && m != 0) {
		return time.Time{}, fmt.Errorf("classify: clock %q out of range", clock)
	}
	if h == 24 {
		return day.AddDate(0, 0, 1), nil
	}
	s := fmt.Sprintf("%s %02d:%02d:00", day.Format("2006-01-02"), h, m)
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("classify: clock %q: %w", clock, err)
	}
	return t, nil
}
