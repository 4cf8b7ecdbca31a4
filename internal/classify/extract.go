package classify

import (
	"regexp"
	"strings"

	"github.com/zulandar/frontdesk/internal/phone"
)

// JobFields are the parts of a customer message used to draft a job.
type JobFields struct {
	Title        string `json:"title"`
	Address      string `json:"address"`
	ContactPhone string `json:"contact_phone"`
	Notes        string `json:"notes"`
}

const (
	titleRunes   = 18
	addressRunes = 80
	notesRunes   = 500
)

// DefaultJobTitle names a job drafted from an empty message.
const DefaultJobTitle = "New job"

var (
	phoneRe         = regexp.MustCompile(`(\+?\d[\d\-\s]{7,}\d)`)
	addressKeywords = []string{"地址", "位置", "送到", "address", "location", "到", "在"}
)

// ExtractJobFields pulls a title, address, contact phone and notes from a
// customer message. fallbackPhone is used when the text carries no number.
func ExtractJobFields(text, fallbackPhone string) JobFields {
	t := strings.TrimSpace(text)
	f := JobFields{ContactPhone: phone.Normalize(fallbackPhone)}

	if m := phoneRe.FindString(t); m != "" {
		f.ContactPhone = phone.Normalize(m)
	}

	lower := asciiLower(t)
	for _, kw := range addressKeywords {
		if idx := strings.Index(lower, kw); idx >= 0 {
			f.Address = truncate(t[idx:], addressRunes, "")
			break
		}
	}

	switch {
	case t == "":
		f.Title = DefaultJobTitle
	default:
		f.Title = truncate(t, titleRunes, "…")
	}
	f.Notes = truncate(t, notesRunes, "")
	return f
}

// asciiLower lower-cases ASCII letters only, keeping byte offsets stable.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// truncate cuts s to n runes, appending suffix when anything was cut.
func truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}
