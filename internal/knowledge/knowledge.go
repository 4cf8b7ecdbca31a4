// Package knowledge stores operator-curated reply snippets and picks the ones
// relevant to a conversation.
package knowledge

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"gorm.io/gorm"
)

// Entry holds the editable fields of a knowledge entry.
type Entry struct {
	ID      uint // 0 creates a new entry
	Title   string
	Content string
	Tags    string
	Enabled bool
}

// Upsert creates an entry, or updates an existing one and bumps its version.
func Upsert(tx *gorm.DB, e Entry) (*models.KBEntry, error) {
	e.Title, e.Content, e.Tags = strings.TrimSpace(e.Title), strings.TrimSpace(e.Content), strings.TrimSpace(e.Tags)
	if e.Title == "" {
		return nil, fmt.Errorf("knowledge: title is required")
	}
	if e.Content == "" {
		return nil, fmt.Errorf("knowledge: content is required")
	}

	if e.ID == 0 {
		row := models.KBEntry{Title: e.Title, Content: e.Content, Tags: e.Tags, Enabled: e.Enabled, Version: 1}
		if err := tx.Create(&row).Error; err != nil {
			return nil, db.TranslateError("knowledge: create", err)
		}
		return &row, nil
	}

	result := tx.Model(&models.KBEntry{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
		"title":   e.Title,
		"content": e.Content,
		"tags":    e.Tags,
		"enabled": e.Enabled,
		"version": gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return nil, db.TranslateError(fmt.Sprintf("knowledge: update %d", e.ID), result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("knowledge: entry %d: %w", e.ID, apperr.ErrNotFound)
	}
	return Get(tx, e.ID)
}

// Get returns an entry by ID.
func Get(tx *gorm.DB, id uint) (*models.KBEntry, error) {
	var row models.KBEntry
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, db.TranslateError(fmt.Sprintf("knowledge: entry %d", id), err)
	}
	return &row, nil
}

// Delete removes an entry.
func Delete(tx *gorm.DB, id uint) error {
	result := tx.Where("id = ?", id).Delete(&models.KBEntry{})
	if result.Error != nil {
		return db.TranslateError(fmt.Sprintf("knowledge: delete %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("knowledge: entry %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// listLimit caps List results.
const listLimit = 500

// List returns entries, most recently updated first. A non-empty query
// matches title, content or tags.
func List(tx *gorm.DB, query string) ([]models.KBEntry, error) {
	q := tx.Order("updated_at DESC, id DESC").Limit(listLimit)
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + query + "%"
		q = q.Where("title LIKE ? OR content LIKE ? OR tags LIKE ?", like, like, like)
	}
	var rows []models.KBEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, db.TranslateError("knowledge: list", err)
	}
	return rows, nil
}

// Search limits.
const (
	DefaultSearchLimit = 4
	maxKeywords        = 8
)

var keywordRe = regexp.MustCompile(`\p{Han}{2,}|[A-Za-z0-9]{3,}`)

// Keywords extracts up to eight distinct search terms from text: runs of two
// or more CJK characters and ASCII alphanumeric runs of three or more.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range keywordRe.FindAllString(text, -1) {
		p = strings.ToLower(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

// Search scores enabled entries by how many of text's keywords they contain
// and returns the best max, ties going to the most recently updated.
func Search(tx *gorm.DB, text string, max int) ([]models.KBEntry, error) {
	if max <= 0 {
		max = DefaultSearchLimit
	}
	kws := Keywords(text)
	if len(kws) == 0 {
		return nil, nil
	}

	var rows []models.KBEntry
	if err := tx.Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, db.TranslateError("knowledge: search", err)
	}

	type scored struct {
		row   models.KBEntry
		score int
	}
	var hits []scored
	for _, r := range rows {
		hay := strings.ToLower(r.Title + "\n" + r.Content + "\n" + r.Tags)
		n := 0
		for _, k := range kws {
			if strings.Contains(hay, k) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{r, n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].row.UpdatedAt.Equal(hits[j].row.UpdatedAt) {
			return hits[i].row.UpdatedAt.After(hits[j].row.UpdatedAt)
		}
		return hits[i].row.ID > hits[j].row.ID
	})

	if len(hits) > max {
		hits = hits[:max]
	}
	out := make([]models.KBEntry, len(hits))
	for i, h := range hits {
		out[i] = h.row
	}
	return out, nil
}

// Defaults are the entries seeded into an empty knowledge base.
var Defaults = []Entry{
	{Title: "Greeting", Content: "Hello, this is the front desk. Please send the time, address, contact number and what you need done.", Tags: "script", Enabled: true},
	{Title: "Leave request format", Content: "Staff leave messages should look like: leave 2025-12-31 10:00-18:00 reason: ...", Tags: "internal", Enabled: true},
}

// SeedDefaults inserts Defaults when the knowledge base is empty. It reports
// whether anything was written.
func SeedDefaults(tx *gorm.DB) (bool, error) {
	var n int64
	if err := tx.Model(&models.KBEntry{}).Count(&n).Error; err != nil {
		return false, db.TranslateError("knowledge: count", err)
	}
	if n > 0 {
		return false, nil
	}
	for _, e := range Defaults {
		if _, err := Upsert(tx, e); err != nil {
			return false, err
		}
	}
	return true, nil
}
