package parser

import (
	"strings"

	"github.com/starford/speclink/internal/models"
)

// Item is one list value with its location in the raw text.
type Item struct {
	Text   string
	Line   int
	Column int
}

// Entry is one front-matter key with its scalar value or list items.
type Entry struct {
	Key    string
	Value  string
	Items  []Item
	IsList bool
	Line   int
	// Column of a scalar value, past any opening quote.
	Column int
}

// FrontMatterEntries parses the front matter of raw and returns its entries with
// absolute line/column positions. It returns nil when raw has no front matter.
func FrontMatterEntries(raw string) []Entry {
	lines := splitLines(raw)
	start, end, ok := FrontMatterBounds(lines)
	if !ok {
		return nil
	}
	return scanEntries(lines[start+1:end], start+1)
}

func parseFrontMatter(lines []string) models.Metadata {
	var md models.Metadata
	for _, e := range scanEntries(lines, 0) {
		switch e.Key {
		case KeyArtifact:
			md.Artifact = e.Value
		case KeyPhase:
			md.Phase = e.Value
		case KeyDependsOn:
			md.DependsOn = itemTexts(e)
		case KeyReferences:
			md.References = itemTexts(e)
		case KeyVersion:
			md.Version = e.Value
		case KeyLastUpdated:
			md.LastUpdated = e.Value
		default:
			if md.Unknown == nil {
				md.Unknown = make(map[string]string)
			}
			if _, seen := md.Unknown[e.Key]; !seen {
				md.UnknownKeys = append(md.UnknownKeys, e.Key)
			}
			md.Unknown[e.Key] = e.Value
		}
	}
	return md
}

// itemTexts returns list items, or the scalar value as a single item so that
// "depends-on: a.req" is read like "depends-on: [a.req]".
func itemTexts(e Entry) []string {
	if !e.IsList {
		if e.Value == "" {
			return nil
		}
		return []string{e.Value}
	}
	out := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		out = append(out, it.Text)
	}
	return out
}

// scanEntries implements the restricted grammar: "key: value", "key: [a, b]"
// (possibly spanning lines) and "key:" followed by "- item" lines.
func scanEntries(lines []string, base int) []Entry {
	var out []Entry
	blockList := -1

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "-") && blockList >= 0 {
			raw := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
			if raw == "" {
				continue
			}
			col := strings.Index(line, raw)
			e := &out[blockList]
			e.Items = append(e.Items, makeItem(raw, base+i, col))
			e.Value = joinItems(e.Items)
			continue
		}
		blockList = -1

		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		if key == "" {
			continue
		}
		rest := line[colon+1:]
		value := strings.TrimSpace(rest)
		e := Entry{Key: key, Line: base + i}

		switch {
		case strings.HasPrefix(value, "["):
			open := colon + 1 + strings.Index(rest, "[")
			items, last := scanInlineList(lines, i, open, base)
			e.IsList = true
			e.Items = items
			e.Value = joinItems(items)
			if last == i {
				e.Value = value
			}
			i = last
		case value == "":
			e.IsList = true
			out = append(out, e)
			blockList = len(out) - 1
			continue
		default:
			e.Value = unquote(value)
			e.Column = colon + 1 + strings.Index(rest, value)
			if e.Value != value {
				e.Column++
			}
		}
		out = append(out, e)
	}

	for i := range out {
		if out[i].IsList && len(out[i].Items) == 0 {
			out[i].IsList = out[i].Key == KeyDependsOn || out[i].Key == KeyReferences
		}
	}
	return out
}

// scanInlineList reads a bracketed list starting at lines[li][col] == '['. Items
// never span lines; nested brackets and quoted commas stay inside their item.
// An unterminated list ends at the last front-matter line.
func scanInlineList(lines []string, li, col, base int) ([]Item, int) {
	var (
		items   []Item
		cur     strings.Builder
		curLine int
		curCol  = -1
		depth   int
		quote   byte
	)
	finish := func() {
		raw := strings.TrimRight(cur.String(), " \t")
		if raw != "" && curCol >= 0 {
			items = append(items, makeItem(raw, base+curLine, curCol))
		}
		cur.Reset()
		curCol = -1
	}

	for l := li; l < len(lines); l++ {
		line := lines[l]
		c := 0
		if l == li {
			c = col
		}
		for ; c < len(line); c++ {
			ch := line[c]
			if quote != 0 {
				cur.WriteByte(ch)
				if ch == quote {
					quote = 0
				}
				continue
			}
			switch {
			case ch == '[':
				depth++
				if depth == 1 {
					continue
				}
			case ch == ']':
				depth--
				if depth == 0 {
					finish()
					return items, l
				}
			case ch == ',' && depth == 1:
				finish()
				continue
			case ch == '"' || ch == '\'':
				quote = ch
			}
			if curCol < 0 {
				if ch == ' ' || ch == '\t' {
					continue
				}
				curLine, curCol = l, c
			}
			cur.WriteByte(ch)
		}
		quote = 0
		finish()
	}
	return items, len(lines) - 1
}

// makeItem strips surrounding quotes, shifting the column past the opening quote.
func makeItem(raw string, line, col int) Item {
	text := unquote(raw)
	if text != raw {
		col++
	}
	return Item{Text: text, Line: line, Column: col}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func joinItems(items []Item) string {
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	return strings.Join(texts, ", ")
}
