// Package parser decodes CSV/TSV/JSON wordbook uploads into a stream of
// normalized word records (§4.2). It never touches Store and never holds
// more than one record's worth of allocation at a time — callers drive the
// stream with a callback so the Importer can batch without the Parser ever
// buffering the whole result set, mirroring the streaming
// json.Decoder.Token()/More() idiom the teacher uses for its own dictionary
// import path (backend_v3 internal/service/impex/import.go).
package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// sniffWindow bounds how many leading bytes the CSV/TSV heuristic inspects
// (§4.2: "count commas vs tabs in the first K bytes").
const sniffWindow = 4096

// fieldCandidates is the §4.2 source-column mapping table: for each target
// field, the case-insensitive column names accepted, in first-match order.
var (
	lemmaKeys  = []string{"lemma", "word", "term", "french"}
	zhKeys     = []string{"meaning_zh", "meaning", "translation", "zh", "chinese"}
	enKeys     = []string{"meaning_en", "en", "english"}
	posKeys    = []string{"pos", "part_of_speech"}
	genderKeys = []string{"gender", "genre"}
	ipaKeys    = []string{"ipa", "phonetic"}
	lessonKeys = []string{"lesson", "chapter", "unit"}
	cefrKeys   = []string{"cefr", "level"}
	tagsKeys   = []string{"tags"}
	hintKeys   = []string{"hint"}
)

// Row is one parsed line: either a usable Record or a non-nil RowErr. Num is
// 1-based and counts data rows (the header row, if any, is not counted).
type Row struct {
	Num     int
	Record  domain.NormalizedWord
	RowErr  *domain.RowError
	Warning string // non-fatal diagnostic: dropped cefr/gender/etc (§4.2)
}

// Handler receives each parsed row in order. Returning an error aborts the
// parse — Importer never does this; it always drains to EOF so a row
// failure can't abort a batch mid-stream (§7: "A BadInput in one row never
// aborts the job").
type Handler func(Row) error

// Parse decodes data according to format (resolving domain.ImportFormatAuto
// per §4.2's sniff order: content sniff, filename suffix, comma/tab count)
// and invokes handle once per data row. filename may be empty; it is only
// consulted for the auto-detection suffix check.
func Parse(data []byte, format domain.ImportFormat, filename string, handle Handler) error {
	resolved := format
	if resolved == "" || resolved == domain.ImportFormatAuto {
		resolved = detectFormat(data, filename)
	}

	switch resolved {
	case domain.ImportFormatJSON:
		return parseJSON(data, handle)
	case domain.ImportFormatTSV:
		return parseDelimited(data, '\t', handle)
	default:
		return parseDelimited(data, ',', handle)
	}
}

// detectFormat implements §4.2's auto inference order: leading `[`/`{` ⇒
// json, then filename suffix, then a comma-vs-tab count over the first
// sniffWindow bytes.
func detectFormat(data []byte, filename string) domain.ImportFormat {
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return domain.ImportFormatJSON
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return domain.ImportFormatJSON
	case ".tsv":
		return domain.ImportFormatTSV
	case ".csv":
		return domain.ImportFormatCSV
	}

	window := data
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	commas := bytes.Count(window, []byte{','})
	tabs := bytes.Count(window, []byte{'\t'})
	if tabs > commas {
		return domain.ImportFormatTSV
	}
	return domain.ImportFormatCSV
}

// parseDelimited drives encoding/csv over data with the given field
// delimiter — the pack has no third-party CSV library (see DESIGN.md), and
// the stdlib reader already streams record-by-record without holding the
// whole file in memory.
func parseDelimited(data []byte, delim rune, handle Handler) error {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1 // tolerate ragged rows; short/long rows map what they can
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil // empty file
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	header = trimAll(header)

	rowNum := 0
	for {
		fields, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", rowNum+1, err)
		}
		rowNum++

		row := make(map[string]any, len(header))
		for i, key := range header {
			if i < len(fields) {
				row[key] = fields[i]
			}
		}
		if err := handle(buildRow(rowNum, row)); err != nil {
			return err
		}
	}
}

// parseJSON streams a top-level JSON array of objects via json.Decoder's
// Token()/More() idiom, the same shape the teacher's impex.Import uses to
// avoid decoding the whole array into one slice.
func parseJSON(data []byte, handle Handler) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode json token: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return fmt.Errorf("expected a top-level json array, got %v", tok)
	}

	rowNum := 0
	for dec.More() {
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return fmt.Errorf("decode element %d: %w", rowNum+1, err)
		}
		rowNum++
		if err := handle(buildRow(rowNum, row)); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return fmt.Errorf("decode closing bracket: %w", err)
	}
	return nil
}

// buildRow maps one raw row (arbitrary column/key names, case-insensitive)
// into a NormalizedWord per §4.2's field table, or a RowError if it has no
// usable lemma.
func buildRow(rowNum int, raw map[string]any) Row {
	lemma := firstString(raw, lemmaKeys)
	lemma = domain.NormalizeLemma(lemma)
	if lemma == "" {
		return Row{Num: rowNum, RowErr: &domain.RowError{Row: rowNum, Reason: "missing lemma"}}
	}

	rec := domain.NormalizedWord{
		Lemma:        lemma,
		POS:          strings.TrimSpace(firstString(raw, posKeys)),
		IPA:          strings.TrimSpace(firstString(raw, ipaKeys)),
		Lesson:       strings.TrimSpace(firstString(raw, lessonKeys)),
		Hint:         strings.TrimSpace(firstString(raw, hintKeys)),
		Translations: map[string]string{},
	}

	if zh := strings.TrimSpace(firstString(raw, zhKeys)); zh != "" {
		rec.Translations["zh-cn"] = zh
	}
	if en := strings.TrimSpace(firstString(raw, enKeys)); en != "" {
		rec.Translations["en"] = en
	}

	row := Row{Num: rowNum, Record: rec}

	if raw := strings.TrimSpace(firstString(raw, genderKeys)); raw != "" {
		g := domain.Gender(strings.ToLower(raw))
		if g.IsValid() {
			rec.Gender = g
		} else {
			row.Warning = appendWarning(row.Warning, fmt.Sprintf("dropped invalid gender %q", raw))
		}
	}

	if raw := strings.TrimSpace(firstString(raw, cefrKeys)); raw != "" {
		c := domain.CEFR(strings.ToUpper(raw))
		if c.IsValid() {
			rec.CEFR = c
		} else {
			row.Warning = appendWarning(row.Warning, fmt.Sprintf("dropped invalid cefr %q", raw))
		}
	}

	rec.Tags = splitTags(tagsValue(raw0(raw, tagsKeys)))

	row.Record = rec
	return row
}

func appendWarning(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}

// firstString returns the first non-empty string value found among keys,
// matched case-insensitively against raw's keys.
func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := lookupCI(raw, k); ok {
			if s := toString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func raw0(raw map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := lookupCI(raw, k); ok {
			return v
		}
	}
	return nil
}

func lookupCI(raw map[string]any, key string) (any, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	for k, v := range raw {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64, int, int64:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

// tagsValue normalizes the JSON-or-CSV "tags" cell: JSON payloads may supply
// a native array, CSV/TSV payloads always supply a delimited string.
func tagsValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := toString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ";")
	default:
		return ""
	}
}

// splitTags splits on any of `;,|` per §4.2's "tags" mapping.
func splitTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '|'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func trimAll(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}
