package ingestion

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TabularExtractor handles tabular data files: delimited text (CSV/TSV and
// friends), Excel/OpenDocument workbooks, and JSON record arrays. Every
// variant is serialized back to a textual table that preserves column
// headers.
type TabularExtractor struct {
	Extension string
}

func (e TabularExtractor) Extract(content []byte) (string, map[string]string, error) {
	switch e.Extension {
	case ".xlsx", ".xls", ".ods":
		return extractWorkbook(content)
	case ".json":
		return extractJSONTable(content)
	default:
		return extractDelimited(content, e.Extension)
	}
}

// extractDelimited parses delimited text, detecting the delimiter when the
// file does not use plain commas. When no candidate delimiter produces a
// consistent multi-column table the raw text is kept as-is, matching how a
// single-column listing would read anyway.
func extractDelimited(content []byte, ext string) (string, map[string]string, error) {
	delimiter, ok := detectDelimiter(content, ext)
	if !ok {
		return normalizePlainText(decodeText(content)), map[string]string{}, nil
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return "", nil, extractionError(FormatTabular, "parse delimited data: %v", err)
	}

	text, err := recordsToText(records)
	if err != nil {
		return "", nil, err
	}
	return text, map[string]string{"delimiter": string(delimiter)}, nil
}

// detectDelimiter tries each candidate against a leading sample and keeps
// the one yielding the widest consistent table with at least two columns.
func detectDelimiter(content []byte, ext string) (rune, bool) {
	if ext == ".tsv" {
		return '\t', true
	}

	sample := content
	if idx := nthLineOffset(sample, 20); idx > 0 {
		sample = sample[:idx]
	}

	best := rune(0)
	bestWidth := 0
	for _, candidate := range []rune{',', ';', '\t', '|'} {
		reader := csv.NewReader(bytes.NewReader(sample))
		reader.Comma = candidate
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		records, err := reader.ReadAll()
		if err != nil || len(records) == 0 {
			continue
		}
		width := len(records[0])
		if width < 2 {
			continue
		}
		consistent := true
		for _, record := range records {
			if len(record) != width {
				consistent = false
				break
			}
		}
		if consistent && width > bestWidth {
			best = candidate
			bestWidth = width
		}
	}

	return best, bestWidth > 0
}

func nthLineOffset(content []byte, n int) int {
	offset := 0
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(content[offset:], '\n')
		if idx < 0 {
			return 0
		}
		offset += idx + 1
	}
	return offset
}

// extractJSONTable renders a JSON array of flat records as a table with a
// header row built from the union of keys. Any other JSON shape is kept as
// indented JSON text.
func extractJSONTable(content []byte) (string, map[string]string, error) {
	var data any
	if err := json.Unmarshal(content, &data); err != nil {
		return "", nil, extractionError(FormatTabular, "parse json: %v", err)
	}

	records, ok := asRecordList(data)
	if !ok {
		pretty, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", nil, extractionError(FormatTabular, "render json: %v", err)
		}
		return string(pretty), map[string]string{}, nil
	}

	headers := make([]string, 0)
	seen := make(map[string]struct{})
	for _, record := range records {
		for key := range record {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				headers = append(headers, key)
			}
		}
	}
	sort.Strings(headers)

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, headers)
	for _, record := range records {
		row := make([]string, len(headers))
		for i, key := range headers {
			if value, ok := record[key]; ok {
				row[i] = jsonScalar(value)
			}
		}
		rows = append(rows, row)
	}

	text, err := recordsToText(rows)
	if err != nil {
		return "", nil, err
	}
	return text, map[string]string{}, nil
}

func asRecordList(data any) ([]map[string]any, bool) {
	items, ok := data.([]any)
	if !ok || len(items) == 0 {
		return nil, false
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, record)
	}
	return records, true
}

func jsonScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// recordsToText serializes rows as normalized comma-separated text, header
// row first.
func recordsToText(records [][]string) (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return "", extractionError(FormatTabular, "serialize table: %v", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", extractionError(FormatTabular, "serialize table: %v", err)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var _ Extractor = TabularExtractor{}
