package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// extractWorkbook reads spreadsheet archives. XLSX and ODS are both ZIP
// containers and are told apart by their entries; legacy binary .xls files
// are compound documents and are rejected.
func extractWorkbook(content []byte) (string, map[string]string, error) {
	if bytes.HasPrefix(content, oleSignature) {
		return "", nil, extractionError(FormatTabular,
			"binary compound workbook (password-protected or legacy .xls); re-save as .xlsx")
	}

	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, extractionError(FormatTabular, "not a valid workbook archive: %v", err)
	}

	if zipHasEntry(reader, "xl/workbook.xml") {
		return extractXLSX(reader)
	}
	if zipHasEntry(reader, "content.xml") {
		return extractODS(reader)
	}
	return "", nil, extractionError(FormatTabular, "archive is neither an xlsx nor an ods workbook")
}

type workbookSheet struct {
	Name string
	Rows [][]string
}

// renderSheets serializes every sheet to comma-separated text with headers
// preserved. Sheet name tags are added only for multi-sheet workbooks.
func renderSheets(sheets []workbookSheet) (string, map[string]string, error) {
	names := make([]string, 0, len(sheets))
	parts := make([]string, 0, len(sheets))

	for _, sheet := range sheets {
		names = append(names, sheet.Name)

		var sb strings.Builder
		if len(sheets) > 1 {
			sb.WriteString("Sheet: " + sheet.Name + "\n")
		}
		text, err := recordsToText(sheet.Rows)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(text)
		parts = append(parts, sb.String())
	}

	return strings.Join(parts, "\n---\n"), map[string]string{"sheets": strings.Join(names, ",")}, nil
}

// --- XLSX ---

type xlsxWorkbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxRelsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type xlsxSharedStringsXML struct {
	Items []xlsxSharedString `xml:"si"`
}

type xlsxSharedString struct {
	Plain *string  `xml:"t"`
	Runs  []string `xml:"r>t"`
}

func (s xlsxSharedString) text() string {
	if s.Plain != nil {
		return *s.Plain
	}
	return strings.Join(s.Runs, "")
}

type xlsxWorksheetXML struct {
	Rows []struct {
		Cells []xlsxCellXML `xml:"c"`
	} `xml:"sheetData>row"`
}

type xlsxCellXML struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline struct {
		Plain *string  `xml:"t"`
		Runs  []string `xml:"r>t"`
	} `xml:"is"`
}

func extractXLSX(reader *zip.Reader) (string, map[string]string, error) {
	var workbook xlsxWorkbookXML
	if err := decodeZipXML(reader, "xl/workbook.xml", &workbook); err != nil {
		return "", nil, extractionError(FormatTabular, "parse workbook manifest: %v", err)
	}
	if len(workbook.Sheets) == 0 {
		return "", nil, extractionError(FormatTabular, "workbook declares no sheets")
	}

	targets := map[string]string{}
	var rels xlsxRelsXML
	if err := decodeZipXML(reader, "xl/_rels/workbook.xml.rels", &rels); err == nil {
		for _, rel := range rels.Relationships {
			targets[rel.ID] = rel.Target
		}
	}

	var shared []string
	var sst xlsxSharedStringsXML
	if err := decodeZipXML(reader, "xl/sharedStrings.xml", &sst); err == nil {
		shared = make([]string, len(sst.Items))
		for i, item := range sst.Items {
			shared[i] = item.text()
		}
	}

	sheets := make([]workbookSheet, 0, len(workbook.Sheets))
	for i, declared := range workbook.Sheets {
		path := targets[declared.RID]
		if path == "" {
			path = fmt.Sprintf("worksheets/sheet%d.xml", i+1)
		}
		path = "xl/" + strings.TrimPrefix(strings.TrimPrefix(path, "/"), "xl/")

		var worksheet xlsxWorksheetXML
		if err := decodeZipXML(reader, path, &worksheet); err != nil {
			return "", nil, extractionError(FormatTabular, "parse sheet %q: %v", declared.Name, err)
		}

		rows := make([][]string, 0, len(worksheet.Rows))
		for _, row := range worksheet.Rows {
			values := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				column := columnIndex(cell.Ref)
				for len(values) < column {
					values = append(values, "")
				}
				values = append(values, cellValue(cell, shared))
			}
			rows = append(rows, values)
		}
		sheets = append(sheets, workbookSheet{Name: declared.Name, Rows: rows})
	}

	return renderSheets(sheets)
}

func cellValue(cell xlsxCellXML, shared []string) string {
	switch cell.Type {
	case "s":
		idx, err := strconv.Atoi(cell.Value)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		if cell.Inline.Plain != nil {
			return *cell.Inline.Plain
		}
		return strings.Join(cell.Inline.Runs, "")
	case "b":
		if cell.Value == "1" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return cell.Value
	}
}

// columnIndex converts the letter part of a cell reference like "C12" into
// a zero-based column number.
func columnIndex(ref string) int {
	index := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		if c < 'A' || c > 'Z' {
			break
		}
		index = index*26 + int(c-'A') + 1
	}
	if index == 0 {
		return 0
	}
	return index - 1
}

// --- ODS ---

type odsContentXML struct {
	Tables []struct {
		Name string `xml:"name,attr"`
		Rows []struct {
			Cells []odsCellXML `xml:"table-cell"`
		} `xml:"table-row"`
	} `xml:"body>spreadsheet>table"`
}

type odsCellXML struct {
	Repeated   string   `xml:"number-columns-repeated,attr"`
	Paragraphs []string `xml:"p"`
}

const odsRepeatCap = 256

func extractODS(reader *zip.Reader) (string, map[string]string, error) {
	var content odsContentXML
	if err := decodeZipXML(reader, "content.xml", &content); err != nil {
		return "", nil, extractionError(FormatTabular, "parse ods content: %v", err)
	}
	if len(content.Tables) == 0 {
		return "", nil, extractionError(FormatTabular, "ods document declares no tables")
	}

	sheets := make([]workbookSheet, 0, len(content.Tables))
	for _, table := range content.Tables {
		rows := make([][]string, 0, len(table.Rows))
		for _, row := range table.Rows {
			values := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				text := strings.Join(cell.Paragraphs, "\n")
				repeat := 1
				if cell.Repeated != "" {
					if parsed, err := strconv.Atoi(cell.Repeated); err == nil && parsed > 1 {
						repeat = parsed
					}
				}
				// Empty cells repeated across the sheet width pad
				// nothing useful; cap to keep rows bounded.
				if repeat > odsRepeatCap {
					repeat = odsRepeatCap
				}
				if text == "" && repeat > 1 {
					repeat = 1
				}
				for i := 0; i < repeat; i++ {
					values = append(values, text)
				}
			}
			// Drop trailing empties left by full-width padding cells.
			for len(values) > 0 && values[len(values)-1] == "" {
				values = values[:len(values)-1]
			}
			rows = append(rows, values)
		}
		sheets = append(sheets, workbookSheet{Name: table.Name, Rows: rows})
	}

	return renderSheets(sheets)
}

// --- zip helpers ---

func zipHasEntry(reader *zip.Reader, name string) bool {
	for _, file := range reader.File {
		if file.Name == name {
			return true
		}
	}
	return false
}

func decodeZipXML(reader *zip.Reader, name string, dest any) error {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		return xml.NewDecoder(rc).Decode(dest)
	}
	return fmt.Errorf("missing archive entry %s", name)
}
