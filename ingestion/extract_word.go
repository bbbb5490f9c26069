package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// oleSignature is the compound-file header used by legacy .doc files and by
// password-protected OOXML containers.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// WordExtractor extracts paragraph text from .docx archives. Legacy binary
// .doc payloads and encrypted containers are rejected with an
// ExtractionError rather than parsed.
type WordExtractor struct {
	Extension string
}

func (e WordExtractor) Extract(content []byte) (string, map[string]string, error) {
	if bytes.HasPrefix(content, oleSignature) {
		return "", nil, extractionError(FormatWord,
			"binary compound document (password-protected or legacy .doc); re-save as .docx")
	}

	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, extractionError(FormatWord, "not a valid docx archive: %v", err)
	}

	var docXML []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, openErr := file.Open()
		if openErr != nil {
			return "", nil, extractionError(FormatWord, "open document body: %v", openErr)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", nil, extractionError(FormatWord, "read document body: %v", err)
		}
		break
	}
	if docXML == nil {
		return "", nil, extractionError(FormatWord, "archive has no word/document.xml entry")
	}

	text, err := wordBodyText(docXML)
	if err != nil {
		return "", nil, extractionError(FormatWord, "parse document body: %v", err)
	}

	return normalizePlainText(text), map[string]string{}, nil
}

// wordBodyText walks document.xml tokens instead of decoding into a fixed
// struct so text inside tables and nested containers is kept too.
func wordBodyText(docXML []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	var sb strings.Builder

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var run string
				if err := decoder.DecodeElement(&run, &t); err != nil {
					return "", err
				}
				sb.WriteString(run)
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		}
	}

	return sb.String(), nil
}

var _ Extractor = WordExtractor{}
