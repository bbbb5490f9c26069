package ingestion_test

import (
	"errors"
	"testing"

	"github.com/fabfab/doc-analyzer/ingestion"
)

func TestDetectFormatByExtension(t *testing.T) {
	cases := []struct {
		filename string
		content  []byte
		want     ingestion.DocumentFormat
	}{
		{"report.pdf", nil, ingestion.FormatPDF},
		{"contract.docx", nil, ingestion.FormatWord},
		{"memo.DOC", nil, ingestion.FormatWord},
		{"notes.txt", nil, ingestion.FormatText},
		{"readme.md", nil, ingestion.FormatText},
		{"letter.rtf", nil, ingestion.FormatRTF},
		{"data.csv", nil, ingestion.FormatTabular},
		{"data.tsv", nil, ingestion.FormatTabular},
		{"book.xlsx", nil, ingestion.FormatTabular},
		{"records.json", nil, ingestion.FormatTabular},
		{"main.go", nil, ingestion.FormatCode},
		{"script.py", nil, ingestion.FormatCode},
		{"deploy.yaml", nil, ingestion.FormatCode},
	}

	for _, tc := range cases {
		if got := ingestion.DetectFormat(tc.filename, tc.content); got != tc.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tc.filename, got, tc.want)
		}
	}
}

func TestDetectFormatDockerfileWithoutExtension(t *testing.T) {
	content := []byte("FROM alpine:3.20\nRUN apk add --no-cache curl\nCMD [\"sh\"]\n")

	if got := ingestion.DetectFormat("Dockerfile", content); got != ingestion.FormatCode {
		t.Fatalf("named Dockerfile detected as %s", got)
	}
	if got := ingestion.DetectFormat("Dockerfile.prod", content); got != ingestion.FormatCode {
		t.Fatalf("Dockerfile.prod detected as %s", got)
	}
	// Name gives nothing away, content heuristic has to carry it.
	if got := ingestion.DetectFormat("buildfile", content); got != ingestion.FormatCode {
		t.Fatalf("extension-less Dockerfile content detected as %s", got)
	}
}

func TestDetectFormatProseMentioningFromIsNotDockerfile(t *testing.T) {
	content := []byte("FROM the beginning, this letter explains the plan.\nNothing else here.\n")
	if got := ingestion.DetectFormat("letter", content); got != ingestion.FormatText {
		t.Fatalf("prose detected as %s, want text", got)
	}
}

func TestDetectFormatBinaryIsUnknown(t *testing.T) {
	content := []byte{0x7F, 'E', 'L', 'F', 0x00, 0x01, 0x02, 0x00, 0xFF}
	if got := ingestion.DetectFormat("payload", content); got != ingestion.FormatUnknown {
		t.Fatalf("binary detected as %s, want unknown", got)
	}
}

func TestIsDockerfileRequiresTwoDistinctInstructions(t *testing.T) {
	single := []byte("RUN make\nRUN make install\n")
	if ingestion.IsDockerfile("notes", single) {
		t.Fatal("repeated single instruction should not qualify")
	}

	two := []byte("FROM golang:1.23\nWORKDIR /app\n")
	if !ingestion.IsDockerfile("notes", two) {
		t.Fatal("two distinct instructions should qualify")
	}
}

func TestResolveUnknownFormat(t *testing.T) {
	_, _, err := ingestion.Resolve("payload.bin", []byte{0x00, 0x01, 0x02, 0xFF})
	if !errors.Is(err, ingestion.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestResolveFallsBackToTextForReadableContent(t *testing.T) {
	extractor, format, err := ingestion.Resolve("CHANGELOG", []byte("initial release\n"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if format != ingestion.FormatText {
		t.Fatalf("resolved as %s, want text", format)
	}
	if extractor == nil {
		t.Fatal("expected an extractor")
	}
}
