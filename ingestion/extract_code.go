package ingestion

// CodeExtractor handles source code and config files. The output metadata
// carries a language tag inferred from the extension, or from the
// Dockerfile instruction heuristic for extension-less files.
type CodeExtractor struct {
	Filename  string
	Extension string
}

func (e CodeExtractor) Extract(content []byte) (string, map[string]string, error) {
	language := codeLanguages[e.Extension]
	if language == "" {
		if IsDockerfile(e.Filename, content) {
			language = "dockerfile"
		} else {
			language = "unknown"
		}
	}

	meta := map[string]string{"language": language}
	if e.Extension != "" {
		meta["extension"] = e.Extension
	}
	return normalizePlainText(decodeText(content)), meta, nil
}

var _ Extractor = CodeExtractor{}
