package codegen

// SourceMapEntry is one generated-line-to-source-position record, per
// spec.md §4.5 "line-granular map from generated line to {ml_file,
// ml_line, ml_column}".
type SourceMapEntry struct {
	TargetLine int    `json:"target_line"`
	MLFile     string `json:"ml_file"`
	MLLine     int    `json:"ml_line"`
	MLColumn   int    `json:"ml_column"`
}

// SourceMap is the ordered collection of entries a generation pass
// records, one per emitted target line that has a traceable ML origin
// (blank lines and synthetic scaffolding carry no entry).
type SourceMap struct {
	File    string           `json:"file"`
	Entries []SourceMapEntry `json:"entries"`
}

func (sm *SourceMap) record(targetLine int, mlFile string, mlLine, mlColumn int) {
	sm.Entries = append(sm.Entries, SourceMapEntry{
		TargetLine: targetLine,
		MLFile:     mlFile,
		MLLine:     mlLine,
		MLColumn:   mlColumn,
	})
}
