package cliserver

import (
	"encoding/json"
	"sort"
)

// QueryInfoByLanguage is the output of "resolve queries --format bylanguage".
type QueryInfoByLanguage struct {
	ByLanguage                map[string]map[string]json.RawMessage `json:"byLanguage"`
	NoDeclaredLanguage        map[string]json.RawMessage            `json:"noDeclaredLanguage"`
	MultipleDeclaredLanguages map[string]json.RawMessage            `json:"multipleDeclaredLanguages"`
}

// DbInfo is the output of "resolve database".
type DbInfo struct {
	SourceLocationPrefix string   `json:"sourceLocationPrefix"`
	ColumnKind           string   `json:"columnKind"`
	UnicodeNewlines      bool     `json:"unicodeNewlines"`
	SourceArchiveZip     string   `json:"sourceArchiveZip"`
	SourceArchiveRoot    string   `json:"sourceArchiveRoot"`
	DatasetFolder        string   `json:"datasetFolder"`
	LogsFolder           string   `json:"logsFolder"`
	Languages            []string `json:"languages"`
}

// UpgradesInfo is the output of "resolve upgrades".
type UpgradesInfo struct {
	Scripts       []string `json:"scripts"`
	FinalDbscheme string   `json:"finalDbscheme"`
	MatchesTarget *bool    `json:"matchesTarget,omitempty"`
}

// QlpacksInfo maps a pack name to the directories it was found in.
type QlpacksInfo map[string][]string

// LanguagesInfo maps a language to its extractor directories.
type LanguagesInfo map[string][]string

// MlModelInfo describes one model found by "resolve ml-models".
type MlModelInfo struct {
	Checksum string `json:"checksum"`
	Path     string `json:"path"`
}

// MlModelsInfo is the output of "resolve ml-models".
type MlModelsInfo struct {
	Models []MlModelInfo `json:"models"`
}

// DataExtensionResult is one data extension row location.
type DataExtensionResult struct {
	Predicate string `json:"predicate"`
	File      string `json:"file"`
	Index     int    `json:"index"`
}

// ResolveExtensionsResult is the output of "resolve extensions".
type ResolveExtensionsResult struct {
	Models []MlModelInfo                    `json:"models"`
	Data   map[string][]DataExtensionResult `json:"data"`
}

// ExtensiblePredicateMetadata is the subset of
// "generate extensible-predicate-metadata" output this client reads.
type ExtensiblePredicateMetadata struct {
	ExtensiblePredicates []struct {
		Path string `json:"path"`
	} `json:"extensible_predicates"`
}

// QlrefInfo is the output of "resolve qlref".
type QlrefInfo struct {
	ResolvedPath string `json:"resolvedPath"`
}

// SourceInfo locates a database's source archive. Interpretation takes both
// fields or neither, so it is passed as a pointer.
type SourceInfo struct {
	SourceArchive        string
	SourceLocationPrefix string
}

// QueryMetadata is the output of "resolve metadata". Every non-empty field is
// forwarded to "bqrs interpret" as "-t=<key>=<value>".
type QueryMetadata struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	ID          string `json:"id,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Precision   string `json:"precision,omitempty"`
	Tags        string `json:"tags,omitempty"`
	Scored      *bool  `json:"scored,omitempty"`
}

// interpretFlags returns the metadata as sorted "-t=key=value" flags.
func (m QueryMetadata) interpretFlags() []string {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, "-t="+k+"="+toFlagValue(fields[k]))
	}
	return out
}

func toFlagValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Position is a source range reported by the compiler.
type Position struct {
	FileName  string `json:"fileName"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
}

// CompilationMessage is a compiler error or warning attached to a test.
type CompilationMessage struct {
	Message  string   `json:"message"`
	Position Position `json:"position"`
	Severity int      `json:"severity"`
}

// TestCompleted is one event of "test run".
type TestCompleted struct {
	Test               string               `json:"test"`
	Pass               bool                 `json:"pass"`
	Messages           []CompilationMessage `json:"messages"`
	CompilationMs      int64                `json:"compilationMs"`
	EvaluationMs       int64                `json:"evaluationMs"`
	Expected           string               `json:"expected"`
	Actual             string               `json:"actual,omitempty"`
	Diff               []string             `json:"diff,omitempty"`
	FailureDescription string               `json:"failureDescription,omitempty"`
	FailureStage       string               `json:"failureStage,omitempty"`
}

// BqrsColumn describes one result column.
type BqrsColumn struct {
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`
}

// BqrsPagination holds precomputed page offsets.
type BqrsPagination struct {
	StepSize int     `json:"step-size"`
	Offsets  []int64 `json:"offsets"`
}

// BqrsResultSetSchema describes one result set in a bqrs file.
type BqrsResultSetSchema struct {
	Name       string          `json:"name"`
	Rows       int             `json:"rows"`
	Columns    []BqrsColumn    `json:"columns"`
	Pagination *BqrsPagination `json:"pagination,omitempty"`
}

// BqrsInfo is the output of "bqrs info".
type BqrsInfo struct {
	ResultSets           []BqrsResultSetSchema `json:"result-sets"`
	CompatibleQueryKinds []string              `json:"compatible-query-kinds"`
}

// DecodedBqrsChunk is one page of "bqrs decode" output. Cells are left raw:
// they may be strings, numbers, booleans or entity objects.
type DecodedBqrsChunk struct {
	Columns []BqrsColumn        `json:"columns"`
	Tuples  [][]json.RawMessage `json:"tuples"`
	Next    *int64              `json:"next,omitempty"`
}

// DecodedBqrs maps a result set name to its decoded contents.
type DecodedBqrs map[string]DecodedBqrsChunk

// SortDirection orders a sort key.
type SortDirection int

const (
	SortAsc SortDirection = iota
	SortDesc
)

func (d SortDirection) String() string {
	if d == SortDesc {
		return "desc"
	}
	return "asc"
}

// BqrsDecodeOptions selects a page of a result set. Zero values mean the
// codeql default.
type BqrsDecodeOptions struct {
	PageSize int
	Offset   int64
	// Entities defaults to url and string.
	Entities []string
}

// PackInstallOptions configures "pack install".
type PackInstallOptions struct {
	ForceUpdate      bool
	WorkspaceFolders []string
}

// QueryLanguage is a language with first-class query support.
type QueryLanguage string

const (
	LanguageCpp        QueryLanguage = "cpp"
	LanguageCSharp     QueryLanguage = "csharp"
	LanguageGo         QueryLanguage = "go"
	LanguageJava       QueryLanguage = "java"
	LanguageJavaScript QueryLanguage = "javascript"
	LanguagePython     QueryLanguage = "python"
	LanguageRuby       QueryLanguage = "ruby"
	LanguageSwift      QueryLanguage = "swift"
)

// KnownLanguages lists every QueryLanguage.
var KnownLanguages = []QueryLanguage{
	LanguageCpp, LanguageCSharp, LanguageGo, LanguageJava,
	LanguageJavaScript, LanguagePython, LanguageRuby, LanguageSwift,
}
