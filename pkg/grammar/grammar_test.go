package grammar

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGrammar = `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <filename_field>: source_file
  <fields>:
    WKU: patent_number
    TTL: title
INVT:
  <entity>: inventor
  <fields>:
    NAM: name
    CTY: city
CLAS:
  <entity>: classification
  <fields>:
    "[A-Z]{3}":
      <fieldname>: code
      <joiner>: <new_record>
    OCL:
      <constant>:
        <fieldname>: system
        <enum_type>: uspc_original
    ICL:
      <constant>:
        <fieldname>: system
        <enum_type>: ipc
UREF:
  <entity>: citation
  <fields>:
    <constant>:
      - <fieldname>: kind
        <enum_type>: us
    PNO:
      <fieldname>: number
      <joiner>: <new_record>
    NAM: name
FREF:
  <entity>: citation
  <fields>:
    <constant>:
      - <fieldname>: kind
        <enum_type>: foreign
    PNO:
      <fieldname>: number
      <joiner>: <new_record>
    CNT: country
ABST:
  <entity>: abstract
  <fields>:
    PAL:
      <fieldname>: text
      <joiner>: "\n"
CLMS:
  <entity>: claim
  <fields>:
    NUM: number
    PAR:
      <fieldname>: text
      <joiner>: "\n"
      <splitter>: NUM
`

func mustLoad(t *testing.T, src string) *Grammar {
	t.Helper()
	g, err := Load(strings.NewReader(src), Options{})
	require.NoError(t, err)
	return g
}

func TestLoad_Sections(t *testing.T) {
	g := mustLoad(t, validGrammar)

	root := g.Root()
	require.NotNil(t, root)
	assert.Equal(t, "PATN", root.Code)
	assert.Equal(t, "WKU", root.PrimaryKey)
	assert.Equal(t, "source_file", root.FilenameField)
	assert.Equal(t, "patent", g.RootEntity())
	assert.Equal(t, "patent_id", g.ParentColumn())

	var codes []string
	for _, s := range g.Sections() {
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"PATN", "INVT", "CLAS", "UREF", "FREF", "ABST", "CLMS"}, codes)
	assert.Equal(t, []string{"patent", "inventor", "classification", "citation", "abstract", "claim"}, g.Entities())

	_, ok := g.SectionFor("XXXX")
	assert.False(t, ok)
	assert.Nil(t, g.RulesFor("XXXX"))
	assert.Len(t, g.RulesFor("INVT"), 2)
}

func TestLoad_Behaviors(t *testing.T) {
	g := mustLoad(t, validGrammar)

	tests := []struct {
		section   string
		index     int
		column    string
		kind      BehaviorKind
		delimiter string
	}{
		{"PATN", 0, "patent_number", Direct, ""},
		{"CLAS", 0, "code", NewRecord, ""},
		{"CLAS", 1, "", Constant, ""},
		{"ABST", 0, "text", Joined, "\n"},
		{"CLMS", 0, "number", Direct, ""},
		{"CLMS", 1, "text", SplitOn, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.section+"/"+tt.kind.String(), func(t *testing.T) {
			rules := g.RulesFor(tt.section)
			require.Greater(t, len(rules), tt.index)
			r := rules[tt.index]
			assert.Equal(t, tt.column, r.Column)
			assert.Equal(t, tt.kind, r.Behavior.Kind)
			assert.Equal(t, tt.delimiter, r.Behavior.Delimiter)
		})
	}

	clms, _ := g.SectionFor("CLMS")
	assert.True(t, clms.IsMarker("NUM"))
	assert.False(t, clms.IsMarker("PAR"))

	uref, _ := g.SectionFor("UREF")
	assert.Equal(t, []ConstantValue{{Column: "kind", Value: "us"}}, uref.Constants)
}

func TestLoad_DefaultJoiner(t *testing.T) {
	src := `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    TTL:
      <fieldname>: title
`
	g, err := Load(strings.NewReader(src), Options{})
	require.NoError(t, err)
	r := g.RulesFor("PATN")[0]
	assert.Equal(t, Joined, r.Behavior.Kind)
	assert.Equal(t, DefaultJoiner, r.Behavior.Delimiter)

	g, err = Load(strings.NewReader(src), Options{DefaultJoiner: "; "})
	require.NoError(t, err)
	assert.Equal(t, "; ", g.RulesFor("PATN")[0].Behavior.Delimiter)
}

func TestSection_MatchAllRulesInOrder(t *testing.T) {
	g := mustLoad(t, validGrammar)
	clas, ok := g.SectionFor("CLAS")
	require.True(t, ok)

	matched := clas.Match("OCL")
	require.Len(t, matched, 2)
	assert.Equal(t, "code", matched[0].Column)
	assert.Equal(t, Constant, matched[1].Behavior.Kind)
	assert.Equal(t, "uspc_original", matched[1].Constants[0].Value)

	matched = clas.Match("XCL")
	require.Len(t, matched, 1)
	assert.Equal(t, "code", matched[0].Column)

	assert.Empty(t, clas.Match("OCLX"))
	assert.Empty(t, clas.Match("ocl"))
}

func TestLoad_SequenceRules(t *testing.T) {
	src := `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    WKU:
      - patent_number
      - <constant>:
          - {<fieldname>: source, <enum_type>: aps}
          - {<fieldname>: format, <enum_type>: txt}
`
	g := mustLoad(t, src)
	rules := g.RulesFor("PATN")
	require.Len(t, rules, 2)
	assert.Equal(t, Direct, rules[0].Behavior.Kind)
	assert.Len(t, rules[1].Constants, 2)
	assert.Equal(t, []string{"id", "patent_number", "source", "format"}, g.Columns("patent"))
}

func TestGrammar_Columns(t *testing.T) {
	g := mustLoad(t, validGrammar)

	tests := []struct {
		entity string
		want   []string
	}{
		{"patent", []string{"id", "source_file", "patent_number", "title"}},
		{"inventor", []string{"id", "patent_id", "name", "city"}},
		{"classification", []string{"id", "patent_id", "code", "system"}},
		{"citation", []string{"id", "patent_id", "kind", "number", "name", "country"}},
		{"claim", []string{"id", "patent_id", "number", "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Columns(tt.entity))
		})
	}

	schema := g.Schema()
	assert.Len(t, schema, 6)
	assert.Equal(t, []string{"abstract", "citation", "claim", "classification", "inventor", "patent"}, g.SortedEntities())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		errSubstr string
	}{
		{
			name:      "empty",
			src:       "",
			errSubstr: "grammar is empty",
		},
		{
			name:      "not a mapping",
			src:       "- PATN\n",
			errSubstr: "mapping of section codes",
		},
		{
			name:      "missing entity",
			src:       "PATN:\n  <primary_key>: WKU\n",
			errSubstr: "missing <entity>",
		},
		{
			name:      "bad section code",
			src:       "PAT:\n  <entity>: patent\n  <primary_key>: WKU\n",
			errSubstr: "four uppercase characters",
		},
		{
			name:      "no primary key",
			src:       "PATN:\n  <entity>: patent\n",
			errSubstr: "no section declares <primary_key>",
		},
		{
			name: "two primary keys",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
REIS:
  <entity>: reissue
  <primary_key>: PNO
`,
			errSubstr: "already declared by section PATN",
		},
		{
			name: "bad regex",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    "PA[":
      text
`,
			errSubstr: "invalid field pattern",
		},
		{
			name: "bad splitter regex",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    PAR:
      <fieldname>: text
      <splitter>: "NU("
`,
			errSubstr: "invalid splitter pattern",
		},
		{
			name: "rule without column or constant",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    TTL:
      <joiner>: ", "
`,
			errSubstr: "rule needs <fieldname> or <constant>",
		},
		{
			name: "constant without value",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    TTL:
      <constant>:
        <fieldname>: kind
`,
			errSubstr: "needs <fieldname> and <enum_type>",
		},
		{
			name: "unknown section key",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <table>: x
`,
			errSubstr: `unknown section key "<table>"`,
		},
		{
			name: "nested entity",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    INV:
      <entity>: inventor
`,
			errSubstr: "nested entities are not supported",
		},
		{
			name: "child section uses root entity",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
ABST:
  <entity>: patent
`,
			errSubstr: "reserved for the root section",
		},
		{
			name: "reserved column",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
INVT:
  <entity>: inventor
  <fields>:
    NAM: patent_id
`,
			errSubstr: `column "patent_id" is reserved`,
		},
		{
			name: "root section splits rows",
			src: `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <fields>:
    TTL:
      <fieldname>: title
      <joiner>: <new_record>
`,
			errSubstr: "new_record rules are not allowed in the root section",
		},
		{
			name:      "invalid yaml",
			src:       "PATN: [\n",
			errSubstr: "invalid YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src), Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %T", err)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("does/not/exist.yaml", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open grammar")
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		pattern string
		code    string
		exact   bool
		want    bool
	}{
		{"PAR", "PAR", true, true},
		{"PAR", "PARN", true, false},
		{"PATN", "PATN", true, true},
		{"PA[RL0-9]", "PA1", false, true},
		{"PA[RL0-9]", "PAC", false, false},
		{"[A-Z]{3}", "OCL", false, true},
		{"[A-Z]{3}", "OCLX", false, false},
		{"N.M", "NAM", false, true},
		{"O|X", "OX", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.code, func(t *testing.T) {
			m, err := NewMatcher(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.exact, m.IsExact())
			assert.Equal(t, tt.want, m.Match(tt.code))
		})
	}
}

func TestBehaviorKind_String(t *testing.T) {
	assert.Equal(t, "direct", Direct.String())
	assert.Equal(t, "joined", Joined.String())
	assert.Equal(t, "split_on", SplitOn.String())
	assert.Equal(t, "new_record", NewRecord.String())
	assert.Equal(t, "constant", Constant.String())
	assert.Equal(t, "unknown", BehaviorKind(99).String())
}
