package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/apstab/pkg/grammar"
)

// PatentGrammar covers the rule kinds the interpreter supports.
const PatentGrammar = `
PATN:
  <entity>: patent
  <primary_key>: WKU
  <filename_field>: source_file
  <fields>:
    WKU: patent_number
    TTL: title
    APD: application_date
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
    NAM: cited_by
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
DCLM:
  <entity>: design_claim
  <fields>:
    NUM: number
    PAR:
      <fieldname>: text
      <joiner>: "|#|"
CLMS:
  <entity>: claim
  <fields>:
    NUM: number
    "PA[RL0-9]":
      <fieldname>: text
      <joiner>: "\n"
      <splitter>: NUM
`

// MustGrammar loads a grammar from src.
func MustGrammar(t testing.TB, src string) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Load(strings.NewReader(src), grammar.Options{})
	if err != nil {
		t.Fatalf("load grammar: %v", err)
	}
	return g
}

// WriteFile writes content under dir and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
