// Package snapshot materializes an introspected schema into a portable
// document.
//
// A Document is the fully resolved form of a schema.Schema: every table's
// columns and indexes and every view name, captured at one point in time.
// Documents carry a content digest over their structure, so two captures of
// an unchanged schema are recognizably identical no matter when they were
// taken. The Publisher in this package writes documents to an object store,
// using the digest to skip uploads of unchanged schemas.
package snapshot

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.yaml.in/yaml/v3"

	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/schema"
)

// Document is one captured schema snapshot.
type Document struct {
	// ID uniquely identifies this capture.
	ID string `yaml:"id"`

	// SchemaName is the schema the capture was taken from.
	SchemaName string `yaml:"schema"`

	// CapturedAt is the UTC capture time.
	CapturedAt time.Time `yaml:"capturedAt"`

	// Digest is the hex BLAKE3-256 digest of the document body (tables and
	// views only). Identical structure yields an identical digest.
	Digest string `yaml:"digest"`

	Tables []Table  `yaml:"tables"`
	Views  []string `yaml:"views,omitempty"`
}

// Table is the materialized form of one introspected table.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
	Indexes []Index  `yaml:"indexes,omitempty"`
}

// Column mirrors schema.Column with serialization tags. Type is the
// canonical data type name.
type Column struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Width           int    `yaml:"width,omitempty"`
	Scale           int    `yaml:"scale,omitempty"`
	Nullable        bool   `yaml:"nullable,omitempty"`
	DefaultValue    string `yaml:"default,omitempty"`
	PrimaryKey      bool   `yaml:"primaryKey,omitempty"`
	AutoNumbered    bool   `yaml:"autoNumbered,omitempty"`
	AutoNumberStart int    `yaml:"autoNumberStart,omitempty"`
}

// Index mirrors schema.Index with serialization tags.
type Index struct {
	Name    string   `yaml:"name"`
	Unique  bool     `yaml:"unique,omitempty"`
	Columns []string `yaml:"columns"`
}

// Capture resolves every table and view of s into a Document. The document
// gets a fresh ID, the current UTC time, and a digest over its structure.
func Capture(ctx context.Context, schemaName string, s schema.Schema) (*Document, error) {
	if s == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "schema must not be nil")
	}

	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing schema [%s]: %w", schemaName, err)
	}

	doc := &Document{
		ID:         uuid.New().String(),
		SchemaName: schemaName,
		CapturedAt: time.Now().UTC(),
	}

	for _, t := range tables {
		materialized, err := materializeTable(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("capturing table [%s] of schema [%s]: %w", t.Name(), schemaName, err)
		}
		doc.Tables = append(doc.Tables, materialized)
	}

	views, err := s.ViewNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing views of schema [%s]: %w", schemaName, err)
	}
	doc.Views = views

	digest, err := bodyDigest(doc.Tables, doc.Views)
	if err != nil {
		return nil, fmt.Errorf("digesting schema [%s]: %w", schemaName, err)
	}
	doc.Digest = digest

	return doc, nil
}

func materializeTable(ctx context.Context, t schema.Table) (Table, error) {
	columns, err := t.Columns(ctx)
	if err != nil {
		return Table{}, err
	}
	indexes, err := t.Indexes(ctx)
	if err != nil {
		return Table{}, err
	}

	out := Table{Name: t.Name()}
	for _, c := range columns {
		out.Columns = append(out.Columns, Column{
			Name:            c.Name,
			Type:            c.Type.String(),
			Width:           c.Width,
			Scale:           c.Scale,
			Nullable:        c.Nullable,
			DefaultValue:    c.DefaultValue,
			PrimaryKey:      c.PrimaryKey,
			AutoNumbered:    c.AutoNumbered,
			AutoNumberStart: c.AutoNumberStart,
		})
	}
	for _, ix := range indexes {
		out.Indexes = append(out.Indexes, Index{
			Name:    ix.Name,
			Unique:  ix.Unique,
			Columns: ix.Columns,
		})
	}
	return out, nil
}

// documentBody is the digested subset of a Document. ID and capture time are
// excluded so that structurally identical captures share a digest.
type documentBody struct {
	Tables []Table  `yaml:"tables"`
	Views  []string `yaml:"views,omitempty"`
}

func bodyDigest(tables []Table, views []string) (string, error) {
	raw, err := yaml.Marshal(documentBody{Tables: tables, Views: views})
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Encode writes the document to w as YAML.
func (d *Document) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding snapshot [%s]: %w", d.ID, err)
	}
	return enc.Close()
}

// Decode reads a YAML document from r.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed snapshot document", err)
	}
	return &doc, nil
}
