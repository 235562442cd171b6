package schema

import (
	"errors"
	"fmt"
)

// ErrViewFromDatabase reports that a view came from catalog discovery and
// therefore knows only its name. Its defining statement and dependencies
// exist only for views authored in source.
var ErrViewFromDatabase = errors.New("view was loaded from the database")

// View describes a database view. Introspected views answer only Name;
// Definition and Dependencies fail with ErrViewFromDatabase for them.
type View interface {
	// Name returns the view name with its catalog-original casing.
	Name() string

	// Definition returns the view's defining SQL statement.
	Definition() (string, error)

	// Dependencies returns the names of the entities the view reads from.
	Dependencies() ([]string, error)
}

// NewView builds a source-authored view that knows its definition and
// dependencies. Providers do not use this; it exists for callers that mix
// authored views into a schema (e.g. when preparing a deployment).
func NewView(name, definition string, dependencies ...string) View {
	return &authoredView{name: name, definition: definition, dependencies: dependencies}
}

type authoredView struct {
	name         string
	definition   string
	dependencies []string
}

func (v *authoredView) Name() string                    { return v.name }
func (v *authoredView) Definition() (string, error)     { return v.definition, nil }
func (v *authoredView) Dependencies() ([]string, error) { return v.dependencies, nil }

// DatabaseView builds the name-only facade used for views discovered in a
// live database.
func DatabaseView(name string) View {
	return &databaseView{name: name}
}

type databaseView struct {
	name string
}

func (v *databaseView) Name() string { return v.name }

func (v *databaseView) Definition() (string, error) {
	return "", fmt.Errorf("cannot return the definition of view [%s]: %w", v.name, ErrViewFromDatabase)
}

func (v *databaseView) Dependencies() ([]string, error) {
	return nil, fmt.Errorf("cannot return the dependencies of view [%s]: %w", v.name, ErrViewFromDatabase)
}
