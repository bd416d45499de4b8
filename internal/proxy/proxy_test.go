package proxy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modelcore/internal/ir"
)

func prop(name, typ string) ir.PropertySchema {
	return ir.PropertySchema{Name: name, Type: ir.MustParseTypeRef(typ)}
}

var (
	bookSchema = ir.NewStructSchema(ir.T("Book"),
		prop("title", "string"),
		prop("pages", "int"),
		prop("tags", "list"),
	)
	authorSchema  = ir.NewStructSchema(ir.T("Author"), prop("name", "string"))
	librarySchema = ir.NewStructSchema(ir.T("Library"),
		prop("name", "string"),
		prop("curator", "Author"),
		prop("books", "ManagedSet<Book>"),
	)
)

func booksSet(t *testing.T, f *Factory) *Set {
	t.Helper()
	coll, err := ir.NewCollectionSchema(ir.T("ManagedSet", ir.T("Book")))
	require.NoError(t, err)
	s, err := NewSet(coll, bookSchema, f.New)
	require.NoError(t, err)
	return s
}

// =============================================================================
// Instance
// =============================================================================

func TestNewAllocatesUnsetInstance(t *testing.T) {
	f := NewFactory()

	inst, err := f.New(bookSchema)
	require.NoError(t, err)

	assert.Equal(t, "Book", inst.Type().Name)
	assert.Same(t, bookSchema, inst.Schema())
	for _, p := range bookSchema.Properties {
		v, err := inst.Get(p.Name)
		require.NoError(t, err)
		assert.Nil(t, v, p.Name)
		assert.False(t, inst.IsSet(p.Name))
	}
}

func TestNewRejectsNonStruct(t *testing.T) {
	f := NewFactory()
	coll, err := ir.NewCollectionSchema(ir.T("ManagedSet", ir.T("Book")))
	require.NoError(t, err)

	_, err = f.New(coll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot allocate collection schema")

	_, err = f.New(nil)
	assert.Error(t, err)
}

func TestInstancesDoNotShareState(t *testing.T) {
	f := NewFactory()
	a, err := f.New(bookSchema)
	require.NoError(t, err)
	b, err := f.New(bookSchema)
	require.NoError(t, err)

	require.NoError(t, a.Set("title", "Dune"))

	assert.True(t, a.IsSet("title"))
	assert.False(t, b.IsSet("title"))
	assert.Same(t, a.table, b.table, "field table is built once per schema")
}

func TestSetConvertsGoValues(t *testing.T) {
	f := NewFactory()
	inst, err := f.New(bookSchema)
	require.NoError(t, err)

	require.NoError(t, inst.Set("title", "Dune"))
	require.NoError(t, inst.Set("pages", 412))
	require.NoError(t, inst.Set("tags", []any{"sf", "classic"}))

	title, ok, err := ValueOf[ir.String](inst, "title")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ir.String("Dune"), title)

	pages, ok, err := ValueOf[ir.Int](inst, "pages")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ir.Int(412), pages)

	tags, ok, err := ValueOf[ir.List](inst, "tags")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ir.List{ir.String("sf"), ir.String("classic")}, tags)
}

func TestSetNullUnsets(t *testing.T) {
	f := NewFactory()
	inst, err := f.New(bookSchema)
	require.NoError(t, err)

	require.NoError(t, inst.Set("title", "Dune"))
	require.NoError(t, inst.Set("title", nil))
	assert.False(t, inst.IsSet("title"))

	require.NoError(t, inst.Set("title", "Dune"))
	require.NoError(t, inst.Set("title", ir.Null{}))
	assert.False(t, inst.IsSet("title"))
}

func TestSetErrors(t *testing.T) {
	f := NewFactory()
	inst, err := f.New(librarySchema)
	require.NoError(t, err)

	tests := []struct {
		name   string
		prop   string
		value  any
		reason string
	}{
		{"unknown property", "address", "x", "no such property"},
		{"type mismatch", "name", 42, "cannot assign int value to string property"},
		{"float", "name", 1.5, "floats are forbidden"},
		{"managed struct", "curator", "bob", "cannot be reassigned"},
		{"managed set", "books", []any{}, "cannot be reassigned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inst.Set(tt.prop, tt.value)
			require.Error(t, err)
			assert.True(t, IsPropertyError(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestGetUnknownProperty(t *testing.T) {
	f := NewFactory()
	inst, err := f.New(bookSchema)
	require.NoError(t, err)

	_, err = inst.Get("isbn")
	require.Error(t, err)

	var pe *PropertyError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "isbn", pe.Property)
	assert.Equal(t, "Book.isbn: no such property", err.Error())
	assert.False(t, inst.IsSet("isbn"))
}

func TestValueOfWrongType(t *testing.T) {
	f := NewFactory()
	inst, err := f.New(bookSchema)
	require.NoError(t, err)
	require.NoError(t, inst.Set("title", "Dune"))

	_, ok, err := ValueOf[ir.Int](inst, "title")
	assert.False(t, ok)
	assert.True(t, IsPropertyError(err))

	_, ok, err = ValueOf[ir.Int](inst, "pages")
	assert.False(t, ok)
	assert.NoError(t, err)
}

// =============================================================================
// Bind
// =============================================================================

func TestBindManagedChildren(t *testing.T) {
	f := NewFactory()
	lib, err := f.New(librarySchema)
	require.NoError(t, err)
	curator, err := f.New(authorSchema)
	require.NoError(t, err)
	books := booksSet(t, f)

	require.NoError(t, lib.Bind("curator", curator))
	require.NoError(t, lib.Bind("books", books))

	got, err := lib.Get("curator")
	require.NoError(t, err)
	assert.Same(t, curator, got)

	got, err = lib.Get("books")
	require.NoError(t, err)
	assert.Same(t, books, got)
}

func TestBindErrors(t *testing.T) {
	f := NewFactory()
	lib, err := f.New(librarySchema)
	require.NoError(t, err)
	book, err := f.New(bookSchema)
	require.NoError(t, err)
	curator, err := f.New(authorSchema)
	require.NoError(t, err)
	require.NoError(t, lib.Bind("curator", curator))

	tests := []struct {
		name   string
		prop   string
		child  any
		reason string
	}{
		{"scalar", "name", book, "scalar property cannot be bound"},
		{"already bound", "curator", curator, "already bound"},
		{"wrong type", "books", book, "cannot bind Book to ManagedSet<Book> property"},
		{"not managed", "books", "x", "cannot bind string"},
		{"unknown", "shelves", book, "no such property"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lib.Bind(tt.prop, tt.child)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

// =============================================================================
// Set
// =============================================================================

func TestSetCreateKeepsOrder(t *testing.T) {
	f := NewFactory()
	books := booksSet(t, f)

	assert.Equal(t, "ManagedSet<Book>", books.Type().DisplayName())
	assert.Equal(t, "Book", books.ElementType().Name)
	assert.Equal(t, 0, books.Len())

	for _, title := range []string{"Dune", "Emma", "Ubik"} {
		_, err := books.Create(func(b *Instance) error {
			return b.Set("title", title)
		})
		require.NoError(t, err)
	}

	require.Equal(t, 3, books.Len())
	var titles []string
	for _, b := range books.Elements() {
		v, _, err := ValueOf[ir.String](b, "title")
		require.NoError(t, err)
		titles = append(titles, string(v))
	}
	assert.Equal(t, []string{"Dune", "Emma", "Ubik"}, titles)
}

func TestSetCreateInitFailureDoesNotAdd(t *testing.T) {
	f := NewFactory()
	books := booksSet(t, f)

	_, err := books.Create(func(b *Instance) error {
		return b.Set("pages", "many")
	})
	require.Error(t, err)
	assert.Equal(t, 0, books.Len())
}

func TestNewSetErrors(t *testing.T) {
	f := NewFactory()
	coll, err := ir.NewCollectionSchema(ir.T("ManagedSet", ir.T("Book")))
	require.NoError(t, err)

	_, err = NewSet(bookSchema, bookSchema, f.New)
	assert.Error(t, err)

	_, err = NewSet(coll, authorSchema, f.New)
	assert.ErrorContains(t, err, "does not match ManagedSet<Book>")

	_, err = NewSet(coll, bookSchema, nil)
	assert.ErrorContains(t, err, "allocator")
}

// =============================================================================
// Snapshot and views
// =============================================================================

func TestSnapshotNested(t *testing.T) {
	f := NewFactory()
	lib, err := f.New(librarySchema)
	require.NoError(t, err)
	curator, err := f.New(authorSchema)
	require.NoError(t, err)
	books := booksSet(t, f)
	require.NoError(t, lib.Bind("curator", curator))
	require.NoError(t, lib.Bind("books", books))

	require.NoError(t, lib.Set("name", "Central"))
	require.NoError(t, curator.Set("name", "Ada"))
	_, err = books.Create(func(b *Instance) error { return b.Set("title", "Dune") })
	require.NoError(t, err)

	want := ir.NewObject(
		ir.O("name", ir.String("Central")),
		ir.O("curator", ir.NewObject(ir.O("name", ir.String("Ada")))),
		ir.O("books", ir.List{ir.NewObject(ir.O("title", ir.String("Dune")))}),
	)
	assert.Equal(t, want, lib.Snapshot())
}

func TestReadOnlyView(t *testing.T) {
	f := NewFactory()
	lib, err := f.New(librarySchema)
	require.NoError(t, err)
	curator, err := f.New(authorSchema)
	require.NoError(t, err)
	books := booksSet(t, f)
	require.NoError(t, lib.Bind("curator", curator))
	require.NoError(t, lib.Bind("books", books))
	require.NoError(t, lib.Set("name", "Central"))
	_, err = books.Create(nil)
	require.NoError(t, err)

	view := ReadOnly(lib)
	assert.Equal(t, "Library", view.Type().Name)

	name, ok, err := ValueOf[ir.String](view, "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ir.String("Central"), name)

	err = view.Set("name", "Other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only view")

	err = view.Set("missing", "x")
	assert.Contains(t, err.Error(), "no such property")

	nested, err := view.Get("curator")
	require.NoError(t, err)
	nestedView, ok := nested.(Managed)
	require.True(t, ok)
	assert.Error(t, nestedView.Set("name", "Eve"))

	raw, err := view.Get("books")
	require.NoError(t, err)
	setView, ok := raw.(*SetView)
	require.True(t, ok)
	assert.Equal(t, 1, setView.Len())
	assert.Equal(t, "Book", setView.ElementType().Name)
	assert.Equal(t, "ManagedSet<Book>", setView.Type().DisplayName())
	assert.Error(t, setView.Elements()[0].Set("title", "x"))
}

func TestReadOnlyViewCopiesCompositeValues(t *testing.T) {
	f := NewFactory()
	book, err := f.New(bookSchema)
	require.NoError(t, err)
	require.NoError(t, book.Set("tags", ir.List{ir.String("classic")}))

	raw, err := ReadOnly(book).Get("tags")
	require.NoError(t, err)
	raw.(ir.List)[0] = ir.String("changed")

	tags, ok, err := ValueOf[ir.List](book, "tags")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.List{ir.String("classic")}, tags)
}
