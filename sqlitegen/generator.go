// Package sqlitegen generates SQLite schemas from protobuf message
// definitions.
//
// Each top-level message Foo becomes two objects. The table t_Foo has one
// column per field, named by the field's number and typed according to
// MapType. The view Foo selects every column of t_Foo aliased to the field's
// declared name. Renaming a field therefore only changes the view, which is
// expected to be regenerated along with the schema, while data stored in the
// table stays addressable by tag.
package sqlitegen

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/sqlitepb/protoc-gen-sqlite/plugins"
)

// DefaultToolName is the generator name written into file headers.
const DefaultToolName = "protoc-gen-sqlite"

const fileHeader = `/**
 * Autogenerated by %s from %s
 * Date: %s
 **/

`

// File is a generated schema file.
type File struct {
	Name    string
	Content string
}

// Generator turns file descriptors into schema files. A Generator holds no
// mutable state and may be used from multiple goroutines.
type Generator struct {
	toolName    string
	now         func() time.Time
	logger      *zap.Logger
	concurrency int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for diagnostics about lossy or degenerate
// mappings. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// WithClock sets the source of the timestamp written into file headers.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithToolName sets the generator name written into file headers.
func WithToolName(name string) Option {
	return func(g *Generator) {
		g.toolName = name
	}
}

// WithConcurrency bounds how many files GenerateFiles works on at once. Values
// below one mean one.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		g.concurrency = max(n, 1)
	}
}

// New returns a Generator configured with the given options.
func New(opts ...Option) *Generator {
	g := &Generator{
		toolName:    DefaultToolName,
		now:         time.Now,
		logger:      zap.NewNop(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Plugin is a plugins.Plugin that generates one schema file for every file in
// the request, in request order.
func (g *Generator) Plugin(req *plugins.CodeGenRequest, resp *plugins.CodeGenResponse) error {
	// Nothing here depends on field presence, so proto3 optional fields are
	// handled like any other field.
	resp.SupportFeatures(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)

	sources := make(map[string]string, len(req.Files))
	for _, fd := range req.Files {
		name := OutputFilename(fd.GetName())
		if other, ok := sources[name]; ok {
			return fmt.Errorf("%s and %s would both generate %s", other, fd.GetName(), name)
		}
		sources[name] = fd.GetName()
	}

	for _, f := range g.GenerateFiles(req.Files) {
		if _, err := io.WriteString(resp.OutputFile(f.Name), f.Content); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return nil
}

// GenerateFiles generates a schema file for each of the given descriptors.
// Files are independent of one another, so they are generated concurrently;
// the result is in the same order as fds.
func (g *Generator) GenerateFiles(fds []*descriptorpb.FileDescriptorProto) []File {
	files := make([]File, len(fds))
	var grp errgroup.Group
	grp.SetLimit(g.concurrency)
	for i, fd := range fds {
		grp.Go(func() error {
			files[i] = g.GenerateFile(fd)
			return nil
		})
	}
	// GenerateFile cannot fail, so neither can Wait.
	_ = grp.Wait()
	return files
}

// GenerateFile generates the schema file for a single proto file: a header
// followed by a table and a view for each top-level message, in declaration
// order.
func (g *Generator) GenerateFile(fd *descriptorpb.FileDescriptorProto) File {
	var buf strings.Builder
	fmt.Fprintf(&buf, fileHeader, g.toolName, fd.GetName(), g.now().UTC().Format(time.RFC3339))

	owners := map[string]string{}
	claim := func(object, message string) {
		if other, ok := owners[object]; ok && other != message {
			g.logger.Warn("generated schema objects collide",
				zap.String("file", fd.GetName()),
				zap.String("object", object),
				zap.String("message", message),
				zap.String("other_message", other))
			return
		}
		owners[object] = message
	}

	for _, md := range fd.GetMessageType() {
		claim(TableName(md.GetName()), md.GetName())
		claim(ViewName(md.GetName()), md.GetName())
		buf.WriteString(g.GenerateMessageBlock(md))
	}

	return File{
		Name:    OutputFilename(fd.GetName()),
		Content: buf.String(),
	}
}

// GenerateMessageBlock returns the CREATE TABLE and CREATE VIEW statements for
// one message, each followed by a blank line. Columns appear in field
// declaration order in both statements.
//
// A message without fields yields an empty column list, which SQLite rejects;
// that is reported through the logger but not papered over.
func (g *Generator) GenerateMessageBlock(md *descriptorpb.DescriptorProto) string {
	name := md.GetName()
	table := quoteIdent(TableName(name))

	if len(md.GetField()) == 0 {
		g.logger.Warn("message has no fields, generated table and view are empty",
			zap.String("message", name))
	}

	columns := make([]string, len(md.GetField()))
	selects := make([]string, len(md.GetField()))
	for i, fld := range md.GetField() {
		column := quoteIdent(ColumnName(fld.GetNumber()))
		columns[i] = "  " + column + " " + string(g.columnType(name, fld))
		selects[i] = column + " AS " + quoteIdent(fld.GetName())
	}

	var buf strings.Builder
	buf.WriteString("CREATE TABLE " + table + " (\n")
	buf.WriteString(strings.Join(columns, ",\n"))
	buf.WriteString("\n);\n\n")

	buf.WriteString("CREATE VIEW " + quoteIdent(ViewName(name)) + " AS SELECT\n")
	buf.WriteString(strings.Join(selects, ",\n"))
	buf.WriteString("\nFROM " + table + ";\n\n")
	return buf.String()
}

func (g *Generator) columnType(message string, fld *descriptorpb.FieldDescriptorProto) SQLType {
	t := fld.GetType()
	sqlType, ok := lookupType(t)
	switch {
	case !ok:
		g.logger.Warn("unknown field type, storing as BLOB",
			zap.String("message", message),
			zap.String("field", fld.GetName()),
			zap.Int32("type", int32(t)))
		return MapType(t)
	case t == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, t == descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		g.logger.Debug("nested message stored as opaque BLOB",
			zap.String("message", message),
			zap.String("field", fld.GetName()),
			zap.String("type_name", fld.GetTypeName()))
	}
	return sqlType
}
