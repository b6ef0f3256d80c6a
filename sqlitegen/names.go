package sqlitegen

import (
	"path"
	"strconv"
	"strings"
)

// FileExtension is the extension of generated schema files.
const FileExtension = ".sqlite"

const tablePrefix = "t_"

// OutputFilename returns the name of the schema file generated for the given
// proto file: its last extension is replaced with FileExtension. Leading dots
// of the final path element do not start an extension.
//
//	orders.proto   -> orders.sqlite
//	foo/bar.proto  -> foo/bar.sqlite
//	noext          -> noext.sqlite
func OutputFilename(protoName string) string {
	dir, file := path.Split(protoName)
	if i := strings.LastIndexByte(file, '.'); i > 0 && strings.TrimLeft(file[:i], ".") != "" {
		file = file[:i]
	}
	return dir + file + FileExtension
}

// TableName is the name of the table that stores messages of the given type.
func TableName(messageName string) string {
	return tablePrefix + messageName
}

// ViewName is the name of the view that presents the table for the given
// message type with field names as column names.
func ViewName(messageName string) string {
	return messageName
}

// ColumnName is the name of the table column that stores the field with the
// given number. Tags never change when a field is renamed, so the physical
// layout survives schema evolution.
func ColumnName(number int32) string {
	return strconv.FormatInt(int64(number), 10)
}

// quoteIdent quotes name as an SQLite identifier.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
