// Command protoc-gen-sqlite is a protoc plugin that generates SQLite schemas
// from protobuf message definitions.
//
// For every input file foo.proto it generates foo.sqlite. Each top-level
// message Foo becomes a table t_Foo, with one column per field named by the
// field's number, and a view Foo that selects those columns under the fields'
// names:
//
//	protoc --sqlite_out=. foo.proto
//
// Diagnostics are written to stderr. Their verbosity is set with the
// PROTOC_GEN_SQLITE_LOG_LEVEL environment variable (default "warn").
package main

import "github.com/sqlitepb/protoc-gen-sqlite/app/sqliteplugin"

func main() {
	sqliteplugin.Main()
}
