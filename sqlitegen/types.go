package sqlitegen

import "google.golang.org/protobuf/types/descriptorpb"

// SQLType is the declared type of a column in a generated table.
type SQLType string

// Column types used by generated tables.
const (
	Double  SQLType = "DOUBLE"
	Float   SQLType = "FLOAT"
	Integer SQLType = "INTEGER"
	Text    SQLType = "TEXT"
	Blob    SQLType = "BLOB"
)

// sqlTypes is indexed by field type. Zero entries are kinds with no mapping.
var sqlTypes = [...]SQLType{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   Double,
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    Float,
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    Integer,
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   Integer,
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    Integer,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  Integer,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  Integer,
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     Integer,
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   Text,
	descriptorpb.FieldDescriptorProto_TYPE_GROUP:    Blob,
	descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:  Blob,
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    Blob,
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   Integer,
	descriptorpb.FieldDescriptorProto_TYPE_ENUM:     Text,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: Integer,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: Integer,
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   Integer,
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   Integer,
}

// MapType returns the column type used to store a field of the given type.
// Every type has an answer: types not in the table, including ones added to
// protobuf after this was written, are stored as BLOB.
func MapType(t descriptorpb.FieldDescriptorProto_Type) SQLType {
	if sqlType, ok := lookupType(t); ok {
		return sqlType
	}
	return Blob
}

func lookupType(t descriptorpb.FieldDescriptorProto_Type) (SQLType, bool) {
	if t < 0 || int(t) >= len(sqlTypes) || sqlTypes[t] == "" {
		return "", false
	}
	return sqlTypes[t], true
}
