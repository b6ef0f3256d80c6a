// Package plugins implements the protoc plugin protocol: decoding the
// CodeGeneratorRequest that protoc writes to a plugin's stdin and encoding the
// CodeGeneratorResponse the plugin writes back to stdout.
package plugins

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// Plugin is a code generator that generates code during protoc invocations.
type Plugin func(*CodeGenRequest, *CodeGenResponse) error

// CodeGenRequest represents the arguments to protoc that describe what code
// protoc has been requested to generate.
type CodeGenRequest struct {
	// Args are the parameters for the plugin, as tokenized by ParseParameters.
	Args []string
	// Files are all of the file descriptors in the request, in the order
	// protoc sent them. This includes dependencies of FilesToGenerate.
	Files []*descriptorpb.FileDescriptorProto
	// FilesToGenerate are the names of the files named on the protoc command
	// line.
	FilesToGenerate []string
	// The version of protoc that has invoked the plugin.
	ProtocVersion ProtocVersion
}

// CodeGenResponse is how the plugin transmits generated code to protoc.
//
// Files are emitted in the order in which they are opened with OutputFile.
type CodeGenResponse struct {
	pluginName string

	mu       sync.Mutex
	files    []*outputFile
	byName   map[string]*outputFile
	features uint64
}

type outputFile struct {
	name     string
	contents bytes.Buffer
}

// NewCodeGenResponse creates a new, empty response for the named plugin.
func NewCodeGenResponse(pluginName string) *CodeGenResponse {
	return &CodeGenResponse{pluginName: pluginName}
}

// OutputFile returns a writer for creating the file with the given name. It
// panics if a file with the same name was already opened.
func (resp *CodeGenResponse) OutputFile(name string) io.Writer {
	resp.mu.Lock()
	defer resp.mu.Unlock()

	if _, ok := resp.byName[name]; ok {
		panic(fmt.Sprintf("file %s already opened for writing by plugin %s", name, resp.pluginName))
	}
	if resp.byName == nil {
		resp.byName = map[string]*outputFile{}
	}
	f := &outputFile{name: name}
	resp.byName[name] = f
	resp.files = append(resp.files, f)
	return &f.contents
}

// SupportFeatures marks the given features as supported by the plugin. Protoc
// refuses to run plugins against proto3 files with optional fields unless
// FEATURE_PROTO3_OPTIONAL is set.
func (resp *CodeGenResponse) SupportFeatures(features ...pluginpb.CodeGeneratorResponse_Feature) {
	resp.mu.Lock()
	defer resp.mu.Unlock()
	for _, f := range features {
		resp.features |= uint64(f)
	}
}

// Features returns the bitmask of features marked as supported.
func (resp *CodeGenResponse) Features() uint64 {
	resp.mu.Lock()
	defer resp.mu.Unlock()
	return resp.features
}

// FileNames returns the names of the files opened so far, in order.
func (resp *CodeGenResponse) FileNames() []string {
	resp.mu.Lock()
	defer resp.mu.Unlock()
	names := make([]string, len(resp.files))
	for i, f := range resp.files {
		names[i] = f.name
	}
	return names
}

func (resp *CodeGenResponse) toPbResponse() *pluginpb.CodeGeneratorResponse {
	resp.mu.Lock()
	defer resp.mu.Unlock()

	respb := &pluginpb.CodeGeneratorResponse{
		SupportedFeatures: proto.Uint64(resp.features),
	}
	for _, f := range resp.files {
		name, content := f.name, f.contents.String()
		respb.File = append(respb.File, &pluginpb.CodeGeneratorResponse_File{
			Name:    &name,
			Content: &content,
		})
	}
	return respb
}

// ProtocVersion represents a version of the protoc tool.
type ProtocVersion struct {
	Major, Minor, Patch int
	Suffix              string
}

func (v ProtocVersion) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix != "" {
		if v.Suffix[0] != '-' {
			buf.WriteRune('-')
		}
		buf.WriteString(v.Suffix)
	}
	return buf.String()
}
