package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

func testRequest() *pluginpb.CodeGeneratorRequest {
	return &pluginpb.CodeGeneratorRequest{
		FileToGenerate: []string{"b.proto"},
		Parameter:      proto.String(`foo,bar="1,2"`),
		ProtoFile: []*descriptorpb.FileDescriptorProto{
			{Name: proto.String("a.proto")},
			{Name: proto.String("b.proto"), Dependency: []string{"a.proto"}},
		},
		CompilerVersion: &pluginpb.Version{
			Major:  proto.Int32(25),
			Minor:  proto.Int32(1),
			Patch:  proto.Int32(0),
			Suffix: proto.String("rc1"),
		},
	}
}

func TestDecodeRequest(t *testing.T) {
	b, err := proto.Marshal(testRequest())
	if err != nil {
		t.Fatal(err)
	}
	req, err := DecodeRequest(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"foo", `bar="1`, `2"`}, req.Args); diff != "" {
		t.Errorf("wrong args (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b.proto"}, req.FilesToGenerate); diff != "" {
		t.Errorf("wrong files to generate (-want +got):\n%s", diff)
	}
	var names []string
	for _, fd := range req.Files {
		names = append(names, fd.GetName())
	}
	if diff := cmp.Diff([]string{"a.proto", "b.proto"}, names); diff != "" {
		t.Errorf("wrong file order (-want +got):\n%s", diff)
	}
	if v := req.ProtocVersion.String(); v != "25.1.0-rc1" {
		t.Errorf("wrong protoc version: %s", v)
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	// field 1, length 5, but only two bytes follow
	_, err := DecodeRequest([]byte("\x0a\x05ab"))
	if !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
}

func TestDecodeRequest_BadParameter(t *testing.T) {
	b, err := proto.Marshal(&pluginpb.CodeGeneratorRequest{Parameter: proto.String(`"open`)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeRequest(b); err == nil {
		t.Fatal("expected error for unterminated quote in parameter")
	}
}

func TestDecodeRequest_LiteralQuoteInParameter(t *testing.T) {
	b, err := proto.Marshal(&pluginpb.CodeGeneratorRequest{Parameter: proto.String(`name=it's,x`)})
	if err != nil {
		t.Fatal(err)
	}
	req, err := DecodeRequest(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{`name=it's`, "x"}, req.Args); diff != "" {
		t.Errorf("wrong args (-want +got):\n%s", diff)
	}
}

func TestRunPlugin(t *testing.T) {
	in, err := proto.Marshal(testRequest())
	if err != nil {
		t.Fatal(err)
	}

	var got *CodeGenRequest
	plugin := func(req *CodeGenRequest, resp *CodeGenResponse) error {
		got = req
		resp.SupportFeatures(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)
		// opened in reverse lexical order to check that order is kept
		for _, name := range []string{"z.txt", "m.txt", "a.txt"} {
			if _, err := io.WriteString(resp.OutputFile(name), "contents of "+name); err != nil {
				return err
			}
		}
		return nil
	}

	var out bytes.Buffer
	if err := RunPlugin("protoc-gen-test", plugin, bytes.NewReader(in), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("plugin was not invoked")
	}

	var respb pluginpb.CodeGeneratorResponse
	if err := proto.Unmarshal(out.Bytes(), &respb); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	expected := &pluginpb.CodeGeneratorResponse{
		SupportedFeatures: proto.Uint64(uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)),
		File: []*pluginpb.CodeGeneratorResponse_File{
			{Name: proto.String("z.txt"), Content: proto.String("contents of z.txt")},
			{Name: proto.String("m.txt"), Content: proto.String("contents of m.txt")},
			{Name: proto.String("a.txt"), Content: proto.String("contents of a.txt")},
		},
	}
	if diff := cmp.Diff(expected, &respb, protocmp.Transform()); diff != "" {
		t.Errorf("wrong response (-want +got):\n%s", diff)
	}
}

func TestRunPlugin_NoOutputOnFailure(t *testing.T) {
	valid, err := proto.Marshal(testRequest())
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name   string
		input  []byte
		plugin Plugin
	}{
		{
			name:  "malformed request",
			input: []byte("\x0a\x05ab"),
			plugin: func(*CodeGenRequest, *CodeGenResponse) error {
				t.Error("plugin must not run for a malformed request")
				return nil
			},
		},
		{
			name:  "plugin error",
			input: valid,
			plugin: func(_ *CodeGenRequest, resp *CodeGenResponse) error {
				_, _ = io.WriteString(resp.OutputFile("partial.txt"), "partial")
				return fmt.Errorf("boom")
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var out bytes.Buffer
			err := RunPlugin("/usr/bin/protoc-gen-test", testCase.plugin, bytes.NewReader(testCase.input), &out)
			if err == nil {
				t.Fatal("expected error")
			}
			if out.Len() != 0 {
				t.Errorf("expected no output, got %d bytes", out.Len())
			}
		})
	}
}

func TestCodeGenResponse_DuplicateFile(t *testing.T) {
	resp := NewCodeGenResponse("test")
	resp.OutputFile("a.txt")
	defer func() {
		if recover() == nil {
			t.Error("expected panic when opening a file twice")
		}
	}()
	resp.OutputFile("a.txt")
}

func TestToPbRequest(t *testing.T) {
	req := &CodeGenRequest{
		Args: []string{"a", "b=c"},
		Files: []*descriptorpb.FileDescriptorProto{
			{Name: proto.String("x.proto")},
			{Name: proto.String("y.proto")},
		},
		ProtocVersion: ProtocVersion{Major: 3, Minor: 21, Patch: 12},
	}
	reqpb := req.toPbRequest()
	if reqpb.GetParameter() != "a,b=c" {
		t.Errorf("wrong parameter: %q", reqpb.GetParameter())
	}
	if diff := cmp.Diff([]string{"x.proto", "y.proto"}, reqpb.GetFileToGenerate()); diff != "" {
		t.Errorf("wrong files to generate (-want +got):\n%s", diff)
	}
	if reqpb.GetCompilerVersion().GetSuffix() != "" || reqpb.GetCompilerVersion().GetMinor() != 21 {
		t.Errorf("wrong compiler version: %v", reqpb.GetCompilerVersion())
	}
}

func TestPluginName(t *testing.T) {
	testCases := map[string]string{
		"protoc-gen-sqlite":           "sqlite",
		"/usr/local/bin/protoc-gen-x": "x",
		"sqlite":                      "sqlite",
	}
	for in, expected := range testCases {
		if actual := pluginName(in); actual != expected {
			t.Errorf("pluginName(%q) = %q, want %q", in, actual, expected)
		}
	}
}
