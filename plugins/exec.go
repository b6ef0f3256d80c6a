package plugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/pluginpb"
)

// ErrMalformedRequest is returned when the bytes read from protoc cannot be
// decoded as a CodeGeneratorRequest.
var ErrMalformedRequest = errors.New("malformed code gen request")

// Exec executes the protoc plugin at the given path, sending it the given
// request and adding its generated code output to the given response. This is
// the host side of the protocol, the same exchange protoc performs.
func Exec(ctx context.Context, pluginPath string, req *CodeGenRequest, resp *CodeGenResponse) error {
	if len(req.Files) == 0 {
		return fmt.Errorf("nothing to generate: no files given")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reqBytes, err := proto.Marshal(req.toPbRequest())
	if err != nil {
		return fmt.Errorf("failed to marshal code gen request to bytes: %w", err)
	}

	pluginName := pluginName(path.Base(pluginPath))

	cmd := exec.CommandContext(ctx, pluginPath)
	cmd.Stderr = os.Stderr
	cmd.Stdin = bytes.NewReader(reqBytes)

	respBytes, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("executing plugin %q failed: %w", pluginName, err)
	}

	var respb pluginpb.CodeGeneratorResponse
	if err := proto.Unmarshal(respBytes, &respb); err != nil {
		return fmt.Errorf("failed to unmarshal code gen response from %q: %w", pluginName, err)
	}

	if respb.Error != nil {
		return fmt.Errorf("%s", respb.GetError())
	}
	for _, res := range respb.File {
		if _, err := io.WriteString(resp.OutputFile(res.GetName()), res.GetContent()); err != nil {
			return err
		}
	}
	resp.mu.Lock()
	resp.features |= respb.GetSupportedFeatures()
	resp.mu.Unlock()

	return nil
}

func (req *CodeGenRequest) toPbRequest() *pluginpb.CodeGeneratorRequest {
	var reqpb pluginpb.CodeGeneratorRequest
	vzero := ProtocVersion{}
	if req.ProtocVersion != vzero {
		reqpb.CompilerVersion = &pluginpb.Version{
			Major: proto.Int32(int32(req.ProtocVersion.Major)),
			Minor: proto.Int32(int32(req.ProtocVersion.Minor)),
			Patch: proto.Int32(int32(req.ProtocVersion.Patch)),
		}
		if req.ProtocVersion.Suffix != "" {
			reqpb.CompilerVersion.Suffix = proto.String(req.ProtocVersion.Suffix)
		}
	}

	if len(req.Args) > 0 {
		reqpb.Parameter = proto.String(strings.Join(req.Args, ","))
	}

	reqpb.FileToGenerate = req.FilesToGenerate
	if len(reqpb.FileToGenerate) == 0 {
		for _, fd := range req.Files {
			reqpb.FileToGenerate = append(reqpb.FileToGenerate, fd.GetName())
		}
	}
	reqpb.ProtoFile = req.Files

	return &reqpb
}

// RunPlugin runs the given plugin. Errors are reported using the given name.
// The protoc request is read in full from in before the plugin runs, and the
// complete response is written to out in a single write after it returns.
//
// Any failure is returned without writing anything to out: protoc treats a
// missing response as a failed generator, which is preferable to a response
// that only covers part of the request.
func RunPlugin(name string, plugin Plugin, in io.Reader, out io.Writer) error {
	name = pluginName(name)

	reqBytes, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("%s: failed to read code gen request: %w", name, err)
	}
	req, err := DecodeRequest(reqBytes)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	resp := NewCodeGenResponse(name)
	if err := plugin(req, resp); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	b, err := EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if _, err := out.Write(b); err != nil {
		return fmt.Errorf("%s: failed to write code gen response: %w", name, err)
	}
	return nil
}

// DecodeRequest decodes a serialized CodeGeneratorRequest. The whole of data is
// the message: protoc does not length-prefix it.
func DecodeRequest(data []byte) (*CodeGenRequest, error) {
	var reqpb pluginpb.CodeGeneratorRequest
	if err := proto.Unmarshal(data, &reqpb); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	args, err := ParseParameters(reqpb.GetParameter())
	if err != nil {
		return nil, fmt.Errorf("invalid plugin parameter %q: %w", reqpb.GetParameter(), err)
	}

	req := &CodeGenRequest{
		Args:            args,
		Files:           reqpb.GetProtoFile(),
		FilesToGenerate: reqpb.GetFileToGenerate(),
	}
	if reqpb.CompilerVersion != nil {
		req.ProtocVersion.Major = int(reqpb.CompilerVersion.GetMajor())
		req.ProtocVersion.Minor = int(reqpb.CompilerVersion.GetMinor())
		req.ProtocVersion.Patch = int(reqpb.CompilerVersion.GetPatch())
		req.ProtocVersion.Suffix = reqpb.CompilerVersion.GetSuffix()
	}
	return req, nil
}

// EncodeResponse serializes the files and supported features accumulated in
// resp as a CodeGeneratorResponse.
func EncodeResponse(resp *CodeGenResponse) ([]byte, error) {
	b, err := proto.Marshal(resp.toPbResponse())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal code gen response: %w", err)
	}
	return b, nil
}

func pluginName(name string) string {
	name = path.Base(name)
	if strings.HasPrefix(name, "protoc-gen-") {
		return name[len("protoc-gen-"):]
	}
	return name
}
