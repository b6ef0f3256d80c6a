// Package sqliteplugin implements the protoc-gen-sqlite command logic.
package sqliteplugin

import (
	"errors"
	"fmt"
	goversion "go/version"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sqlitepb/protoc-gen-sqlite/plugins"
	"github.com/sqlitepb/protoc-gen-sqlite/sqlitegen"
)

// MinimumGoVersion is the oldest Go runtime the plugin runs on.
const MinimumGoVersion = "go1.24"

// LogLevelEnv names the environment variable holding the log level. Logs go
// to stderr; stdout is reserved for the response to protoc.
const LogLevelEnv = "PROTOC_GEN_SQLITE_LOG_LEVEL"

var version = "dev build <no version set>" // can be replaced by -X linker flag

// ErrUnsupportedRuntime is returned when the plugin runs on a Go runtime older
// than MinimumGoVersion.
var ErrUnsupportedRuntime = errors.New("unsupported runtime")

// Main is the entrypoint for the program.
func Main() {
	output := os.Stdout
	// Only the plugin response may reach protoc through stdout.
	os.Stdout = os.Stderr
	os.Exit(Run(os.Args, os.Stdin, output, os.Stderr))
}

// Run runs the program and returns the exit code. args[0] is the program
// name; an empty args runs as sqlitegen.DefaultToolName with no arguments.
func Run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	programName, cmdArgs := sqlitegen.DefaultToolName, []string{}
	if len(args) > 0 {
		programName, cmdArgs = args[0], args[1:]
	}
	if err := newCommand(programName, stdin, stdout, stderr, cmdArgs).Execute(); err != nil {
		message := err.Error()
		if message == "" {
			message = "unexpected error"
		}
		_, _ = fmt.Fprintln(stderr, message)
		return 1
	}
	return 0
}

func newCommand(programName string, stdin io.Reader, stdout, stderr io.Writer, args []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   filepath.Base(programName),
		Short: "Generate SQLite schemas from protobuf messages",
		Long: `A protoc plugin. It reads a CodeGeneratorRequest from stdin and writes a
CodeGeneratorResponse with one .sqlite file per proto file to stdout.

Every message Foo becomes a table t_Foo whose columns are named by field
number and a view Foo that exposes those columns under the field names.

Run it through protoc:

    protoc --sqlite_out=. foo.proto`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := CheckRuntime(runtime.Version()); err != nil {
				return err
			}

			logger, err := newLogger(cmd.Name(), os.Getenv(LogLevelEnv), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			gen := sqlitegen.New(sqlitegen.WithLogger(logger))
			return plugins.RunPlugin(programName, gen.Plugin, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	return cmd
}

// CheckRuntime reports whether a Go runtime with the given version (as
// returned by runtime.Version) is new enough. Development builds, whose
// versions cannot be compared, are accepted.
func CheckRuntime(goVersion string) error {
	if !goversion.IsValid(goVersion) {
		return nil
	}
	if goversion.Compare(goVersion, MinimumGoVersion) < 0 {
		return fmt.Errorf("%w: %s or higher is required, detected %s", ErrUnsupportedRuntime, MinimumGoVersion, goVersion)
	}
	return nil
}

func newLogger(name, level string, w io.Writer) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", LogLevelEnv, err)
		}
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), lvl)
	return zap.New(core).Named(name), nil
}
