// Command perlrt is a small CLI front-end over the core execution
// engine: it disassembles a compiled demo program, runs one, and
// exercises a layered I/O handle with a given binmode spec. It has no
// Perl source lexer/parser of its own (that front-end lives outside
// this module) — the programs it compiles and runs are the two
// hand-built IR trees in demo.go.
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"perlrt/internal/bytecode"
	"perlrt/internal/compiler"
	"perlrt/internal/interpreter"
	"perlrt/internal/ioerr"
	"perlrt/internal/iohandle"
	"perlrt/internal/layeredio"
	"perlrt/internal/scalar"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "perlrt",
		Short: "perlrt core execution engine: bytecode interpreter and layered I/O",
	}

	var which string
	disasmCmd := &cobra.Command{
		Use:   "disasm",
		Short: "Compile a built-in demo program and print its disassembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := buildDemo(which)
			if err != nil {
				return err
			}
			fmt.Print(bytecode.Disassemble(prog))
			return nil
		},
	}
	disasmCmd.Flags().StringVar(&which, "program", "hotloop", "demo program: hotloop or tailcall")

	var runWhich string
	var tailDepth int64
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Compile and execute a built-in demo program",
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := buildDemo(runWhich)
			if err != nil {
				return err
			}
			if err := prog.Verify(); err != nil {
				return fmt.Errorf("program failed verification: %w", err)
			}
			vm := interpreter.New(prog)

			var entry string
			var callArgs []*scalar.Scalar
			switch runWhich {
			case "hotloop":
				entry = "main"
			case "tailcall":
				entry = "f"
				callArgs = []*scalar.Scalar{scalar.NewInt(tailDepth), scalar.NewInt(0)}
			default:
				return fmt.Errorf("unknown program %q", runWhich)
			}

			result, err := vm.Run(entry, callArgs)
			if err != nil {
				return err
			}
			fmt.Printf("result: %s\n", result.ToString())
			return nil
		},
	}
	runCmd.Flags().StringVar(&runWhich, "program", "hotloop", "demo program: hotloop or tailcall")
	runCmd.Flags().Int64Var(&tailDepth, "depth", 1_000_000, "tail-call chain depth (tailcall program only)")

	var binmodeSpec string
	var text string
	iostatCmd := &cobra.Command{
		Use:   "iostat",
		Short: "Write text through a layered scalar-backed handle and report the resulting bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIostat(binmodeSpec, text)
		},
	}
	iostatCmd.Flags().StringVar(&binmodeSpec, "binmode", ":encoding(UTF-8):crlf", "binmode layer spec to apply")
	iostatCmd.Flags().StringVar(&text, "text", "hi\n", "text to write through the layered handle")

	rootCmd.AddCommand(disasmCmd, runCmd, iostatCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildDemo(which string) (*bytecode.Program, error) {
	switch which {
	case "hotloop":
		return compiler.Compile(hotLoopProgram())
	case "tailcall":
		return compiler.Compile(tailCallProgram())
	default:
		return nil, fmt.Errorf("unknown program %q (want hotloop or tailcall)", which)
	}
}

// runIostat applies binmodeSpec to a fresh scalar-backed handle, writes
// text through it, reports the resulting byte count and hex dump, then
// reopens a second handle over those bytes with the same layer spec
// and reads it back to confirm the round trip.
func runIostat(binmodeSpec, text string) error {
	backing := iohandle.NewScalarHandle(nil)
	lh := layeredio.NewLayeredHandle(backing)
	if err := lh.Binmode(binmodeSpec); err != nil {
		return err
	}
	fmt.Printf("layers: %v\n", lh.LayerNames())

	n, err := lh.Write([]byte(text))
	if err != nil {
		return err
	}
	raw := backing.Bytes()
	fmt.Printf("wrote %s (%d bytes)\n", humanize.Bytes(uint64(n)), len(raw))
	fmt.Printf("bytes: % x\n", raw)

	readBack := iohandle.NewScalarHandle(raw)
	rlh := layeredio.NewLayeredHandle(readBack)
	if err := rlh.Binmode(binmodeSpec); err != nil {
		return err
	}
	buf := make([]byte, len(text)+16)
	rn, err := rlh.Read(buf)
	if err != nil && !ioerr.Is(err, ioerr.KindClosed) {
		return err
	}
	fmt.Printf("read back: %q\n", string(buf[:rn]))
	return nil
}
