// Package debug wires the standard runtime/pprof profiling flags into
// the dispatchd CLI, the same app.Before-invoked Setup/Exit pair
// node binaries use to flush profile data on shutdown.
package debug

import (
	"os"
	"runtime/pprof"
	"runtime/trace"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	// PProfFlag turns on CPU profiling for the life of the process.
	PProfFlag = &cli.BoolFlag{
		Name:  "pprof",
		Usage: "Enable CPU profiling, written to --cpu-profile on exit",
	}
	// CPUProfileFlag names the file CPU profile samples are written to.
	CPUProfileFlag = &cli.StringFlag{
		Name:  "cpu-profile",
		Usage: "Write CPU profile to this file",
	}
	// TraceFlag names the file an execution trace is written to.
	TraceFlag = &cli.StringFlag{
		Name:  "trace",
		Usage: "Write execution trace to this file",
	}
)

var (
	cpuProfileFile *os.File
	traceFile      *os.File
)

// Setup starts whatever profiling the CLI context requested. Exit must
// be called before the process terminates to flush profile data.
func Setup(ctx *cli.Context) error {
	if ctx.Bool(PProfFlag.Name) {
		path := ctx.String(CPUProfileFlag.Name)
		if path == "" {
			path = "dispatchd.cpu.pprof"
		}
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "could not create cpu profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return errors.Wrap(err, "could not start cpu profile")
		}
		cpuProfileFile = f
	}

	if path := ctx.String(TraceFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "could not create trace file")
		}
		if err := trace.Start(f); err != nil {
			return errors.Wrap(err, "could not start trace")
		}
		traceFile = f
	}

	return nil
}

// Exit stops any profiling started by Setup and flushes pending data.
// Safe to call even when Setup started nothing.
func Exit(_ *cli.Context) {
	if cpuProfileFile != nil {
		pprof.StopCPUProfile()
		_ = cpuProfileFile.Close()
		cpuProfileFile = nil
	}
	if traceFile != nil {
		trace.Stop()
		_ = traceFile.Close()
		traceFile = nil
	}
}
