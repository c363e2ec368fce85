// Package main is the dispatchd command line entrypoint: a thin
// urfave/cli/v2 shell around the node package's service registry,
// exposing one subcommand per governance operation.
package main

import (
	"fmt"
	"os"
	runtimeDebug "runtime/debug"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"github.com/urfave/cli/v2"

	"github.com/routeforge/dispatch-core/shared/cmd"
	"github.com/routeforge/dispatch-core/shared/debug"
	"github.com/routeforge/dispatch-core/shared/logutil"
	"github.com/routeforge/dispatch-core/shared/version"
)

var appFlags = []cli.Flag{
	cmd.VerbosityFlag,
	cmd.LogFormatFlag,
	cmd.LogFileNameFlag,
	cmd.DataDirFlag,
	cmd.DisableMonitoringFlag,
	cmd.MonitoringPortFlag,
	cmd.RPCProviderFlag,
	cmd.KeystorePathFlag,
	cmd.KeystorePasswordFileFlag,
	cmd.AdminAddressFlag,
	cmd.GuardianAddressFlag,
	cmd.ChainIDFlag,
	debug.PProfFlag,
	debug.CPUProfileFlag,
	debug.TraceFlag,
}

func main() {
	log := logrus.WithField("prefix", "main")

	app := &cli.App{}
	app.Name = "dispatchd"
	app.Usage = "deterministic content-addressed dispatcher: commit, apply, and activate routing manifests"
	app.Version = version.GetVersion()
	app.Flags = appFlags
	app.Commands = dispatchCommands

	app.Before = func(ctx *cli.Context) error {
		format := ctx.String(cmd.LogFormatFlag.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			formatter.DisableColors = ctx.String(cmd.LogFileNameFlag.Name) != ""
			logrus.SetFormatter(formatter)
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		verbosity := ctx.String(cmd.VerbosityFlag.Name)
		level, err := logrus.ParseLevel(verbosity)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		if logFileName := ctx.String(cmd.LogFileNameFlag.Name); logFileName != "" {
			if err := logutil.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configure persistent logging")
			}
		}

		return debug.Setup(ctx)
	}

	app.After = func(ctx *cli.Context) error {
		debug.Exit(ctx)
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("Runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
