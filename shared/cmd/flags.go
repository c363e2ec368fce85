// Package cmd defines the command line flags shared by every
// dispatchd subcommand.
package cmd

import "github.com/urfave/cli/v2"

var (
	// VerbosityFlag sets the logrus level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}
	// LogFormatFlag selects the logrus formatter.
	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format to use (text, json)",
		Value: "text",
	}
	// LogFileNameFlag, if set, mirrors logs to this file in addition to
	// stdout.
	LogFileNameFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Path to a log file; logs are written here and to stdout",
	}
	// DataDirFlag is the directory dispatchd persists manifests and
	// role-table snapshots under.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for manifests and state snapshots",
		Value: DefaultDataDir(),
	}
	// DisableMonitoringFlag turns off the Prometheus metrics HTTP
	// server entirely.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the Prometheus metrics service",
	}
	// MonitoringPortFlag is the port the metrics service listens on.
	MonitoringPortFlag = &cli.Int64Flag{
		Name:  "monitoring-port",
		Usage: "Port used to serve Prometheus metrics",
		Value: 8080,
	}
	// RPCProviderFlag is the HTTP-RPC endpoint of the EVM node
	// dispatchd's evmclient connects to.
	RPCProviderFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "HTTP-RPC endpoint of the EVM node to connect to",
		Value: "http://localhost:8545/",
	}
	// KeystorePathFlag points at the deploy/operator account's
	// keystore file for signing deployment transactions.
	KeystorePathFlag = &cli.StringFlag{
		Name:  "keystore",
		Usage: "Path to the keystore file for the signing account",
	}
	// KeystorePasswordFileFlag points at a file containing the
	// keystore's decryption password.
	KeystorePasswordFileFlag = &cli.StringFlag{
		Name:  "password",
		Usage: "Path to a file holding the keystore password",
	}
	// AdminAddressFlag seeds the dispatcher's initial ADMIN role on a
	// fresh node. Required for any node that will commit roots or
	// manage governance; may be left unset for a read-only node.
	AdminAddressFlag = &cli.StringFlag{
		Name:  "admin-address",
		Usage: "Address granted the ADMIN role on a freshly-initialized dispatcher",
	}
	// GuardianAddressFlag seeds the dispatcher's initial EMERGENCY
	// role on a fresh node.
	GuardianAddressFlag = &cli.StringFlag{
		Name:  "guardian-address",
		Usage: "Address granted the EMERGENCY role on a freshly-initialized dispatcher",
	}
	// ChainIDFlag is the EVM chain ID used to sign deployment
	// transactions with EIP-155 replay protection.
	ChainIDFlag = &cli.Int64Flag{
		Name:  "chain-id",
		Usage: "EVM chain ID used to sign transactions",
		Value: 1,
	}
	// CallerAddressFlag identifies the role-checked caller of a
	// governance subcommand. Distinct from the keystore's signing
	// address: the dispatcher's role table is an off-chain
	// authorization layer the CLI enforces directly, not a contract
	// call requiring the caller to also hold the signing key.
	CallerAddressFlag = &cli.StringFlag{
		Name:     "caller",
		Usage:    "Address invoking this governance call, checked against the dispatcher's role table",
		Required: true,
	}
)
