package node

import (
	"io/ioutil"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/routeforge/dispatch-core/codec"
	"github.com/routeforge/dispatch-core/dispatcher"
	"github.com/routeforge/dispatch-core/shared/cmd"
)

// Config collects everything Node needs to wire up its services,
// parsed once out of the CLI context at construction.
type Config struct {
	DataDir           string
	RPCEndpoint       string
	DisableMonitoring bool
	MonitoringAddr    string
	DispatcherConfig  dispatcher.Config
	SigningTransactor *bind.TransactOpts
}

// configureFromContext parses every flag Node cares about. Signing key
// material is only required when the caller intends to submit
// deployment transactions (the keystore flags may be left unset for a
// read-only / loupe-only node).
func configureFromContext(cliCtx *cli.Context, chainID int64) (*Config, error) {
	cfg := &Config{
		DataDir:           cliCtx.String(cmd.DataDirFlag.Name),
		RPCEndpoint:       cliCtx.String(cmd.RPCProviderFlag.Name),
		DisableMonitoring: cliCtx.Bool(cmd.DisableMonitoringFlag.Name),
		MonitoringAddr:    ":" + cliCtx.String(cmd.MonitoringPortFlag.Name),
	}

	admin, err := codec.ParseAddress(cliCtx.String(cmd.AdminAddressFlag.Name))
	if err != nil {
		return nil, errors.Wrap(err, "invalid --admin-address")
	}
	guardian, err := codec.ParseAddress(cliCtx.String(cmd.GuardianAddressFlag.Name))
	if err != nil {
		return nil, errors.Wrap(err, "invalid --guardian-address")
	}
	cfg.DispatcherConfig = dispatcher.DefaultConfig(admin, guardian)

	keystorePath := cliCtx.String(cmd.KeystorePathFlag.Name)
	if keystorePath == "" {
		return cfg, nil
	}

	passwordFile := cliCtx.String(cmd.KeystorePasswordFileFlag.Name)
	password, err := readPassword(passwordFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not read keystore password")
	}

	keyJSON, err := ioutil.ReadFile(keystorePath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read keystore file %s", keystorePath)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, errors.Wrap(err, "could not decrypt keystore key")
	}

	transactor, err := bind.NewKeyedTransactorWithChainID(key.PrivateKey, big.NewInt(chainID))
	if err != nil {
		return nil, errors.Wrap(err, "could not build signing transactor")
	}
	cfg.SigningTransactor = transactor
	return cfg, nil
}

func readPassword(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}
