package main

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/routeforge/dispatch-core/codec"
	"github.com/routeforge/dispatch-core/dispatcher"
	"github.com/routeforge/dispatch-core/manifest"
	"github.com/routeforge/dispatch-core/node"
	"github.com/routeforge/dispatch-core/shared/cmd"
)

// dispatchCommands lists every governance and inspection subcommand
// dispatchd exposes, grounded on the flat []*cli.Command style used
// for wallet subcommands.
var dispatchCommands = []*cli.Command{
	{
		Name:        "commit-root",
		Description: "Commits a new pending root for a strictly increasing epoch",
		Flags:       []cli.Flag{cmd.CallerAddressFlag, rootFlag, epochFlag, nowFlag},
		Action:      commitRootAction,
	},
	{
		Name:        "apply-routes",
		Description: "Applies a batch of proven routes from a manifest document against the pending root",
		Flags:       []cli.Flag{cmd.CallerAddressFlag, manifestFlag},
		Action:      applyRoutesAction,
	},
	{
		Name:        "activate",
		Description: "Activates the pending root once its timelock has elapsed and every touched facet's code hash still matches",
		Flags:       []cli.Flag{cmd.CallerAddressFlag, nowFlag},
		Action:      activateAction,
	},
	{
		Name:        "pause",
		Description: "Disables dispatch while leaving governance operations available",
		Flags:       []cli.Flag{cmd.CallerAddressFlag},
		Action:      pauseAction,
	},
	{
		Name:        "unpause",
		Description: "Re-enables dispatch",
		Flags:       []cli.Flag{cmd.CallerAddressFlag},
		Action:      unpauseAction,
	},
	{
		Name:        "freeze",
		Description: "Irreversibly freezes the dispatcher; no further state-changing call will succeed",
		Flags:       []cli.Flag{cmd.CallerAddressFlag},
		Action:      freezeAction,
	},
	{
		Name:        "grant-role",
		Description: "Grants a role to an address",
		Flags:       []cli.Flag{cmd.CallerAddressFlag, roleFlag, addressFlag},
		Action:      grantRoleAction,
	},
	{
		Name:        "revoke-role",
		Description: "Revokes a role from an address",
		Flags:       []cli.Flag{cmd.CallerAddressFlag, roleFlag, addressFlag},
		Action:      revokeRoleAction,
	},
	{
		Name:        "set-eta-grace",
		Description: "Updates the activation grace window",
		Flags:       []cli.Flag{cmd.CallerAddressFlag, secondsFlag},
		Action:      setEtaGraceAction,
	},
	{
		Name:        "set-max-batch-size",
		Description: "Updates the per-call apply_routes batch cap",
		Flags:       []cli.Flag{cmd.CallerAddressFlag, batchSizeFlag},
		Action:      setMaxBatchSizeAction,
	},
	{
		Name:        "loupe",
		Description: "Prints the current routing table, optionally filtered to one facet or selector",
		Flags:       []cli.Flag{facetFlag, selectorFlag},
		Action:      loupeAction,
	},
}

// withNode parses the caller address, opens a Node against the CLI
// context's flags, and runs fn against its dispatcher. It persists the
// dispatcher's snapshot after fn returns without error, since every
// governance call is its own process invocation and the next one must
// see this one's effect.
func withNode(ctx *cli.Context, fn func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error) error {
	opID := uuid.New()
	log := logrus.WithField("op_id", opID.String())

	caller, err := codec.ParseAddress(ctx.String(cmd.CallerAddressFlag.Name))
	if err != nil {
		return errors.Wrapf(err, "op %s: invalid --caller", opID)
	}

	n, err := node.New(ctx)
	if err != nil {
		return errors.Wrapf(err, "op %s: could not initialize node", opID)
	}
	n.Start()
	defer n.Close()

	disp, err := n.Dispatcher()
	if err != nil {
		return errors.Wrapf(err, "op %s: could not fetch dispatcher service", opID)
	}

	if err := fn(n, disp, caller, opID); err != nil {
		log.WithError(err).Error("Governance call failed")
		return errors.Wrapf(err, "op %s", opID)
	}

	if err := n.PersistSnapshot(); err != nil {
		return errors.Wrapf(err, "op %s: could not persist dispatcher snapshot", opID)
	}
	log.Info("Governance call committed")
	return nil
}

func resolveNow(ctx *cli.Context) codec.Timestamp {
	return codec.Timestamp(ctx.Uint64(nowFlag.Name))
}

func commitRootAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		root, err := codec.ParseDigest(ctx.String(rootFlag.Name))
		if err != nil {
			return errors.Wrap(err, "invalid --root")
		}
		epoch := codec.Epoch(ctx.Uint64(epochFlag.Name))
		now := resolveNow(ctx)
		if err := disp.CommitRoot(caller, root, epoch, now); err != nil {
			return err
		}
		fmt.Printf("committed root %s for epoch %d (op %s)\n", root, epoch, opID)
		return nil
	})
}

func applyRoutesAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		data, err := ioutil.ReadFile(ctx.String(manifestFlag.Name))
		if err != nil {
			return errors.Wrap(err, "could not read manifest")
		}
		m, err := manifest.UnmarshalDescriptive(data)
		if err != nil {
			return errors.Wrap(err, "could not parse manifest")
		}

		batch := make([]dispatcher.RouteBatchItem, len(m.Routes))
		for i, rp := range m.Routes {
			batch[i] = dispatcher.RouteBatchItem{
				Selector: rp.Route.Selector,
				Facet:    rp.Route.Facet,
				CodeHash: rp.Route.CodeHash,
				Proof:    rp.Proof,
			}
		}

		applied, err := disp.ApplyRoutes(caller, batch)
		if err != nil {
			return err
		}
		fmt.Printf("applied %d routes from manifest (op %s)\n", applied, opID)
		return nil
	})
}

func activateAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		now := resolveNow(ctx)
		epoch, err := disp.Activate(context.Background(), caller, now)
		if err != nil {
			return err
		}
		fmt.Printf("activated epoch %d (op %s)\n", epoch, opID)
		return nil
	})
}

func pauseAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		if err := disp.Pause(caller); err != nil {
			return err
		}
		fmt.Printf("dispatcher paused (op %s)\n", opID)
		return nil
	})
}

func unpauseAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		if err := disp.Unpause(caller); err != nil {
			return err
		}
		fmt.Printf("dispatcher unpaused (op %s)\n", opID)
		return nil
	})
}

func freezeAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		if err := disp.Freeze(caller); err != nil {
			return err
		}
		fmt.Printf("dispatcher frozen (op %s)\n", opID)
		return nil
	})
}

func grantRoleAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		role := dispatcher.Role(ctx.String(roleFlag.Name))
		addr, err := codec.ParseAddress(ctx.String(addressFlag.Name))
		if err != nil {
			return errors.Wrap(err, "invalid --address")
		}
		if err := disp.GrantRole(caller, role, addr); err != nil {
			return err
		}
		fmt.Printf("granted %s to %s (op %s)\n", role, addr, opID)
		return nil
	})
}

func revokeRoleAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		role := dispatcher.Role(ctx.String(roleFlag.Name))
		addr, err := codec.ParseAddress(ctx.String(addressFlag.Name))
		if err != nil {
			return errors.Wrap(err, "invalid --address")
		}
		if err := disp.RevokeRole(caller, role, addr); err != nil {
			return err
		}
		fmt.Printf("revoked %s from %s (op %s)\n", role, addr, opID)
		return nil
	})
}

func setEtaGraceAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		seconds := uint32(ctx.Uint64(secondsFlag.Name))
		if err := disp.SetEtaGrace(caller, seconds); err != nil {
			return err
		}
		fmt.Printf("eta_grace set to %ds (op %s)\n", seconds, opID)
		return nil
	})
}

func setMaxBatchSizeAction(ctx *cli.Context) error {
	return withNode(ctx, func(n *node.Node, disp *dispatcher.Dispatcher, caller codec.Address, opID uuid.UUID) error {
		size := uint32(ctx.Uint64(batchSizeFlag.Name))
		if err := disp.SetMaxBatchSize(caller, size); err != nil {
			return err
		}
		fmt.Printf("max_batch_size set to %d (op %s)\n", size, opID)
		return nil
	})
}

// loupeAction is read-only and does not persist a snapshot: the Node
// it opens never mutates dispatcher state.
func loupeAction(ctx *cli.Context) error {
	n, err := node.New(ctx)
	if err != nil {
		return errors.Wrap(err, "could not initialize node")
	}
	n.Start()
	defer n.Close()

	disp, err := n.Dispatcher()
	if err != nil {
		return errors.Wrap(err, "could not fetch dispatcher service")
	}

	if ctx.IsSet(selectorFlag.Name) {
		selector, err := codec.ParseSelector(ctx.String(selectorFlag.Name))
		if err != nil {
			return errors.Wrap(err, "invalid --selector")
		}
		facet := disp.FacetAddress(selector)
		fmt.Printf("%s -> %s\n", selector, facet)
		return nil
	}

	if ctx.IsSet(facetFlag.Name) {
		facet, err := codec.ParseAddress(ctx.String(facetFlag.Name))
		if err != nil {
			return errors.Wrap(err, "invalid --facet")
		}
		for _, s := range disp.FacetFunctionSelectors(facet) {
			fmt.Println(s)
		}
		return nil
	}

	for _, f := range disp.Facets() {
		fmt.Printf("%s:\n", f.Address)
		for _, s := range f.Selectors {
			fmt.Printf("  %s\n", s)
		}
	}
	return nil
}
