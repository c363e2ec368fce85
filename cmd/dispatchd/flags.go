package main

import "github.com/urfave/cli/v2"

var (
	rootFlag = &cli.StringFlag{
		Name:     "root",
		Usage:    "Merkle root committed as the pending root",
		Required: true,
	}
	epochFlag = &cli.Uint64Flag{
		Name:     "epoch",
		Usage:    "Epoch number for the committed root; must exceed the current active epoch",
		Required: true,
	}
	nowFlag = &cli.Uint64Flag{
		Name:     "now",
		Usage:    "Timestamp to evaluate this call at (seconds); the core takes no wall-clock reading of its own",
		Required: true,
	}
	manifestFlag = &cli.StringFlag{
		Name:     "manifest",
		Usage:    "Path to a descriptive-JSON manifest document produced by manifest.Build",
		Required: true,
	}
	roleFlag = &cli.StringFlag{
		Name:     "role",
		Usage:    "Role name: ADMIN, COMMIT, APPLY, EMERGENCY, or EXECUTOR",
		Required: true,
	}
	addressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "Address the role grant/revoke applies to",
		Required: true,
	}
	secondsFlag = &cli.Uint64Flag{
		Name:     "seconds",
		Usage:    "New eta_grace value, in seconds",
		Required: true,
	}
	batchSizeFlag = &cli.Uint64Flag{
		Name:     "size",
		Usage:    "New max_batch_size value",
		Required: true,
	}
	facetFlag = &cli.StringFlag{
		Name:  "facet",
		Usage: "Restrict loupe output to the selectors routed to this facet address",
	}
	selectorFlag = &cli.StringFlag{
		Name:  "selector",
		Usage: "Restrict loupe output to the facet routed for this selector",
	}
)
