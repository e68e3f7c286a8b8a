package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kodbox/internal/errors"
	"github.com/vango-dev/kodbox/pkg/store"
)

func getCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value as JSON",
		Long: `Print the value stored under key as JSON.

A fresh process starts empty, so the lookup recovers the state from the
mirror.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(e *env) error {
				v, ok := e.store.Get(args[0])
				if !ok {
					return errors.Newf(errors.CategoryCLI, "key %q not found", args[0]).
						WithSuggestion("Run 'kodbox inspect' to list stored keys")
				}
				data, err := json.Marshal(v)
				if err != nil {
					return errors.New("K020").Wrap(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}

func setCmd(opts *rootOptions) *cobra.Command {
	var locked, refresh bool

	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value and persist the state",
		Long: `Store a JSON value under key and write the state to the mirror.

Examples:
  kodbox set user '{"name":"ada"}'
  kodbox set count 3 --refresh`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return errors.New("K050").
					WithDetail("value is not valid JSON: " + err.Error()).
					WithSuggestion(`Quote strings as JSON, e.g. '"text"'`)
			}

			writeOpts := []store.WriteOption{store.Persist()}
			if locked {
				writeOpts = append(writeOpts, store.Locked())
			}
			if refresh {
				writeOpts = append(writeOpts, store.Refresh())
			}

			return withEnv(cmd, opts, func(e *env) error {
				if err := e.hydrate(cmd.Context()); err != nil {
					return err
				}
				if err := e.store.SetAsync(cmd.Context(), args[0], value, writeOpts...); err != nil {
					return err
				}
				success(cmd, "Set %s", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&locked, "locked", false, "Lock the entry for the rest of this process")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Clear the mirror slot before writing")

	return cmd
}

func rmCmd(opts *rootOptions) *cobra.Command {
	var destructive bool

	cmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove a key and persist the state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			writeOpts := []store.WriteOption{store.Persist()}
			if destructive {
				writeOpts = append(writeOpts, store.Destructive())
			}

			return withEnv(cmd, opts, func(e *env) error {
				if err := e.hydrate(cmd.Context()); err != nil {
					return err
				}
				if !e.store.State().Has(args[0]) {
					info(cmd, "%s not stored", args[0])
					return nil
				}
				if err := e.store.Remove(args[0], writeOpts...); err != nil {
					return err
				}
				success(cmd, "Removed %s", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&destructive, "destructive", false, "Remove even when the entry is locked")

	return cmd
}

func clearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the state and clear the mirror slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(e *env) error {
				if err := e.store.Destroy(cmd.Context()); err != nil {
					return err
				}
				success(cmd, "Cleared %s", e.slot.Key())
				return nil
			})
		},
	}
}

func inspectCmd(opts *rootOptions) *cobra.Command {
	var detailed, values bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump the mirrored state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var inspectOpts []store.InspectOption
			if detailed {
				inspectOpts = append(inspectOpts, store.Detailed())
			}
			if values {
				inspectOpts = append(inspectOpts, store.WithValues())
			}

			return withEnv(cmd, opts, func(e *env) error {
				if err := e.hydrate(cmd.Context()); err != nil {
					return err
				}
				return e.store.Inspect(cmd.OutOrStdout(), inspectOpts...)
			})
		},
	}

	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "Show lock attributes and value types")
	cmd.Flags().BoolVarP(&values, "values", "v", false, "Show values")

	return cmd
}
