// SPDX-License-Identifier: Apache-2.0

// Command docbridge is the management CLI over a Schema Store (§6.3): generate, remove,
// list-schema, list-tables, export, and import. It is the out-of-core collaborator the
// specification names only for operator convenience — the driver itself has no process
// entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/internal/log"
	"github.com/docbridge/docbridge/internal/mongosource"
	"github.com/docbridge/docbridge/internal/schema"
)

// Command wraps the root *cobra.Command the way the teacher's cmd package does, so tests
// can invoke it without exec'ing a binary.
type Command struct {
	*cobra.Command

	storeDir   string
	connection string
	logLevel   string
	logFormat  string
}

// NewCommand builds the docbridge root command and its subcommands.
func NewCommand() *Command {
	c := &Command{Command: &cobra.Command{
		Use:           "docbridge",
		Short:         "Manage docbridge schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}}

	c.PersistentFlags().StringVar(&c.storeDir, "store-dir", "./docbridge-schemas", "schema store directory")
	c.PersistentFlags().StringVar(&c.connection, "connection", "", "connection URI (§6.1)")
	c.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level")
	c.PersistentFlags().StringVar(&c.logFormat, "log-format", "standard", "log format: standard or json")

	c.AddCommand(
		c.newGenerateCommand(),
		c.newRemoveCommand(),
		c.newListSchemaCommand(),
		c.newListTablesCommand(),
		c.newExportCommand(),
		c.newImportCommand(),
	)
	return c
}

func (c *Command) newLogger() (log.Logger, error) {
	return log.NewLogger(c.logFormat, c.logLevel, os.Stdout, os.Stderr)
}

func (c *Command) newStore(logger log.Logger) (*schema.Store, error) {
	return schema.NewStore(c.storeDir, logger, nil)
}

// properties resolves the connection URI flag into a validated config.Properties.
func (c *Command) properties() (*config.Properties, error) {
	if c.connection == "" {
		return nil, fmt.Errorf("--connection is required")
	}
	return config.Parse(c.connection)
}

func (c *Command) newGenerateCommand() *cobra.Command {
	var name, collection string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Infer a schema from a live collection and persist version 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger, err := c.newLogger()
			if err != nil {
				return err
			}
			p, err := c.properties()
			if err != nil {
				return err
			}

			src, err := mongosource.Connect(ctx, *p, nil)
			if err != nil {
				return err
			}
			defer src.Disconnect(ctx)

			stream, err := src.Stream(ctx, collection, *p)
			if err != nil {
				return err
			}

			store, err := c.newStore(logger)
			if err != nil {
				return err
			}
			ds, _, err := store.Generate(ctx, name, collection, stream)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated schema %q version %d against %s\n", ds.SchemaName, ds.SchemaVersion, p.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "schema name")
	cmd.Flags().StringVar(&collection, "collection", "", "collection name")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("collection")
	return cmd
}

func (c *Command) newRemoveCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove every version of a schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.newLogger()
			if err != nil {
				return err
			}
			store, err := c.newStore(logger)
			if err != nil {
				return err
			}
			if err := store.Remove(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed schema %q\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "schema name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (c *Command) newListSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-schema",
		Short: "List every schema name with a persisted version",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.newLogger()
			if err != nil {
				return err
			}
			store, err := c.newStore(logger)
			if err != nil {
				return err
			}
			names, err := store.ListSchemas(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (c *Command) newListTablesCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "list-tables",
		Short: "List the tables referenced by a schema's latest version",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.newLogger()
			if err != nil {
				return err
			}
			store, err := c.newStore(logger)
			if err != nil {
				return err
			}
			tables, err := store.ListTables(cmd.Context(), name)
			if err != nil {
				return err
			}
			for _, t := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "schema name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (c *Command) newExportCommand() *cobra.Command {
	var name string
	var version int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a schema version and its tables as one JSON bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.newLogger()
			if err != nil {
				return err
			}
			store, err := c.newStore(logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var ds *schema.DatabaseSchema
			var tables map[string]*schema.Table
			if version == 0 {
				ds, tables, err = store.LoadLatest(ctx, name)
			} else {
				ds, tables, err = store.Load(ctx, name, version)
			}
			if err != nil {
				return err
			}

			data, err := schema.MarshalJSON(ds, tables)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "schema name")
	cmd.Flags().IntVar(&version, "version", 0, "schema version (0 = latest)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (c *Command) newImportCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate a previously exported JSON bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			ds, tables, err := schema.ParseJSON(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bundle %q version %d: %d tables\n", ds.SchemaName, ds.SchemaVersion, len(tables))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to an exported JSON bundle")
	cmd.MarkFlagRequired("file")
	return cmd
}

func main() {
	c := NewCommand()
	if err := c.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
