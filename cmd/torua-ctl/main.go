// Package main implements torua-ctl, an operator CLI for the Torua mesh:
// table registration, manual record get/put, and health-report display,
// all issued against the edge gateway.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "torua-ctl",
	Short: "torua-ctl manages tables and records on a Torua mesh",
}

func init() {
	rootCmd.PersistentFlags().String("gateway", "http://localhost:8080", "Gateway address")

	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(healthCmd)

	tableCmd.AddCommand(tableCreateCmd)
	tableCmd.AddCommand(tableListCmd)
	tableCmd.AddCommand(tableDeleteCmd)

	recordCmd.AddCommand(recordGetCmd)
	recordCmd.AddCommand(recordPutCmd)

	tableCreateCmd.Flags().String("primary-key", "id", "Primary key field name")
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage table definitions",
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Get and put records",
}

var tableCreateCmd = &cobra.Command{
	Use:   "create [table-name]",
	Short: "Register a new table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")
		primaryKey, _ := cmd.Flags().GetString("primary-key")

		client := newClient(gateway)
		if err := client.createTable(cmd.Context(), args[0], primaryKey); err != nil {
			return err
		}
		fmt.Printf("table %q created (primary key %q)\n", args[0], primaryKey)
		return nil
	},
}

var tableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")
		client := newClient(gateway)

		tables, err := client.listTables(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Printf("%s\t(primary key: %s)\n", t.TableName, t.PrimaryKey)
		}
		return nil
	},
}

var tableDeleteCmd = &cobra.Command{
	Use:   "delete [table-name]",
	Short: "Delete a table definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")
		client := newClient(gateway)
		if err := client.deleteTable(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("table %q deleted\n", args[0])
		return nil
	},
}

var recordGetCmd = &cobra.Command{
	Use:   "get [table] [primary-key]",
	Short: "Read a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")
		client := newClient(gateway)

		value, err := client.getRecord(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(string(value))
		return nil
	},
}

var recordPutCmd = &cobra.Command{
	Use:   "put [table] [json-value]",
	Short: "Write a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")
		client := newClient(gateway)

		if err := client.putRecord(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health-report",
	Short: "Show coordinator topology and table registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")
		client := newClient(gateway)

		report, err := client.healthReport(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("status: %s\n", report.Status)
		fmt.Println("groups:")
		for groupID, g := range report.Details.Topology {
			fmt.Printf("  %s: leader=%s followers=%v\n", groupID, g.Leader, g.Followers)
		}
		fmt.Println("tables:")
		for _, t := range report.Details.Tables {
			fmt.Printf("  %s (primary key: %s)\n", t.TableName, t.PrimaryKey)
		}
		return nil
	},
}
