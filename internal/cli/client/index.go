package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// CreateIndexRequest represents the create index API request.
type CreateIndexRequest struct {
	TableName            string         `json:"table_name"`
	IndexMethod          string         `json:"index_method"`
	IndexMeasure         string         `json:"index_measure"`
	IndexName            string         `json:"index_name,omitempty"`
	IndexColumn          string         `json:"index_column,omitempty"`
	IndexArguments       map[string]int `json:"index_arguments,omitempty"`
	Concurrently         *bool          `json:"concurrently,omitempty"`
	RunWithOrchestration *bool          `json:"run_with_orchestration,omitempty"`
}

// IndexCmd creates the index parent command.
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage vector indices",
		Long:  "Create, list, inspect, and delete vector indices on the embedding tables.",
	}

	cmd.AddCommand(IndexCreateCmd())
	cmd.AddCommand(IndexListCmd())
	cmd.AddCommand(IndexGetCmd())
	cmd.AddCommand(IndexDeleteCmd())

	return cmd
}

// IndexCreateCmd creates the index create command.
func IndexCreateCmd() *cobra.Command {
	var (
		method         string
		measure        string
		name           string
		column         string
		m              int
		efConstruction int
		lists          int
		noConcurrency  bool
		sync           bool
	)

	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Create a vector index",
		Long: `Create a vector index on one of the embedding tables (vectors, entity,
document_collections).

Examples:
  lodestone index create vectors --method hnsw --measure cosine_distance --arg-m 16
  lodestone index create entity --method ivf_flat --measure l2_distance --arg-lists 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			req := CreateIndexRequest{
				TableName:    args[0],
				IndexMethod:  method,
				IndexMeasure: measure,
				IndexName:    name,
				IndexColumn:  column,
			}
			arguments := map[string]int{}
			if m > 0 {
				arguments["m"] = m
			}
			if efConstruction > 0 {
				arguments["ef_construction"] = efConstruction
			}
			if lists > 0 {
				arguments["lists"] = lists
			}
			if len(arguments) > 0 {
				req.IndexArguments = arguments
			}
			if noConcurrency {
				concurrently := false
				req.Concurrently = &concurrently
			}
			if sync {
				durable := false
				req.RunWithOrchestration = &durable
			}

			return runIndexCreate(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&method, "method", "hnsw", "Index method: hnsw or ivf_flat")
	cmd.Flags().StringVar(&measure, "measure", "cosine_distance", "Distance measure: cosine_distance, l2_distance, or ip_distance")
	cmd.Flags().StringVar(&name, "name", "", "Index name (generated if not provided)")
	cmd.Flags().StringVar(&column, "column", "", "Vector column (defaults per table)")
	cmd.Flags().IntVar(&m, "arg-m", 0, "HNSW m build argument")
	cmd.Flags().IntVar(&efConstruction, "arg-ef-construction", 0, "HNSW ef_construction build argument")
	cmd.Flags().IntVar(&lists, "arg-lists", 0, "IVF-Flat lists build argument")
	cmd.Flags().BoolVar(&noConcurrency, "no-concurrently", false, "Build the index without CONCURRENTLY")
	cmd.Flags().BoolVar(&sync, "sync", false, "Run the index workflow synchronously instead of enqueueing it")

	return cmd
}

func runIndexCreate(cmd *cobra.Command, req CreateIndexRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/v1/indices", req)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if outputJSON {
		fmt.Println(string(resp.Data))
		return nil
	}

	var run Run
	if err := json.Unmarshal(resp.Data, &run); err == nil && run.RunID != "" {
		fmt.Printf("Run: %s (%s)\n", run.RunID, run.Workflow)
		return nil
	}

	var index Index
	if err := json.Unmarshal(resp.Data, &index); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Printf("Created index %s on %s\n", index.IndexName, index.TableName)
	fmt.Println(index.Definition)
	return nil
}

// IndexListCmd creates the index list command.
func IndexListCmd() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vector indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIndexList(cmd, table, outputJSON)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Filter by table name")

	return cmd
}

func runIndexList(cmd *cobra.Command, table string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := "/v1/indices"
	if table != "" {
		path += "?table_name=" + table
	}
	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list indices: %w", err)
	}

	var page IndexPage
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(page.Results) == 0 {
		fmt.Println("No indices found")
		return nil
	}

	for _, index := range page.Results {
		fmt.Printf("%s.%s\n  %s\n", index.TableName, index.IndexName, index.Definition)
	}
	return nil
}

// IndexGetCmd creates the index get command.
func IndexGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <name>",
		Short: "Show one vector index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIndexGet(cmd, args[0], args[1], outputJSON)
		},
	}
}

func runIndexGet(cmd *cobra.Command, table, name string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/v1/indices/%s/%s", table, name))
	if err != nil {
		return fmt.Errorf("failed to get index: %w", err)
	}

	if outputJSON {
		fmt.Println(string(resp.Data))
		return nil
	}

	var index Index
	if err := json.Unmarshal(resp.Data, &index); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Printf("%s.%s\n%s\n", index.TableName, index.IndexName, index.Definition)
	return nil
}

// IndexDeleteCmd creates the index delete command.
func IndexDeleteCmd() *cobra.Command {
	var noConcurrency bool
	var sync bool

	cmd := &cobra.Command{
		Use:   "delete <table> <name>",
		Short: "Delete a vector index",
		Long:  "Drops the index structure; the underlying vector rows are never touched.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIndexDelete(cmd, args[0], args[1], noConcurrency, sync, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&noConcurrency, "no-concurrently", false, "Drop the index without CONCURRENTLY")
	cmd.Flags().BoolVar(&sync, "sync", false, "Run the index workflow synchronously instead of enqueueing it")

	return cmd
}

func runIndexDelete(cmd *cobra.Command, table, name string, noConcurrency, sync, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/v1/indices/%s/%s?concurrently=%t&run_with_orchestration=%t", table, name, !noConcurrency, !sync)
	resp, err := api.Delete(path)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}

	if outputJSON {
		fmt.Println(string(resp.Data))
		return nil
	}

	var run Run
	if err := json.Unmarshal(resp.Data, &run); err == nil && run.RunID != "" {
		fmt.Printf("Run: %s (%s)\n", run.RunID, run.Workflow)
		return nil
	}
	fmt.Printf("Deleted index %s on %s\n", name, table)
	return nil
}
