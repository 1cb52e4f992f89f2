package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AlexM1010/FollowWeb-sub000/internal/checkpoint"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the assembled graph with attributes merged onto nodes",
	Long:  "Merges the topology and metadata artifacts into one JSON document for downstream analysis and rendering.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		mgr := checkpoint.NewManager(cfg.CheckpointDir)
		g, st, _, err := mgr.Load()
		if err != nil {
			return err
		}
		defer st.Close()

		assembled, err := checkpoint.Assemble(g, st)
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(assembled); err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Fprintf(os.Stderr, "Exported %d nodes, %d edges to %s\n",
				len(assembled.Nodes), len(assembled.Edges), exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
