package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/j19015/blog-stack/internal/topology"
	"github.com/spf13/cobra"
)

var (
	resolveFile   string
	resolveFormat string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a topology declaration",
	Long: `Resolve a YAML topology declaration into its resource graph and print it.

Bootstrap scripts are read relative to the directory of the declaration file.
Nothing is deployed.`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveFile, "file", "f", "topology.yaml", "topology declaration file")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "text", "output format (text, json)")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	decl, err := topology.LoadFile(resolveFile)
	if err != nil {
		return err
	}
	graph, err := topology.Resolve(decl,
		topology.WithLogger(logger),
		topology.WithPayloadFS(os.DirFS(filepath.Dir(resolveFile))))
	if err != nil {
		return err
	}

	switch resolveFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(graph)
	case "text":
		writeGraph(cmd.OutOrStdout(), graph)
		return nil
	default:
		return errors.Newf("unknown output format %q", resolveFormat)
	}
}

// writeGraph prints the nodes in creation order followed by the access rules
// and outputs.
func writeGraph(w io.Writer, graph *topology.Graph) {
	fmt.Fprintln(w, "Nodes:")
	for _, node := range graph.Nodes() {
		if len(node.DependsOn) == 0 {
			fmt.Fprintf(w, "  %s (%s)\n", node.ID, node.Kind)
			continue
		}
		fmt.Fprintf(w, "  %s (%s) <- %s\n", node.ID, node.Kind, strings.Join(node.DependsOn, ", "))
	}

	fmt.Fprintln(w, "Access rules:")
	if len(graph.AccessRules) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, rule := range graph.Edges() {
		fmt.Fprintf(w, "  %s\n", rule)
	}

	fmt.Fprintln(w, "Outputs:")
	for _, out := range graph.Outputs() {
		fmt.Fprintf(w, "  %s = %s.%s\n", out.Name, out.NodeID, out.Attribute)
	}
}
