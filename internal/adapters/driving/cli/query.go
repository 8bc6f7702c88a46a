package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

var (
	queryText     string
	queryObject   string
	queryURL      string
	queryFile     string
	queryTopK     int
	queryEntities int
	queryEntity   string
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Find the items most similar to an image or description",
	Long: `Embeds the query, retrieves the nearest images from the vector index and
ranks the items they belong to.

Provide exactly one query input: a text argument (or --text), --object,
--url or --file.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: requireServices(),
	RunE:        runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryText, "text", "", "text description to query with")
	queryCmd.Flags().StringVar(&queryObject, "object", "", "id of an indexed object to query with")
	queryCmd.Flags().StringVar(&queryURL, "url", "", "URL of an image to query with")
	queryCmd.Flags().StringVar(&queryFile, "file", "", "local image file to query with")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", domain.DefaultTopK, "raw hits to retrieve")
	queryCmd.Flags().IntVarP(&queryEntities, "entities", "n", domain.DefaultEntities, "items to return")
	queryCmd.Flags().StringVar(&queryEntity, "entity", "", "restrict hits to one item number")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errSearchNotConfigured
	}

	req := domain.QueryRequest{
		Text:     queryText,
		ObjectID: queryObject,
		URL:      queryURL,
		TopK:     queryTopK,
		Entities: queryEntities,
	}
	if len(args) > 0 {
		if queryText != "" {
			return domain.ValidationError("text", "give the text as an argument or with --text, not both")
		}
		req.Text = args[0]
	}
	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return fmt.Errorf("reading query image: %w", err)
		}
		req.Data = data
	}
	if queryEntity != "" {
		id, ok := domain.NormalizeEntityID(queryEntity)
		if !ok {
			return domain.ValidationError("entity", fmt.Sprintf("invalid item number %q", queryEntity))
		}
		req.Filter = map[string]string{domain.MetaEntityID: id}
	}

	resp, err := searchService.Query(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, resp)
	}
	return outputQueryTable(cmd, resp)
}

func outputQueryTable(cmd *cobra.Command, resp *domain.QueryResponse) error {
	if len(resp.Entities) == 0 {
		cmd.Println("No matches found.")
		return nil
	}

	cmd.Println("Matches:")
	cmd.Println()
	for i, e := range resp.Entities {
		// Format: [N] 0007 Label  score (best)
		name := e.EntityID
		if e.Label != "" {
			name += " " + e.Label
		}
		cmd.Printf("[%d] %s  %.4f (best %.4f)\n", i+1, name, e.Score, e.BestScore)
		cmd.Printf("    representative: %s\n", e.RepresentativeID)
	}
	cmd.Printf("\n%d hits ranked into %d items.\n", len(resp.Hits), len(resp.Entities))
	return nil
}
