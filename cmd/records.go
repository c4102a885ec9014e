package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage the brand-record store",
}

var recordsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import brand records from a JSON array",
	Long:  "Reads an array of raw registration records, normalizes each one, and upserts it. Malformed enrichment payloads are dropped with a warning; malformed records abort the import.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read records file")
		}

		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return eris.Wrap(err, "parse records file")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		imported := 0
		for i, raw := range raws {
			rec, err := model.ParseRecord(raw)
			if err != nil {
				return eris.Wrapf(err, "record %d", i)
			}
			model.NormalizeRecord(rec)
			if err := env.Store.UpsertBrandRecord(ctx, rec); err != nil {
				return eris.Wrapf(err, "upsert %s", rec.Name)
			}
			imported++
		}

		zap.L().Info("records imported", zap.Int("count", imported), zap.String("file", args[0]))
		fmt.Fprintf(os.Stdout, "Imported %d records\n", imported)
		return nil
	},
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored brand records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Store.ListBrandRecords(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records stored.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSKUS\tCOUNTRIES\tCLASSES\tPRODUCER\tDOMAIN")
		for i := range records {
			rec := &records[i]
			domain := ""
			if rec.Enrichment != nil {
				domain = rec.Enrichment.Domain
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
				rec.Name,
				rec.SKUCount,
				strings.Join(rec.Countries, ","),
				strings.Join(rec.ClassTypes, ","),
				rec.PrimaryProducer(),
				domain,
			)
		}
		tw.Flush()

		return nil
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one brand record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Store.GetBrandRecord(ctx, strings.ToUpper(args[0]))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var knowledgeAddFlags struct {
	list  string
	terms []string
}

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage knowledge-base vocabulary",
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add terms to a vocabulary list",
	Long:  "Persists extra terms (legal suffixes, descriptors, white-label brands, and so on) that merge into the built-in vocabulary on every run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if knowledgeAddFlags.list == "" || len(knowledgeAddFlags.terms) == 0 {
			return eris.New("--list and at least one --term are required")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.SaveKnowledgeTerms(ctx, knowledgeAddFlags.list, knowledgeAddFlags.terms); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Added %d terms to %s\n", len(knowledgeAddFlags.terms), knowledgeAddFlags.list)
		return nil
	},
}

func init() {
	recordsCmd.AddCommand(recordsImportCmd, recordsListCmd, recordsShowCmd)
	rootCmd.AddCommand(recordsCmd)

	knowledgeAddCmd.Flags().StringVar(&knowledgeAddFlags.list, "list", "", "vocabulary list name")
	knowledgeAddCmd.Flags().StringSliceVar(&knowledgeAddFlags.terms, "term", nil, "term to add (repeatable)")
	knowledgeCmd.AddCommand(knowledgeAddCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
