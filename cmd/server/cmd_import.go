package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/youruser/cardvault/internal/cards"
	"github.com/youruser/cardvault/internal/decklist"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Merge cards from a CSV or decklist file into the collection",
	Long: `Reads card references and merges them into the collection: held cards
gain one copy per occurrence, new cards are appended.

Files ending in .csv need a header row with an id, card_id or カードID
column; the other columns are kept as card attributes. Any other file is
read as a decklist with one "NxID" per line.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the collection as a decklist",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var exportTitle string

func init() {
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "title line for the decklist")
}

func readCardFile(path string) ([]cards.CardRef, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		refs, err := cards.LoadCardRefsCSV(path)
		if err != nil {
			return nil, err
		}
		if len(refs) > decklist.MaxTotalCopies {
			return nil, fmt.Errorf("%s: %w: %d rows (limit %d)", path, decklist.ErrTooManyCopies, len(refs), decklist.MaxTotalCopies)
		}
		return refs, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines, err := decklist.Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return decklist.Expand(lines), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	refs, err := readCardFile(args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	scope := cfg.Collection.DefaultScope
	coll, err := newService(st).AddMany(cmd.Context(), scope, refs)
	if err != nil {
		return err
	}
	logger.Info("import complete",
		zap.String("file", args[0]),
		zap.String("scope", scope),
		zap.Int("cards_read", len(refs)),
		zap.Int("entries", len(coll)))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d cards into %q (%d entries)\n", len(refs), scope, len(coll))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	text, err := newService(st).ExportText(cmd.Context(), cfg.Collection.DefaultScope, exportTitle)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
