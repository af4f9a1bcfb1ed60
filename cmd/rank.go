package cmd

import (
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/learnedindex/skewtools/dataset"
	"github.com/learnedindex/skewtools/freq"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type rankConfig struct {
	Dataset  string
	Dtype    string
	Top      int
	TieBreak string
}

func NewRankCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conf := &rankConfig{}
	com := &cobra.Command{
		Use:   "rank",
		Short: "Show the most frequent keys of a dataset.",
		Long: `Ranks the distinct keys of a dataset by occurrence count, the
order "generate" assigns Zipf ranks in, and prints the top of the
ranking.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			np := newNotepad(cmd, stderr)
			dtype, err := dataset.ParseDtype(conf.Dtype)
			if err != nil {
				return err
			}
			tieBreak, err := freq.ParseTieBreak(conf.TieBreak)
			if err != nil {
				return err
			}
			keys, err := dataset.Read(appFs, conf.Dataset, dataset.Options{Dtype: dtype, Logger: np.DEBUG})
			if err != nil {
				return err
			}
			table := freq.Count(keys)
			return printRanking(stdout, table, conf.Top, tieBreak, len(keys))
		},
	}
	flags := com.Flags()
	flags.StringVarP(&conf.Dataset, "dataset", "d", "", "Dataset file of sorted keys.")
	flags.StringVarP(&conf.Dtype, "dtype", "t", "uint64", "Key width of the dataset: uint64 or uint32.")
	flags.IntVar(&conf.Top, "top", 10, "Number of keys to show.")
	flags.StringVar(&conf.TieBreak, "tie-break", "ascending", "Order of equally frequent keys: ascending, descending or first-seen.")
	return com
}

func printRanking(w io.Writer, table *freq.Table, top int, tieBreak freq.TieBreak, total int) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	p.Fprintf(tw, "rank\tkey\tcount\t\n")
	for i, e := range table.Top(top, tieBreak) {
		p.Fprintf(tw, "%d\t%s\t%d\t\n", i+1, strconv.FormatUint(e.Key, 10), e.Count)
	}
	p.Fprintf(tw, "\t%d distinct\t%d keys\t\n", table.Len(), total)
	return tw.Flush()
}

func init() {
	subcommandFns["rank"] = NewRankCommand
}
