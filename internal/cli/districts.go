package cli

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/malbeclabs/aquabot/internal/store"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type DistrictsCmd struct{}

func NewDistrictsCmd() *DistrictsCmd {
	return &DistrictsCmd{}
}

func (c *DistrictsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "districts",
		Short: "List the known districts with their extraction stage and data coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFor(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := loadStore(cmd.Context(), log, cfg)
			if err != nil {
				return fmt.Errorf("failed to load data: %w", err)
			}
			printDistricts(cmd.OutOrStdout(), s)
			return nil
		},
	}

	addDataFlags(cmd.Flags())

	return cmd
}

func printDistricts(w io.Writer, s *store.Store) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{
		"District",
		"Stage of\nExtraction (%)",
		"Net Availability\n(ham)",
		"Blocks",
		"Recharge\nYears",
		"Availability\nYears",
	})

	for _, d := range s.Districts() {
		table.Append([]string{
			d.Name(),
			d.Get(store.ColExtractionStage),
			d.Get(store.ColNetAvailability),
			strconv.Itoa(len(s.BlocksIn(d.Key))),
			yearSpan(s, store.Recharge, d.Key),
			yearSpan(s, store.Availability, d.Key),
		})
	}
	table.Render()
}

func yearSpan(s *store.Store, dataset store.Dataset, key string) string {
	series, ok := s.Yearly(dataset, key)
	if !ok || len(series.Years) == 0 {
		return "-"
	}
	return series.Years[0] + "-" + series.Years[len(series.Years)-1]
}

var boldSpan = regexp.MustCompile(`\*\*(.+?)\*\*`)

// printAnswer renders **bold** markup with terminal attributes.
func printAnswer(w io.Writer, answer string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintln(w, boldSpan.ReplaceAllStringFunc(answer, func(m string) string {
		return bold(strings.Trim(m, "*"))
	}))
}
