package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/determined-ai/hyperband/pkg/searcher"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the Hyperband schedule and its diagonal iterations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := initializeConfig()
		if err != nil {
			return err
		}
		schedule, err := searcher.NewSchedule(c.Hyperband)
		if err != nil {
			return err
		}
		return printSchedule(cmd.OutOrStdout(), schedule)
	},
}

func printSchedule(out io.Writer, schedule *searcher.Schedule) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	var err error
	printf := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("BRACKET\tROUND\tCONFIGS\tRESOURCE\n")
	for _, e := range schedule.Entries() {
		printf("%d\t%d\t%d\t%d\n", e.Bracket, e.Round, e.Configs, e.Resource)
	}
	printf("\nITERATION\tBRACKETS\tWORKING SET\tRESOURCE\n")
	for i := 0; i < schedule.Iterations(); i++ {
		size := 0
		for _, b := range schedule.ActiveBrackets(i) {
			n, _ := schedule.TargetConfigs(i, b)
			size += n
		}
		printf("%d\t%v\t%d\t%d\n", i, schedule.ActiveBrackets(i), size, schedule.Resource(i))
	}
	printf("\ntotal configurations: %d\n", schedule.TotalConfigs())
	if err != nil {
		return errors.Wrap(err, "printing schedule")
	}
	return errors.Wrap(w.Flush(), "printing schedule")
}
