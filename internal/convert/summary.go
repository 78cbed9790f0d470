package convert

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderSummary formats run statistics as a table.
func RenderSummary(output string, stats Stats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(output)
	tw.AppendHeader(table.Row{"Stored", "Empty", "Failed", "Size", "Elapsed", "Rate"})

	rate := "-"
	if secs := stats.Elapsed.Seconds(); secs > 0 {
		rate = fmt.Sprintf("%s/s", humanize.FormatFloat("#,###.#", float64(stats.Total())/secs))
	}
	tw.AppendRow(table.Row{
		humanize.Comma(int64(stats.Stored)),
		humanize.Comma(int64(stats.Empty)),
		humanize.Comma(int64(stats.Failed)),
		humanize.Bytes(uint64(stats.Bytes)),
		stats.Elapsed.Round(time.Millisecond).String(),
		rate,
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return tw.Render()
}

// RenderInfo formats the tags and key count of a container.
func RenderInfo(path string, tags map[string]string, count int64, keys []string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(path)
	tw.AppendHeader(table.Row{"Tag", "Value"})

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tw.AppendRow(table.Row{name, tags[name]})
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"keys", humanize.Comma(count)})
	for _, k := range keys {
		tw.AppendRow(table.Row{"", k})
	}
	return tw.Render()
}
