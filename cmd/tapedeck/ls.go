package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/tapedeck-player/tapedeck/internal/catalog"
	"github.com/tapedeck-player/tapedeck/internal/persist"
	"github.com/tapedeck-player/tapedeck/internal/session"
)

func lsCommand() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the cached playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)

			items := persist.Get(a.store, persist.KeyPlaylist, []catalog.AudioItem(nil))
			if len(items) == 0 {
				pterm.Info.Println("no cached playlist, run `tapedeck fetch` first")
				return nil
			}

			rows := lo.Map(items, func(item catalog.AudioItem, i int) []string {
				return []string{fmt.Sprintf("%d", i), item.Title}
			})
			if query != "" {
				rows = lo.Map(session.Search(items, query), func(m session.Match, _ int) []string {
					return []string{fmt.Sprintf("%d", m.Index), m.Item.Title}
				})
			}

			table := append([][]string{{"#", "Title"}}, rows...)
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}

	cmd.Flags().StringVarP(&query, "search", "s", "", "filter titles by substring")
	return cmd
}
