package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tapedeck-player/tapedeck/internal/persist"
)

func fetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Refresh the cached playlist from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)

			fetch, err := newFetch(a)
			if err != nil {
				return err
			}
			items, err := fetch(cmd.Context())
			if err != nil {
				return err
			}

			persist.Set(a.store, persist.KeyPlaylist, items)
			persist.Set(a.store, persist.KeyIndex, 0)
			persist.Set(a.store, persist.KeyTime, 0.0)

			pterm.Success.Printfln("cached %d tracks", len(items))
			if len(items) > 0 {
				pterm.Info.Printfln("newest: %s", items[0].Title)
			}
			return nil
		},
	}
}
