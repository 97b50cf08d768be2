package main

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tapedeck-player/tapedeck/internal/catalog"
	"github.com/tapedeck-player/tapedeck/internal/persist"
)

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved playback position",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)

			items := persist.Get(a.store, persist.KeyPlaylist, []catalog.AudioItem(nil))
			index := persist.Get(a.store, persist.KeyIndex, 0)
			position := persist.Get(a.store, persist.KeyTime, 0.0)

			if len(items) == 0 {
				pterm.Info.Println("no cached playlist")
				return nil
			}
			if index < 0 || index >= len(items) {
				index = 0
			}

			pterm.DefaultSection.Println("tapedeck")
			pterm.Info.Printfln("tracks:   %d", len(items))
			pterm.Info.Printfln("current:  %s", items[index].Title)
			pterm.Info.Printfln("position: %s", (time.Duration(position) * time.Second).Round(time.Second))
			return nil
		},
	}
}
