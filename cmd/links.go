package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"linkdex/internal/resolver"
	"linkdex/internal/workspace"
)

var flagLinksJSON bool

// linkReport is the JSON shape for one resolved link.
type linkReport struct {
	Range       resolver.Range `json:"range"`
	Text        string         `json:"text"`
	Key         string         `json:"key"`
	Rule        string         `json:"rule"`
	Broken      bool           `json:"broken"`
	Destination *linkTarget    `json:"destination,omitempty"`
}

type linkTarget struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

var linksCmd = &cobra.Command{
	Use:   "links <file>",
	Short: "Resolve and list every link in one file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(nil)
		if err != nil {
			return err
		}
		if _, err := eng.idx.Rebuild(cmd.Context(), eng.cfg.Rules); err != nil {
			return err
		}

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		doc, err := workspace.LoadDocument(path)
		if err != nil {
			return err
		}

		links := eng.res.ResolveAll(doc)
		if flagLinksJSON {
			reports := make([]linkReport, 0, len(links))
			for _, link := range links {
				r := linkReport{
					Range:  link.Source.Range,
					Text:   link.Source.Text,
					Key:    link.Source.Key,
					Rule:   link.Rule,
					Broken: link.Broken(),
				}
				if !link.Broken() {
					r.Destination = &linkTarget{File: link.Destination.File, Line: link.Destination.Line}
				}
				reports = append(reports, r)
			}
			return json.NewEncoder(os.Stdout).Encode(reports)
		}

		if len(links) == 0 {
			fmt.Println("No links found.")
			return nil
		}
		for _, link := range links {
			start := link.Source.Range.Start
			if link.Broken() {
				fmt.Printf("%s:%d:%d  %-24s  !! broken  (rule %s)\n",
					eng.ws.DisplayPath(doc.Path), start.Line+1, start.Col+1,
					link.Source.Text, link.Rule)
				continue
			}
			fmt.Printf("%s:%d:%d  %-24s  -> %s:%d  (rule %s)\n",
				eng.ws.DisplayPath(doc.Path), start.Line+1, start.Col+1,
				link.Source.Text,
				eng.ws.DisplayPath(link.Destination.File), link.Destination.Line+1,
				link.Rule)
		}
		return nil
	},
}

func init() {
	linksCmd.Flags().BoolVar(&flagLinksJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(linksCmd)
}
