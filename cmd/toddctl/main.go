// Command toddctl is a thin example harness over package todd. It is
// not itself an authority on behavior: it exists only so the repository
// is runnable end to end, translating flags 1:1 onto Todd methods.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/perama-v/min-know/config"
	"github.com/perama-v/min-know/integrity"
	"github.com/perama-v/min-know/todd"
)

func main() {
	app := &cli.App{
		Name:  "toddctl",
		Usage: "example harness over the TODD engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Value: "address_appearance_index_mainnet", Usage: "database kind"},
			&cli.StringFlag{Name: "root", Usage: "custom database root (defaults to $HOME/.todd/<kind>)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "check-completeness",
				Usage: "reconcile on-disk chapters against the manifest",
				Action: func(c *cli.Context) error {
					td, err := openTodd(c)
					if err != nil {
						return err
					}
					report, err := td.CheckCompleteness()
					if err != nil {
						return err
					}
					renderCompletenessReport(report)
					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "print the current manifest's shape",
				Action: func(c *cli.Context) error {
					td, err := openTodd(c)
					if err != nil {
						return err
					}
					stats, err := td.Stats()
					if err != nil {
						return err
					}
					fmt.Printf("database: %s\n", stats.DatabaseInterfaceID)
					fmt.Printf("latest volume: %s\n", stats.LatestVolume)
					fmt.Printf("volumes: %d, chapters: %d\n", stats.VolumeCount, stats.ChapterCount)
					return nil
				},
			},
			{
				Name:  "find",
				Usage: "look up a key",
				Action: func(c *cli.Context) error {
					td, err := openTodd(c)
					if err != nil {
						return err
					}
					key := c.Args().First()
					if key == "" {
						return cli.Exit("find requires a key argument", 1)
					}
					values, errs := td.Find(context.Background(), key)
					for vol, err := range errs {
						fmt.Fprintf(os.Stderr, "volume %s: %v\n", vol, err)
					}
					for _, v := range values {
						fmt.Printf("%+v\n", v)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openTodd(c *cli.Context) (*todd.Todd, error) {
	kind, err := parseKind(c.String("kind"))
	if err != nil {
		return nil, err
	}
	dirConfig := config.DirConfig{Nature: config.Default}
	if root := c.String("root"); root != "" {
		dirConfig = config.DirConfig{Nature: config.Custom, CustomPath: root}
	}
	return todd.Init(kind, dirConfig)
}

func parseKind(s string) (config.DatabaseKind, error) {
	for _, k := range []config.DatabaseKind{
		config.AddressAppearanceIndexMainnet,
		config.NametagMainnet,
		config.SignatureMainnet,
	} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, cli.Exit(fmt.Sprintf("unknown database kind %q", s), 1)
}

// renderCompletenessReport renders a check-completeness report as a
// table, sorted by (volume, chapter) for stable output.
func renderCompletenessReport(report integrity.Report) {
	keys := make([]integrity.Key, 0, len(report))
	for k := range report {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].VolumeInterfaceID != keys[j].VolumeInterfaceID {
			return keys[i].VolumeInterfaceID < keys[j].VolumeInterfaceID
		}
		return keys[i].ChapterInterfaceID < keys[j].ChapterInterfaceID
	})

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Volume", "Chapter", "Status"})
	for _, k := range keys {
		t.AppendRow(table.Row{k.VolumeInterfaceID, k.ChapterInterfaceID, report[k].String()})
	}
	t.Render()
}
