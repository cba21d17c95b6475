// Command inlinecli extracts documents into content-addressed blocks, and
// inlines them back, against a persistent badger-backed Store.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/expede/ipld-inline/catalog"
	"github.com/expede/ipld-inline/codec"
	dstore "github.com/expede/ipld-inline/datastore"
	"github.com/expede/ipld-inline/digest"
	"github.com/expede/ipld-inline/extractor"
	"github.com/expede/ipld-inline/inliner"
	"github.com/expede/ipld-inline/store"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/urfave/cli/v2"
)

// bs and cat are opened once in Before and closed once in After, the same
// single-global-plus-lifecycle-hooks shape the teacher's datastore CLI used.
var (
	bs  *store.Blockstore
	cat *catalog.Catalog
)

func openState(blockDir, catalogPath string) error {
	if bs != nil {
		return nil
	}
	if err := os.MkdirAll(blockDir, 0o755); err != nil {
		return fmt.Errorf("creating block directory: %w", err)
	}

	ds, err := dstore.NewDatastorage(blockDir, nil)
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	bs, err = store.NewBlockstore(ds)
	if err != nil {
		return fmt.Errorf("opening blockstore: %w", err)
	}

	cat, err = catalog.Open(catalogPath)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	return nil
}

func closeState() error {
	if cat != nil {
		if err := cat.Close(); err != nil {
			return err
		}
	}
	return bs.Close()
}

func main() {
	app := &cli.App{
		Name:  "inlinecli",
		Usage: "extract and inline IPLD documents against a content-addressed store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   ".inline-data/blocks",
				Usage:   "block store directory",
				EnvVars: []string{"INLINECLI_DB"},
			},
			&cli.StringFlag{
				Name:    "catalog",
				Value:   ".inline-data/catalog.db",
				Usage:   "run catalog sqlite path",
				EnvVars: []string{"INLINECLI_CATALOG"},
			},
		},
		Before: func(c *cli.Context) error {
			return openState(c.String("db"), c.String("catalog"))
		},
		After: func(c *cli.Context) error {
			return closeState()
		},
		Commands: []*cli.Command{
			extractCommand,
			inlineCommand,
			carCommand,
			catalogCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var extractCommand = &cli.Command{
	Name:  "extract",
	Usage: "rewrite a document with inline wrappers into content-addressed blocks plus a bare Link root",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true, Usage: "DAG-JSON input file"},
		&cli.StringFlag{Name: "codec", Value: "dag-cbor", Usage: "block codec: dag-cbor or dag-json"},
		&cli.StringFlag{Name: "digest", Value: "sha2-256", Usage: "hash function: sha2-256 or blake3"},
	},
	Action: func(c *cli.Context) error {
		ctx := context.Background()

		root, err := readDagJSON(c.String("in"))
		if err != nil {
			return err
		}
		cdc, err := codecFromFlag(c.String("codec"))
		if err != nil {
			return err
		}
		dgt, err := digestFromFlag(c.String("digest"))
		if err != nil {
			return err
		}

		pairs, err := extractor.All(root, cdc, dgt, 1)
		if err != nil {
			return fmt.Errorf("extracting: %w", err)
		}
		var rootID cid.Cid
		for _, p := range pairs {
			if err := bs.PutKeyed(p.Id, p.Node); err != nil {
				return fmt.Errorf("storing %s: %w", p.Id, err)
			}
			rootID = p.Id
		}

		if _, err := cat.RecordExtract(ctx, rootID.String(), len(pairs)); err != nil {
			return fmt.Errorf("recording extract run: %w", err)
		}

		fmt.Printf("extracted %d block(s), root %s\n", len(pairs), rootID)
		return nil
	},
}

var inlineCommand = &cli.Command{
	Name:  "inline",
	Usage: "resolve a document's Link leaves back into inline wrappers",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Required: true, Usage: "root block id to inline"},
		&cli.StringFlag{Name: "policy", Value: "at-least-once", Usage: "naive, at-least-once, or at-most-once"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
	},
	Action: func(c *cli.Context) error {
		ctx := context.Background()

		rootID, err := cid.Decode(c.String("root"))
		if err != nil {
			return fmt.Errorf("parsing root: %w", err)
		}
		policy, err := policyFromFlag(c.String("policy"))
		if err != nil {
			return err
		}
		root, err := bs.Get(rootID)
		if err != nil {
			return fmt.Errorf("loading root: %w", err)
		}

		in := inliner.New(root, policy)
		result, stuck, err := in.Run(bs)
		if err != nil {
			return fmt.Errorf("inlining: %w", err)
		}
		if stuck != nil {
			return fmt.Errorf("inlining stuck: block %s is not in the store; supply it and re-run, or choose a less strict policy", stuck.Needs())
		}

		if _, err := cat.RecordInline(ctx, rootID.String(), c.String("policy")); err != nil {
			return fmt.Errorf("recording inline run: %w", err)
		}

		return writeDagJSON(c.String("out"), result)
	},
}

var carCommand = &cli.Command{
	Name:  "car",
	Usage: "import/export CAR archives",
	Subcommands: []*cli.Command{
		{
			Name:  "export",
			Usage: "write the subgraph rooted at --root to a CARv2 file",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Required: true},
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true},
			},
			Action: func(c *cli.Context) error {
				rootID, err := cid.Decode(c.String("root"))
				if err != nil {
					return fmt.Errorf("parsing root: %w", err)
				}
				f, err := os.Create(c.String("out"))
				if err != nil {
					return fmt.Errorf("creating %s: %w", c.String("out"), err)
				}
				defer f.Close()

				if err := bs.ExportCAR(context.Background(), rootID, f); err != nil {
					return fmt.Errorf("exporting car: %w", err)
				}
				fmt.Printf("wrote %s rooted at %s\n", c.String("out"), rootID)
				return nil
			},
		},
		{
			Name:  "import",
			Usage: "load every block in a CAR file into the store",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true},
			},
			Action: func(c *cli.Context) error {
				f, err := os.Open(c.String("in"))
				if err != nil {
					return fmt.Errorf("opening %s: %w", c.String("in"), err)
				}
				defer f.Close()

				roots, err := bs.ImportCAR(context.Background(), f)
				if err != nil {
					return fmt.Errorf("importing car: %w", err)
				}
				fmt.Printf("imported, roots:\n")
				for _, r := range roots {
					fmt.Printf("  %s\n", r)
				}
				return nil
			},
		},
	},
}

var catalogCommand = &cli.Command{
	Name:  "catalog",
	Usage: "inspect recorded extract/inline runs",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "list every recorded run, most recent first",
			Action: func(c *cli.Context) error {
				runs, err := cat.List(context.Background())
				if err != nil {
					return fmt.Errorf("listing runs: %w", err)
				}
				for _, r := range runs {
					if r.Operation == "extract" {
						fmt.Printf("%s  %-8s root=%-64s blocks=%d  %s\n",
							r.ID, r.Operation, r.RootCID, r.BlockCount, r.CreatedAt.Format("2006-01-02T15:04:05"))
					} else {
						fmt.Printf("%s  %-8s root=%-64s policy=%-14s %s\n",
							r.ID, r.Operation, r.RootCID, r.Policy, r.CreatedAt.Format("2006-01-02T15:04:05"))
					}
				}
				return nil
			},
		},
	},
}

func codecFromFlag(s string) (codec.Codec, error) {
	switch s {
	case "dag-cbor":
		return codec.DagCBOR, nil
	case "dag-json":
		return codec.DagJSON, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (want dag-cbor or dag-json)", s)
	}
}

func digestFromFlag(s string) (digest.Digest, error) {
	switch s {
	case "sha2-256":
		return digest.SHA2_256, nil
	case "blake3":
		return digest.Blake3, nil
	default:
		return nil, fmt.Errorf("unknown digest %q (want sha2-256 or blake3)", s)
	}
}

func policyFromFlag(s string) (inliner.Policy, error) {
	switch s {
	case "naive":
		return inliner.Naive, nil
	case "at-least-once":
		return inliner.AtLeastOnce, nil
	case "at-most-once":
		return inliner.AtMostOnce, nil
	default:
		return 0, fmt.Errorf("unknown policy %q (want naive, at-least-once, or at-most-once)", s)
	}
}

func readDagJSON(path string) (datamodel.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagjson.Decode(nb, f); err != nil {
		return nil, fmt.Errorf("decoding %s as dag-json: %w", path, err)
	}
	return nb.Build(), nil
}

func writeDagJSON(path string, n datamodel.Node) error {
	var buf bytes.Buffer
	if err := dagjson.Encode(n, &buf); err != nil {
		return fmt.Errorf("encoding result as dag-json: %w", err)
	}
	if path == "" {
		fmt.Println(buf.String())
		return nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
