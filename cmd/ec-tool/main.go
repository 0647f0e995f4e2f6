package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/journeymidnight/ecplanner/config"
	"github.com/journeymidnight/ecplanner/erasure_code"
	"github.com/journeymidnight/ecplanner/utils"
	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/journeymidnight/ecplanner/xlog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func setup(c *cli.Context) (*config.Config, *erasure_code.Coder, error) {
	conf, err := config.NewConfig(c)
	if err != nil {
		return nil, nil, err
	}
	level, err := xlog.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	xlog.InitLog(conf.LogOutput, level)

	schema, err := conf.Schema()
	if err != nil {
		return nil, nil, err
	}
	coder, err := erasure_code.NewCoderWithSchema(schema)
	if err != nil {
		return nil, nil, err
	}
	return conf, coder, nil
}

func plan(c *cli.Context) error {
	_, coder, err := setup(c)
	if err != nil {
		return err
	}
	defer coder.Release()
	schema, _ := coder.Schema()

	var group *erasure_code.BlockGroup
	if c.Bool("encode") {
		group = erasure_code.NewEncodingGroup(schema.NumDataUnits(), schema.NumParityUnits())
	} else {
		erased, err := utils.ParseIndexes(c.String("erased"))
		if err != nil {
			return err
		}
		for _, idx := range erased {
			if idx >= schema.NumAllUnits() {
				return errors.Wrapf(wire_errors.InvalidBlockGroup, "index %d out of range for %s", idx, schema)
			}
		}
		group = erasure_code.NewDecodingGroup(schema.NumDataUnits(), schema.NumParityUnits(), erased...)
	}

	step, err := coder.CalculateCoding(group)
	if err != nil {
		return err
	}
	fmt.Printf("schema      : %s\n", schema)
	fmt.Printf("step        : %s\n", step.Kind())
	fmt.Printf("inputs      : [%s]\n", utils.FormatIndexes(step.InputIndexes()))
	fmt.Printf("outputs     : [%s]\n", utils.FormatIndexes(step.OutputIndexes()))
	fmt.Printf("fingerprint : %016x\n", step.Fingerprint())
	return nil
}

func encode(c *cli.Context) error {
	_, coder, err := setup(c)
	if err != nil {
		return err
	}
	defer coder.Release()

	input := c.String("input")
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	dir := c.String("dir")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	base := filepath.Join(dir, filepath.Base(input))

	start := time.Now()
	stripes, err := encodeFile(coder, f, base)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	fmt.Printf("encoded %s (%s) into %d stripes at %s.ec*\n", input, humanize.IBytes(uint64(fi.Size())), stripes, base)
	if line := throughputLine(fi.Size(), elapsed); len(line) > 0 {
		fmt.Println(line)
	}
	return nil
}

func throughputLine(size int64, elapsed time.Duration) string {
	if elapsed.Seconds() < 1e-9 {
		return ""
	}
	return fmt.Sprintf("Throughput per second :%s", utils.HumanReadableThroughput(float64(size)/elapsed.Seconds()))
}

func reconstruct(c *cli.Context) error {
	_, coder, err := setup(c)
	if err != nil {
		return err
	}
	defer coder.Release()
	schema, _ := coder.Schema()

	base := filepath.Join(c.String("dir"), c.String("name"))
	missing, err := utils.ParseIndexes(c.String("missing"))
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		if missing, err = missingShards(base, schema.NumAllUnits()); err != nil {
			return err
		}
	}
	if len(missing) == 0 {
		fmt.Println("no shard is missing")
		return nil
	}

	stripes, err := reconstructFiles(coder, base, missing)
	if err != nil {
		return err
	}
	fmt.Printf("rebuilt shards [%s] of %s, %d stripes\n", utils.FormatIndexes(missing), base, stripes)
	return nil
}

// randomGroups builds n decoding groups, each with up to maxErasures erased
// blocks picked uniformly.
func randomGroups(r *rand.Rand, n, d, p, maxErasures int) []*erasure_code.BlockGroup {
	groups := make([]*erasure_code.BlockGroup, n)
	for i := range groups {
		perm := r.Perm(d + p)
		erased := perm[:r.Intn(maxErasures+1)]
		sort.Ints(erased)
		groups[i] = erasure_code.NewDecodingGroup(d, p, erased...)
	}
	return groups
}

func bench(c *cli.Context) error {
	conf, coder, err := setup(c)
	if err != nil {
		return err
	}
	defer coder.Release()
	schema, _ := coder.Schema()

	maxErasures := schema.NumParityUnits()
	if c.IsSet("erasures") {
		maxErasures = utils.Min(c.Int("erasures"), schema.NumAllUnits())
	}
	r := rand.New(rand.NewSource(c.Int64("seed")))
	groups := randomGroups(r, c.Int("stripes"), schema.NumDataUnits(), schema.NumParityUnits(), maxErasures)

	start := time.Now()
	results := erasure_code.NewStripeRunner(coder, conf.Workers).Plan(context.Background(), groups)
	elapsed := time.Since(start)

	hist := utils.NewLatencyStatus(1, int64(10*time.Second))
	failures := make(map[wire_errors.Code]int)
	var rebuilt uint64
	for _, res := range results {
		if err := hist.Record(int64(res.Elapsed) + 1); err != nil {
			xlog.Logger.Warnf("latency %v out of range", res.Elapsed)
		}
		if res.Err != nil {
			code, _ := wire_errors.ConvertToCode(res.Err)
			failures[code]++
			continue
		}
		rebuilt += uint64(len(res.Step.OutputBlocks()) * schema.ChunkSize())
	}

	var out *os.File
	if path := c.String("out"); len(path) > 0 {
		if out, err = os.Create(path); err != nil {
			return err
		}
		defer out.Close()
	}
	percentiles := []float64{50, 95, 99, 99.9}
	var values []int64
	if out != nil {
		values, err = hist.Histogram(percentiles, out)
	} else {
		values, err = hist.Histogram(percentiles, nil)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nSummary\n")
	fmt.Printf("Schema  :%s\n", schema)
	fmt.Printf("Workers :%d\n", conf.Workers)
	fmt.Printf("Time taken for tests :%v seconds\n", elapsed.Seconds())
	fmt.Printf("Planned stripes :%s\n", humanize.Comma(hist.Count()))
	for code, n := range failures {
		fmt.Printf("Failed (%s) :%s\n", code, humanize.Comma(int64(n)))
	}
	if elapsed.Seconds() > 1e-9 {
		fmt.Printf("Plans per second :%.2f [#/sec]\n", float64(len(results))/elapsed.Seconds())
		fmt.Printf("Rebuild volume per second :%s\n", utils.HumanReadableThroughput(float64(rebuilt)/elapsed.Seconds()))
	}
	for i, p := range percentiles {
		fmt.Printf("p%-5v :%v\n", p, time.Duration(values[i]))
	}
	return nil
}

func withConfigFlags(flags ...cli.Flag) []cli.Flag {
	return append(config.Flags(), flags...)
}

func main() {
	app := cli.NewApp()
	app.Name = "ec-tool"
	app.Usage = "plan and run erasure coding steps"
	app.Commands = []*cli.Command{
		{
			Name:  "plan",
			Usage: "plan --data <d> --parity <p> --erased <i,j> [--encode]",
			Flags: withConfigFlags(
				&cli.StringFlag{Name: "erased", Aliases: []string{"e"}},
				&cli.BoolFlag{Name: "encode"},
			),
			Action: plan,
		},
		{
			Name:  "encode",
			Usage: "encode --config <path> --input <file> --dir <out>",
			Flags: withConfigFlags(
				&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true},
				&cli.StringFlag{Name: "dir", Value: "."},
			),
			Action: encode,
		},
		{
			Name:  "reconstruct",
			Usage: "reconstruct --config <path> --dir <dir> --name <file> [--missing <i,j>]",
			Flags: withConfigFlags(
				&cli.StringFlag{Name: "dir", Value: "."},
				&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
				&cli.StringFlag{Name: "missing", Aliases: []string{"m"}},
			),
			Action: reconstruct,
		},
		{
			Name:  "bench",
			Usage: "bench --stripes <num> --workers <num> --erasures <num>",
			Flags: withConfigFlags(
				&cli.IntFlag{Name: "stripes", Value: 100000, Aliases: []string{"s"}},
				&cli.IntFlag{Name: "erasures"},
				&cli.Int64Flag{Name: "seed", Value: 1},
				&cli.StringFlag{Name: "out", Usage: "write the latency distribution as json"},
			),
			Action: bench,
		},
	}
	err := app.Run(os.Args)
	xlog.Sync()
	if err != nil {
		fmt.Println(err)
		code, _ := wire_errors.ConvertToCode(err)
		os.Exit(int(code))
	}
}
