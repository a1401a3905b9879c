package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mediaforensics/forensics-fetch"
	"github.com/mediaforensics/forensics-fetch/catalog"
)

type options struct {
	outputDir   string
	datasets    []catalog.Dataset
	compression catalog.Compression
	assetType   catalog.AssetType
	limit       int
	server      catalog.Server
}

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:      "download-faceforensics",
		Usage:     "download the FaceForensics++ and Deep Fake Detection public data release",
		ArgsUsage: "OUTPUT_DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dataset",
				Aliases: []string{"d"},
				Value:   "all",
				Usage:   "dataset to download (`NAME`, or \"all\")",
			},
			&cli.StringFlag{
				Name:    "compression",
				Aliases: []string{"c"},
				Value:   "raw",
				Usage:   "compression degree of videos (raw, c23, c40)",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Value:   "videos",
				Usage:   "file type to download (videos, masks, models)",
			},
			&cli.IntFlag{
				Name:    "num-videos",
				Aliases: []string{"n"},
				Usage:   "download only the first `N` videos (0 = all)",
			},
			&cli.StringFlag{
				Name:  "server",
				Value: "EU",
				Usage: "server to download from (EU, EU2, CA)",
			},
		},
		Action: func(c *cli.Context) error {
			opts, err := parseOptions(c)
			if err != nil {
				return err
			}
			return run(ctx, opts)
		},
		HideHelpCommand: true,
	}

	result := make(chan error, 1)
	go func() { result <- app.Run(os.Args) }()

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		logger.Error(ctx.Err().Error())
		stop()
	}
}

// parseOptions validates every enum flag before any network activity; a bad
// value aborts the run immediately.
func parseOptions(c *cli.Context) (*options, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one OUTPUT_DIR argument (valid datasets: %v)", catalog.Keys())
	}
	opts := options{
		outputDir: c.Args().First(),
		limit:     c.Int("num-videos"),
	}
	var err error
	if name := c.String("dataset"); name == "all" {
		opts.datasets = catalog.All()
	} else {
		d, err := catalog.ParseDataset(name)
		if err != nil {
			return nil, err
		}
		opts.datasets = []catalog.Dataset{d}
	}
	if opts.compression, err = catalog.ParseCompression(c.String("compression")); err != nil {
		return nil, err
	}
	if opts.assetType, err = catalog.ParseAssetType(c.String("type")); err != nil {
		return nil, err
	}
	if opts.server, err = catalog.ParseServer(c.String("server")); err != nil {
		return nil, err
	}
	return &opts, nil
}

func run(ctx context.Context, opts *options) error {
	logger := zap.S()

	if err := confirmTermsOfUse(opts.server); err != nil {
		return err
	}

	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	client := forensics_fetch.NewInsecureClient()
	resolver := catalog.NewResolver(opts.server.BaseURL(), client)
	fetch := forensics_fetch.NewFetcherBuilder().
		WithHTTPClient(client).
		WithLogger(zap.L()).
		Build()

	var failures error
	var downloaded, skipped int
	var totalBytes int64

	for _, dataset := range opts.datasets {
		if dataset.Archive() {
			// Single large zip regardless of compression and type; a
			// per-file bar is useless, so report byte-level progress.
			logger.Infof("Downloading archive %q", dataset)
			jobs, _ := resolver.Resolve(ctx, dataset, opts.assetType, opts.compression, opts.limit)
			for _, job := range jobs {
				dest := filepath.Join(opts.outputDir, job.RelPath)
				ok, err := fetchArchive(ctx, client, job.URL, dest)
				tally(&downloaded, &skipped, &totalBytes, &failures, dataset, dest, ok, err)
			}
			continue
		}

		if ok, reason := dataset.Supports(opts.assetType); !ok {
			logger.Info(reason)
			continue
		}

		logger.Infof("Downloading %s of dataset %q", opts.assetType, dataset)
		jobs, err := resolver.Resolve(ctx, dataset, opts.assetType, opts.compression, opts.limit)
		if err != nil {
			logger.Errorf("Error processing dataset %s: %v", dataset, err)
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", dataset, err))
			continue
		}

		bar := progressbar.Default(int64(len(jobs)), dataset.Key())
		for _, job := range jobs {
			dest := filepath.Join(opts.outputDir, job.RelPath)
			ok, err := fetch.Fetch(ctx, job.URL, dest)
			tally(&downloaded, &skipped, &totalBytes, &failures, dataset, dest, ok, err)
			bar.Add(1)
		}
		fmt.Println()
	}

	logger.Infof("Done: %d files downloaded (%s), %d skipped", downloaded, humanize.Bytes(uint64(totalBytes)), skipped)
	if failures != nil {
		logger.Warnf("Run completed with errors:\n%v", failures)
	}
	return nil
}

// confirmTermsOfUse is the gate in front of all network activity.
func confirmTermsOfUse(server catalog.Server) error {
	fmt.Println("By continuing you confirm the FaceForensics Terms of Use:")
	fmt.Printf("  %s\n", server.TOSURL())
	fmt.Print("Press Enter to continue, or CTRL-C to exit.")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return fmt.Errorf("terms of use not confirmed: %w", err)
	}
	return nil
}

// fetchArchive downloads one archive pseudo-dataset with a byte-level
// progress bar wired to the fetch progress callback.
func fetchArchive(ctx context.Context, client *http.Client, url string, dest string) (bool, error) {
	bar := progressbar.DefaultBytes(1, filepath.Base(dest))
	fetch := forensics_fetch.NewFetcherBuilder().
		WithHTTPClient(client).
		WithLogger(zap.L()).
		WithProgressCallback(func(downloaded int64, expected int64) {
			if expected > 0 && bar.GetMax64() != expected {
				bar.ChangeMax64(expected)
			}
			bar.Set64(downloaded)
		}).
		Build()
	downloaded, err := fetch.Fetch(ctx, url, dest)
	fmt.Println()
	return downloaded, err
}

func tally(downloaded *int, skipped *int, totalBytes *int64, failures *error, dataset catalog.Dataset, dest string, ok bool, err error) {
	logger := zap.S()
	if err != nil {
		logger.Errorf("Error downloading %s: %v", dest, err)
		*failures = multierror.Append(*failures, fmt.Errorf("%s: %w", dataset, err))
		return
	}
	if !ok {
		*skipped++
		return
	}
	*downloaded++
	if info, statErr := os.Stat(dest); statErr == nil {
		*totalBytes += info.Size()
	}
}
