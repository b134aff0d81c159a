// Command imgshrink shrinks product photos before they are uploaded through
// the admin form, using the same pre-filter the browser applies.
//
//	imgshrink [-max-bytes N] [-out DIR] photo.jpg [photo2.png ...]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"storefront-catalog/internal/imaging"
)

func main() {
	maxBytes := flag.Int64("max-bytes", imaging.PrefilterMaxBytes, "target size in bytes")
	outDir := flag.String("out", "", "output directory (default: next to the input)")
	verbose := flag.Bool("v", false, "log every file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] image...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := 0
	for _, path := range flag.Args() {
		if err := shrink(path, *outDir, *maxBytes, logger); err != nil {
			logger.Error().Err(err).Str("file", path).Msg("shrink failed")
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func shrink(path, outDir string, maxBytes int64, logger zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := imaging.Prefilter(data, maxBytes)
	if err != nil {
		return err
	}

	dst := outputPath(path, outDir, res.MediaType)
	if err := os.WriteFile(dst, res.Data, 0o644); err != nil {
		return err
	}
	logger.Info().
		Str("file", path).
		Str("output", dst).
		Int("before", len(data)).
		Int("after", len(res.Data)).
		Int("width", res.Width).
		Int("height", res.Height).
		Msg("shrunk")
	return nil
}

// outputPath places the result next to the input (or in outDir) with a
// ".small" suffix and an extension matching the encoded type.
func outputPath(path, outDir, mediaType string) string {
	ext := ".jpg"
	switch mediaType {
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Dir(path)
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, base+".small"+ext)
}
