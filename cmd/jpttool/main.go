package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/vearutop/jpt"
	"github.com/vearutop/jpt/internal/logger"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fail(err)
	}
}

type tool struct {
	cfg      Config
	closeLog func() error
}

func newApp() *cli.Command {
	t := &tool{}

	return &cli.Command{
		Name:  "jpttool",
		Usage: "Merge, split and create JPT (JPEG colour + PNG alpha) containers",
		Description: fmt.Sprintf("JPT format version: %d\n"+
			"JPEG_QUALITY is a value from 1 (worst) to 100 (best), default %d; "+
			"values above 95 should be avoided.", jpt.Version, jpt.DefaultQuality),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config.yaml"},
			&cli.StringFlag{Name: "log-level", Usage: "log level (debug, info, warn, error)", Value: "info"},
			&cli.StringFlag{Name: "log-format", Usage: "log format (text, json)", Value: "text"},
			&cli.StringFlag{Name: "log-file", Usage: "also write logs to this file, rotated by size"},
		},
		Before: t.before,
		After:  t.after,
		Commands: []*cli.Command{
			t.mergeCmd(),
			t.splitCmd(),
			t.prepareCmd(),
			t.convertCmd(),
			t.inspectCmd(),
		},
	}
}

func (t *tool) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	t.cfg = cfg

	lc := logger.Config{
		Level:  cmd.String("log-level"),
		Format: cmd.String("log-format"),
		File:   cmd.String("log-file"),
		Out:    cmd.Root().ErrWriter,
	}
	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		lc.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		lc.Format = cfg.LogFormat
	}
	if cfg.LogFile != "" && !cmd.IsSet("log-file") {
		lc.File = cfg.LogFile
	}

	l, closeLog, err := logger.New(lc)
	if err != nil {
		return ctx, err
	}
	t.closeLog = closeLog
	return logger.WithContext(ctx, l), nil
}

func (t *tool) after(context.Context, *cli.Command) error {
	if t.closeLog == nil {
		return nil
	}
	return t.closeLog()
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite existing output files"}
}

func transcodeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: "JPEG quality (1-100)"},
		&cli.UintFlag{Name: "width", Usage: "resize to width, 0 keeps aspect ratio"},
		&cli.UintFlag{Name: "height", Usage: "resize to height, 0 keeps aspect ratio"},
		&cli.StringFlag{Name: "interpolation", Usage: "resize interpolation (nearest, bilinear, bicubic, mitchell, lanczos2, lanczos3)"},
		forceFlag(),
	}
}

func (t *tool) mergeCmd() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "merge a JPEG and a PNG file into a JPT file",
		ArgsUsage: "JPT_FILENAME JPEG_FILENAME PNG_FILENAME",
		Flags:     []cli.Flag{forceFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positional(cmd, 3, 3)
			if err != nil {
				return err
			}
			jptPath, jpegPath, pngPath := args[0], args[1], args[2]
			if err := t.checkOverwrite(cmd, jptPath); err != nil {
				return err
			}
			if err := jpt.MergeFile(jptPath, jpegPath, pngPath); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("merged", "jpt", jptPath, "jpeg", jpegPath, "png", pngPath)
			return report(cmd, "File '%s' has been successfully merged.", jptPath)
		},
	}
}

func (t *tool) splitCmd() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "split a JPT file into a JPEG and a PNG file",
		ArgsUsage: "JPT_FILENAME JPEG_FILENAME PNG_FILENAME",
		Flags:     []cli.Flag{forceFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positional(cmd, 3, 3)
			if err != nil {
				return err
			}
			jptPath, jpegPath, pngPath := args[0], args[1], args[2]
			if err := t.checkOverwrite(cmd, jpegPath, pngPath); err != nil {
				return err
			}
			if err := jpt.SplitFile(jptPath, jpegPath, pngPath); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("split", "jpt", jptPath, "jpeg", jpegPath, "png", pngPath)
			return report(cmd, "File '%s' has been successfully split.", jptPath)
		},
	}
}

func (t *tool) prepareCmd() *cli.Command {
	return &cli.Command{
		Name:      "prepare",
		Usage:     "create JPEG and alpha PNG images from an image file",
		ArgsUsage: "FILENAME JPEG_FILENAME PNG_FILENAME [JPEG_QUALITY]",
		Flags:     transcodeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positional(cmd, 3, 4)
			if err != nil {
				return err
			}
			srcPath, jpegPath, pngPath := args[0], args[1], args[2]
			opts, err := t.prepareOptions(cmd, args[3:])
			if err != nil {
				return err
			}
			if err := t.checkOverwrite(cmd, jpegPath, pngPath); err != nil {
				return err
			}
			if err := jpt.PrepareFile(srcPath, jpegPath, pngPath, opts); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("prepared", "source", srcPath, "jpeg", jpegPath, "png", pngPath,
				"quality", opts.Quality)
			return report(cmd, "File '%s' has been successfully converted.", srcPath)
		},
	}
}

func (t *tool) convertCmd() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "create a JPT file from an image file directly using 'prepare'",
		ArgsUsage: "FILENAME JPT_FILENAME [JPEG_QUALITY]",
		Flags:     transcodeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positional(cmd, 2, 3)
			if err != nil {
				return err
			}
			srcPath, jptPath := args[0], args[1]
			opts, err := t.prepareOptions(cmd, args[2:])
			if err != nil {
				return err
			}
			if err := t.checkOverwrite(cmd, jptPath); err != nil {
				return err
			}
			if err := jpt.ConvertFile(srcPath, jptPath, opts); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("converted", "source", srcPath, "jpt", jptPath, "quality", opts.Quality)
			return report(cmd, "File '%s' has been successfully merged.", jptPath)
		},
	}
}

type inspectResult struct {
	Path string `json:"path"`
	*jpt.Info
}

func (t *tool) inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print the header and payload sizes of a JPT file as JSON",
		ArgsUsage: "JPT_FILENAME",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positional(cmd, 1, 1)
			if err != nil {
				return err
			}
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return &jpt.FileError{Op: "inspect", Kind: jpt.KindSourceNotFound, Path: args[0], Err: err}
			}
			defer f.Close()

			info, err := jpt.ReadInfo(f)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			payload, err := json.MarshalIndent(inspectResult{Path: args[0], Info: info}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout(cmd), string(payload))
			return err
		},
	}
}

// prepareOptions resolves transcoding options: positional quality, then flags,
// then config, then defaults.
func (t *tool) prepareOptions(cmd *cli.Command, qualityArg []string) (*jpt.PrepareOptions, error) {
	opts := &jpt.PrepareOptions{
		Quality:       jpt.DefaultQuality,
		Width:         uint(cmd.Uint("width")),
		Height:        uint(cmd.Uint("height")),
		Interpolation: jpt.InterpolationLanczos3,
	}

	switch {
	case len(qualityArg) > 0:
		q, err := parseQuality(qualityArg[0])
		if err != nil {
			return nil, err
		}
		opts.Quality = q
	case cmd.IsSet("quality"):
		opts.Quality = int(cmd.Int("quality"))
	case t.cfg.Quality != nil:
		opts.Quality = *t.cfg.Quality
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return nil, fmt.Errorf("invalid JPEG quality %d, expected 1-100", opts.Quality)
	}

	name := cmd.String("interpolation")
	if name == "" {
		name = t.cfg.Interpolation
	}
	if name != "" {
		interp, err := jpt.ParseInterpolation(name)
		if err != nil {
			return nil, err
		}
		opts.Interpolation = interp
	}
	return opts, nil
}

func parseQuality(s string) (int, error) {
	q, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid JPEG quality %q: %w", s, err)
	}
	return q, nil
}

// checkOverwrite refuses to replace existing files unless forced by flag or config.
func (t *tool) checkOverwrite(cmd *cli.Command, paths ...string) error {
	force := cmd.Bool("force")
	if !cmd.IsSet("force") && t.cfg.Force != nil {
		force = *t.cfg.Force
	}
	if force {
		return nil
	}
	for _, p := range paths {
		_, err := os.Stat(p)
		if err == nil {
			return fmt.Errorf("file '%s' already exists, use --force to overwrite", p)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func positional(cmd *cli.Command, minArgs, maxArgs int) ([]string, error) {
	n := cmd.Args().Len()
	if n < minArgs || n > maxArgs {
		return nil, fmt.Errorf("usage: %s %s %s", cmd.Root().Name, cmd.Name, cmd.ArgsUsage)
	}
	args := cmd.Args().Slice()
	for i, a := range args {
		if a == "" {
			return nil, fmt.Errorf("argument %d: the filename was not specified", i+1)
		}
	}
	return args, nil
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func report(cmd *cli.Command, format string, args ...any) error {
	_, err := fmt.Fprintf(stdout(cmd), format+"\n", args...)
	return err
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
