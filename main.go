package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZacxDev/video-captioner/internal/config"
	"github.com/ZacxDev/video-captioner/internal/logging"
	"github.com/ZacxDev/video-captioner/internal/server"
	"github.com/ZacxDev/video-captioner/internal/storage"
	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/ZacxDev/video-captioner/pkg/videoprocessor"
	"github.com/spf13/cobra"
)

const (
	defaultFontSize  = 50
	defaultFontColor = "white"
)

var (
	rootCmd = &cobra.Command{
		Use:   "video-captioner",
		Short: "Burn outlined captions into videos",
		Long: `video-captioner renders wrapped, outlined caption text onto every frame of a video.
It runs as a small web service or captions a single file from the command line.

Examples:
  # Serve the upload form on :5000
  video-captioner serve --config captioner.yaml

  # Caption one file
  video-captioner caption -i input.mp4 -o output.mp4 --text "Hello world" --font-size 48`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the caption web service",
		Long: fmt.Sprintf(`Serve the upload form, the JSON API, health and metrics.

Every setting can be overridden from the environment with the %s_ prefix,
e.g. %s_UPLOAD_DIR=/srv/captions.`, config.EnvPrefix, config.EnvPrefix),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			verbose, _ := cmd.Flags().GetBool("verbose")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if verbose {
				cfg.Verbose = true
				cfg.LogLevel = "debug"
			}

			logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.UploadDir, logger)
			if err != nil {
				return err
			}
			captioner, err := videoprocessor.NewCaptioner(cfg.FontPath, cfg.OutputFormat, logger, cfg.Verbose)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, captioner, store, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	captionCmd = &cobra.Command{
		Use:   "caption",
		Short: "Caption a single video file",
		Long: `Render caption text onto a video and write the result.

Flags set explicitly win over values from a --style preset.

Example:
  video-captioner caption -i input.mp4 -o output.mp4 --text "Hello world" --font-color yellow --style bold.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &videoprocessor.CaptionOptions{}

			flags := cmd.Flags()
			opts.InputPath, _ = flags.GetString("input")
			opts.OutputPath, _ = flags.GetString("output")
			opts.Text, _ = flags.GetString("text")
			opts.Verbose, _ = flags.GetBool("verbose")
			format, _ := flags.GetString("format")
			opts.OutputFormat = types.OutputFormat(strings.ToLower(format))

			if flags.Changed("font-size") {
				opts.FontSize, _ = flags.GetInt("font-size")
			}
			if flags.Changed("font-color") {
				opts.FontColor, _ = flags.GetString("font-color")
			}
			if flags.Changed("outline-color") {
				opts.OutlineColor, _ = flags.GetString("outline-color")
			}
			if flags.Changed("font") {
				opts.FontPath, _ = flags.GetString("font")
			}

			if stylePath, _ := flags.GetString("style"); stylePath != "" {
				style, err := config.LoadStyle(stylePath)
				if err != nil {
					return err
				}
				style.Apply(opts)
			}
			if opts.FontSize == 0 {
				opts.FontSize = defaultFontSize
			}
			if opts.FontColor == "" {
				opts.FontColor = defaultFontColor
			}

			if opts.InputPath == "" || opts.OutputPath == "" {
				return fmt.Errorf("input and output paths are required")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := videoprocessor.CaptionVideo(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%dx%d, %.1fs, %d caption lines)\n",
				result.OutputPath, result.Video.Width, result.Video.Height, result.Video.Duration, len(result.Lines))
			return nil
		},
	}
)

func init() {
	// Serve command flags
	serveCmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
	serveCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Caption command flags
	captionCmd.Flags().StringP("input", "i", "", "Input video file")
	captionCmd.Flags().StringP("output", "o", "", "Output video file")
	captionCmd.Flags().String("text", "", "Caption text")
	captionCmd.Flags().Int("font-size", defaultFontSize, "Font size in pixels")
	captionCmd.Flags().String("font-color", defaultFontColor, "Caption color (name or #rrggbb)")
	captionCmd.Flags().String("outline-color", config.DefaultOutlineColor, "Outline color (name or #rrggbb)")
	captionCmd.Flags().String("font", "", "TTF/OTF font file (default: embedded "+config.FontFamily+")")
	captionCmd.Flags().String("style", "", "YAML caption style preset")
	captionCmd.Flags().String("format", string(types.OutputFormatMP4), "Output format (mp4 or webm)")
	captionCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")

	captionCmd.MarkFlagRequired("input")
	captionCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(captionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
