package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	imageannotator "github.com/menta2k/image-annotator"
	"github.com/menta2k/image-annotator/internal/api"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/extractor"
	"github.com/menta2k/image-annotator/pkg/viewport"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "image-annotator",
		Short:   "Outline objects in images and export labeled polygons",
		Version: imageannotator.GetVersion(),
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetConfigPath(), "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(annotateCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist.
func loadConfig() (*config.Config, error) {
	if !utils.FileExists(configPath) {
		return config.Default(), nil
	}
	return config.LoadFromFile(configPath)
}

// inferenceFlags are the backend overrides shared by serve and annotate
type inferenceFlags struct {
	backend string
	url     string
	model   string
	cache   string
}

func (f *inferenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "outline backend: remote|ollama|llamacpp|local")
	cmd.Flags().StringVar(&f.url, "url", "", "backend server URL")
	cmd.Flags().StringVar(&f.model, "model", "", "vision model name (ollama, llamacpp)")
	cmd.Flags().StringVar(&f.cache, "cache", "", "sqlite outline cache path")
}

func (f *inferenceFlags) apply(cfg *config.Config) error {
	if f.backend != "" {
		cfg.Inference.Backend = f.backend
	}
	if f.url != "" {
		cfg.Inference.URL = f.url
	}
	if f.model != "" {
		cfg.Inference.Model = f.model
	}
	if f.cache != "" {
		cfg.Cache.Path = f.cache
	}
	return cfg.Validate()
}

func serveCmd() *cobra.Command {
	var (
		flags inferenceFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the annotation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}

			outline, closeFn, err := imageannotator.NewOutlineClient(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Printf("backend=%s url=%s model=%q cache=%q", cfg.Inference.Backend, cfg.Inference.URL, cfg.Inference.Model, cfg.Cache.Path)
			srv := api.New(outline, cfg.Server.Addr,
				api.WithAnalyzer(analyzer.NewWithConfig(cfg.AnalyzerConfig())),
				api.WithScaler(viewport.NewWithConfig(cfg.ViewportConfig())),
			)
			return srv.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func annotateCmd() *cobra.Command {
	var (
		flags  inferenceFlags
		outDir string
		crops  bool
	)

	cmd := &cobra.Command{
		Use:   "annotate [image or directory...]",
		Short: "Outline images and write SVG and JSON exports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outDir != "" {
				cfg.Output.OutputDir = outDir
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}

			inputs, err := expandInputs(args)
			if err != nil {
				return err
			}
			if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
				return err
			}

			outline, closeFn, err := imageannotator.NewOutlineClient(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			a := imageannotator.NewWithConfig(outline, cfg.AnalyzerConfig())
			failed := 0
			for _, in := range inputs {
				res, err := a.AnnotateFile(cmd.Context(), in)
				if err != nil {
					log.Printf("%s: %v", in, err)
					failed++
					continue
				}

				svgPath, jsonPath := utils.OutputPaths(in, cfg.Output.OutputDir, cfg.Output.Prefix, cfg.Output.Suffix)
				if err := a.WriteExports(res, svgPath, jsonPath); err != nil {
					log.Printf("%s: %v", in, err)
					failed++
					continue
				}
				log.Printf("%s: %d outlines (%dx%d)", in, len(res.Annotations), res.Size.Width, res.Size.Height)
				log.Printf("wrote %s", svgPath)
				log.Printf("wrote %s", jsonPath)

				if crops {
					paths, err := a.WriteCrops(res, in, filepath.Join(cfg.Output.OutputDir, "crops"), nil)
					if err != nil {
						log.Printf("%s: %v", in, err)
					}
					for _, p := range paths {
						log.Printf("wrote %s", p)
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(inputs))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&crops, "crops", false, "also save a PNG crop per outline")
	return cmd
}

func expandInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		files, err := utils.ListImageFiles(arg)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, files...)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no images found")
	}
	return inputs, nil
}

func convertCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "convert [outline.svg]",
		Short: "Convert an outline document (or its data URL) to the JSON export format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			doc := strings.TrimSpace(string(raw))
			if strings.HasPrefix(doc, "data:") {
				if doc, err = extractor.DecodeDataURL(doc); err != nil {
					return err
				}
			}

			data, err := json.MarshalIndent(imageannotator.ConvertSVG(doc), "", "  ")
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			log.Printf("wrote %s", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe [image path or URL]",
		Short: "Print the natural size and canvas surface of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			size, err := imageannotator.New(nil).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dims := viewport.NewWithConfig(cfg.ViewportConfig()).CanvasDimensions(size)
			fmt.Printf("Size:   %dx%d\n", size.Width, size.Height)
			fmt.Printf("Canvas: %dx%d (scale %.4f)\n", dims.Width, dims.Height, dims.Scale)
			if info, err := os.Stat(args[0]); err == nil {
				fmt.Printf("File:   %s\n", utils.FormatFileSize(info.Size()))
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if utils.FileExists(configPath) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
			if err := config.Default().SaveToFile(configPath); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return cfg.Validate()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
