package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/proto2rest/internal/config"
	"github.com/mark3labs/proto2rest/internal/emitter/goemitter"
	"github.com/mark3labs/proto2rest/internal/emitter/openapiemitter"
	"github.com/mark3labs/proto2rest/internal/httproute"
	"github.com/mark3labs/proto2rest/internal/proto"
)

// defaultConfigFile is picked up from the working directory when --config
// is not given.
const defaultConfigFile = "proto2rest.yaml"

// GenerateConfig captures all inputs that influence the generate command
// after merging defaults, config file values, environment variables, and
// CLI overrides.
type GenerateConfig struct {
	Input      string
	Emit       string
	Out        string
	Format     string
	Includes   []string
	Module     string
	ConfigPath string
	DryRun     bool
	Force      bool
	Verbose    bool

	Settings config.Settings
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Emit: "go", Format: "json", Settings: config.Default()}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [proto-file]",
		Short: "Generate REST artifacts from a proto3 file",
		Long: "Generate REST artifacts from a proto3 file whose rpcs carry google.api.http " +
			"annotations. Emits net/http server scaffolding, an OpenAPI document, or a " +
			"plain route listing. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  proto2rest generate api.proto --out ./server
  proto2rest generate api.proto --emit openapi --format yaml
  proto2rest generate --input api.proto --emit routes -I ./proto`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd, args)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path to the proto3 file to parse")
	flags.StringSliceP("include", "I", nil, "Additional import search paths")
	flags.String("out", "", "Output directory (openapi/routes go to stdout when omitted)")
	flags.String("emit", "", "Artifact to emit (go|openapi|routes); defaults to go")
	flags.String("format", "", "Serialization for openapi/routes output (json|yaml); defaults to json")
	flags.String("package", "", "Package name for generated Go code")
	flags.String("module", "", "Module path for the generated go.mod")
	flags.Bool("service-interfaces", true, "Emit a business interface per service")
	flags.Int("max-import-depth", 0, "Maximum import resolution depth (1-100)")
	flags.Bool("no-query-inference", false, "Disable query parameter inference for GET/DELETE routes")
	flags.Bool("allow-custom-methods", false, "Accept custom HTTP verbs beyond the standard five")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command, args []string) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		if _, statErr := os.Stat(defaultConfigFile); statErr == nil {
			configPath = defaultConfigFile
		}
	}
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := config.LoadFile(afero.NewOsFs(), configPath, &cfg.Settings); err != nil {
			return nil, newUsageError(err.Error())
		}
	}

	if err := config.FromEnv(&cfg.Settings); err != nil {
		return nil, newUsageError(err.Error())
	}

	if len(args) == 1 {
		cfg.Input = strings.TrimSpace(args[0])
	}
	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("input") {
		value, err := flags.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(value)
	}
	if flags.Changed("include") {
		value, err := flags.GetStringSlice("include")
		if err != nil {
			return err
		}
		cfg.Includes = append(cfg.Includes, value...)
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = strings.TrimSpace(value)
	}
	if flags.Changed("emit") {
		value, err := flags.GetString("emit")
		if err != nil {
			return err
		}
		cfg.Emit = strings.TrimSpace(value)
	}
	if flags.Changed("format") {
		value, err := flags.GetString("format")
		if err != nil {
			return err
		}
		cfg.Format = strings.TrimSpace(value)
	}
	if flags.Changed("package") {
		value, err := flags.GetString("package")
		if err != nil {
			return err
		}
		cfg.Settings.PackageName = strings.TrimSpace(value)
	}
	if flags.Changed("module") {
		value, err := flags.GetString("module")
		if err != nil {
			return err
		}
		cfg.Module = strings.TrimSpace(value)
	}
	if flags.Changed("service-interfaces") {
		value, err := flags.GetBool("service-interfaces")
		if err != nil {
			return err
		}
		cfg.Settings.ServiceInterfaces = value
	}
	if flags.Changed("max-import-depth") {
		value, err := flags.GetInt("max-import-depth")
		if err != nil {
			return err
		}
		cfg.Settings.MaxImportDepth = value
	}
	if flags.Changed("no-query-inference") {
		value, err := flags.GetBool("no-query-inference")
		if err != nil {
			return err
		}
		cfg.Settings.InferQueryParams = !value
	}
	if flags.Changed("allow-custom-methods") {
		value, err := flags.GetBool("allow-custom-methods")
		if err != nil {
			return err
		}
		cfg.Settings.AllowCustomMethods = value
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Emit = strings.ToLower(strings.TrimSpace(c.Emit))
	c.Out = strings.TrimSpace(c.Out)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Module = strings.TrimSpace(c.Module)
	c.Includes = dedupePaths(c.Includes)
	c.Settings.Normalize()
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: a proto file is required (positional argument or --input)")
	}

	switch c.Emit {
	case "":
		c.Emit = "go"
	case "go", "openapi", "routes":
	default:
		return newUsageError(fmt.Sprintf("generate: unsupported --emit %q (allowed: go, openapi, routes)", c.Emit))
	}

	switch c.Format {
	case "":
		c.Format = "json"
	case "json", "yaml":
	default:
		return newUsageError(fmt.Sprintf("generate: unsupported --format %q (allowed: json, yaml)", c.Format))
	}

	if c.Emit == "go" && c.Out == "" {
		return newUsageError("generate: --out is required when emitting go scaffolding")
	}

	if err := c.Settings.Validate(); err != nil {
		return newUsageError(fmt.Sprintf("generate: %v", err))
	}

	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := logrus.StandardLogger()
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	fs := afero.NewOsFs()

	// 1) Parse the proto file and resolve its imports.
	parser := proto.NewParser(cfg.Settings.ParserOptions(fs, log)...)
	file, err := parser.ParseWithImports(cfg.Input, cfg.Includes...)
	if err != nil {
		return describeParseError(err)
	}
	// Unresolved imports were already logged by the parser as they occurred.
	log.WithFields(logrus.Fields{
		"package":  file.Package,
		"services": len(file.Services),
		"messages": len(file.Messages),
		"warnings": len(parser.Warnings()),
	}).Debug("parsed proto file")

	// 2) Extract the HTTP routes and validate them as a set.
	extractor := httproute.NewExtractor(cfg.Settings.ExtractorOptions()...)
	routes, err := extractor.Extract(file)
	if err != nil {
		return describeRouteError(err)
	}
	if err := extractor.ValidateRoutes(routes); err != nil {
		return describeRouteError(err)
	}
	log.WithField("routes", len(routes)).Debug("extracted http routes")

	// Absolute path only for display; emitters handle creation and writes.
	absOut := cfg.Out
	if cfg.Out != "" {
		if ap, err := filepath.Abs(cfg.Out); err == nil {
			absOut = ap
		}
	}

	// 3) Emit the chosen artifact.
	switch cfg.Emit {
	case "go":
		if len(routes) == 0 {
			return newUsageError(fmt.Sprintf("generate: no google.api.http annotations found in %s", cfg.Input))
		}
		res, err := goemitter.Emit(ctx, file, routes, goemitter.Options{
			OutDir:            cfg.Out,
			PackageName:       cfg.Settings.PackageName,
			ModulePath:        cfg.Module,
			Source:            filepath.Base(cfg.Input),
			ServiceInterfaces: cfg.Settings.ServiceInterfaces,
			Force:             cfg.Force,
			DryRun:            cfg.DryRun,
			FS:                fs,
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		if cfg.DryRun {
			paths := make([]string, 0, len(res.Planned))
			for _, p := range res.Planned {
				paths = append(paths, p.RelPath)
			}
			printPlan(absOut, paths)
		} else {
			fmt.Fprintf(os.Stdout, "Wrote %d files to %s\n", len(res.Planned), absOut)
		}
	case "openapi":
		if cfg.Out == "" {
			doc, err := openapiemitter.Build(file, routes, openapiemitter.Options{})
			if err != nil {
				return err
			}
			data, err := openapiemitter.Marshal(doc, cfg.Format)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}
		res, err := openapiemitter.Emit(ctx, file, routes, openapiemitter.Options{
			OutDir: cfg.Out,
			Format: cfg.Format,
			Force:  cfg.Force,
			DryRun: cfg.DryRun,
			FS:     fs,
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		if cfg.DryRun {
			paths := make([]string, 0, len(res.Planned))
			for _, p := range res.Planned {
				paths = append(paths, p.RelPath)
			}
			printPlan(absOut, paths)
		} else {
			fmt.Fprintf(os.Stdout, "Wrote %s\n", filepath.Join(absOut, res.Planned[0].RelPath))
		}
	case "routes":
		data, err := marshalRoutes(routes, cfg.Format)
		if err != nil {
			return err
		}
		if cfg.Out == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		rel := "routes." + cfg.Format
		if cfg.DryRun {
			printPlan(absOut, []string{rel})
			return nil
		}
		if err := writeArtifact(fs, filepath.Join(cfg.Out, rel), data, cfg.Force); err != nil {
			return wrapOutputError(err, absOut)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d routes to %s\n", len(routes), filepath.Join(absOut, rel))
	default:
		// Should not happen due to earlier validation, but keep defensive.
		return newUsageError(fmt.Sprintf("generate: unsupported --emit %q (allowed: go, openapi, routes)", cfg.Emit))
	}

	return nil
}

// describeParseError maps structured parse errors into friendly usage
// errors; anything else passes through untouched.
func describeParseError(err error) error {
	var perr *proto.Error
	if !errors.As(err, &perr) {
		return err
	}
	msg := fmt.Sprintf("parse: %s", perr.Message)
	if perr.Path != "" && !strings.Contains(perr.Message, perr.Path) {
		msg = fmt.Sprintf("%s\nFile: %s", msg, perr.Path)
	}
	return newUsageError(msg)
}

func describeRouteError(err error) error {
	var herr *httproute.Error
	if !errors.As(err, &herr) {
		return err
	}
	msg := fmt.Sprintf("routes: %s", herr.Message)
	if herr.Route != "" {
		msg = fmt.Sprintf("%s\nRPC: %s", msg, herr.Route)
	}
	return newUsageError(msg)
}

func marshalRoutes(routes []*httproute.Route, format string) ([]byte, error) {
	if routes == nil {
		routes = []*httproute.Route{}
	}
	switch format {
	case "json":
		data, err := json.MarshalIndent(routes, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml":
		return yaml.Marshal(routes)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// writeArtifact writes a single output file with the same guardrails the
// emitters use: refuse to clobber without force, then temp + rename.
func writeArtifact(fs afero.Fs, path string, data []byte, force bool) error {
	if exists, err := afero.Exists(fs, path); err == nil && exists && !force {
		return fmt.Errorf("%q already exists (use --force to overwrite)", path)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func printPlan(outDir string, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") ||
		strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") ||
		strings.Contains(lower, "output directory") || strings.Contains(lower, "already exists") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func dedupePaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
