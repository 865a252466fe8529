// Package goemitter renders HTTP server scaffolding from extracted routes.
// The generated project is a self-contained Go module: one package with a
// struct per referenced message, a controller per service wired onto a
// net/http ServeMux, an optional business interface per service, and a
// runnable cmd/server entrypoint. Generated code depends on the standard
// library only.
package goemitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/mark3labs/proto2rest/internal/httproute"
	"github.com/mark3labs/proto2rest/internal/proto"
)

// Options controls how the Go emitter renders a project.
type Options struct {
	OutDir            string   // required; target directory to write the project
	PackageName       string   // package name for the generated code; defaults to "api"
	ModulePath        string   // go module path; defaults to PackageName
	Source            string   // display name of the proto file, used in the README
	ServiceInterfaces bool     // render per-service interfaces into their own files
	Force             bool     // overwrite existing files
	DryRun            bool     // don't write, only plan
	FS                afero.Fs // defaults to the OS filesystem
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files and final resolved names.
type Result struct {
	PackageName string
	ModulePath  string
	Planned     []PlannedFile
}

// Emit renders a Go server project from the parsed file and its routes.
func Emit(ctx context.Context, file *proto.File, routes []*httproute.Route, opts Options) (*Result, error) {
	_ = ctx
	if file == nil {
		return nil, fmt.Errorf("goemitter: nil file")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("goemitter: OutDir is required")
	}
	pkg := sanitizePackageName(opts.PackageName)
	if pkg == "" {
		pkg = "api"
	}
	module := strings.TrimSpace(opts.ModulePath)
	if module == "" {
		module = pkg
	}
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	data := newProjectData(pkg, module, opts.Source, !opts.ServiceInterfaces, file, routes)

	// Build file map
	files := map[string][]byte{}
	gomod, err := renderFile("gomod", data)
	if err != nil {
		return nil, err
	}
	files["go.mod"] = gomod
	if len(data.Types) > 0 {
		types, err := renderFile("types", data)
		if err != nil {
			return nil, err
		}
		files["types.go"] = types
	}
	for _, svc := range data.Services {
		controller, err := renderFile("controller", svc)
		if err != nil {
			return nil, err
		}
		files[svc.FileBase+"_controller.go"] = controller
		if opts.ServiceInterfaces {
			service, err := renderFile("service", svc)
			if err != nil {
				return nil, err
			}
			files[svc.FileBase+"_service.go"] = service
		}
	}
	server, err := renderFile("server", data)
	if err != nil {
		return nil, err
	}
	files["server.go"] = server
	mainGo, err := renderFile("main", data)
	if err != nil {
		return nil, err
	}
	files[filepath.Join("cmd", "server", "main.go")] = mainGo
	readme, err := renderFile("readme", data)
	if err != nil {
		return nil, err
	}
	files["README.md"] = readme

	// Plan in deterministic order
	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: filepath.ToSlash(rel), Size: len(files[rel]), Mode: 0o644})
	}

	// Write if not dry-run
	if !opts.DryRun {
		if err := writeFiles(fs, opts.OutDir, files, opts.Force); err != nil {
			return nil, err
		}
	}

	return &Result{PackageName: pkg, ModulePath: module, Planned: planned}, nil
}

func writeFiles(fs afero.Fs, outDir string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	// Pre-flight: if directory exists and not empty and not force, error.
	if st, err := fs.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := afero.ReadDir(fs, abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("goemitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for rel, content := range files {
		p := filepath.Join(abs, rel)
		if err := fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := afero.WriteFile(fs, tmp, content, 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := fs.Rename(tmp, p); err != nil {
			_ = fs.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}

func sanitizePackageName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	b := strings.Builder{}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "pkg" + out
	}
	if goReserved[out] {
		out += "pkg"
	}
	return out
}
