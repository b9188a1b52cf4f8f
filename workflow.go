package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alc6/pgtemplate/clone"
)

type buildOptions struct {
	Template string
	Env      string
	Force    bool
}

type cloneOptions struct {
	buildOptions
	Output string
}

// buildTemplate discovers the files for opts.Env and brings the template up
// to date. It reports whether a build ran.
func buildTemplate(ctx context.Context, discoverer FileDiscoverer, builder TemplateBuilder, opts buildOptions) (bool, error) {
	files, err := discoverer.DiscoverFiles(opts.Env)
	if err != nil {
		return false, fmt.Errorf("failed to discover sql files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no sql files found in %s", discoverer.Root())
	}
	slog.Info("discovered sql files", "template", opts.Template, "env", opts.Env, "count", len(files))

	if opts.Force {
		if err := builder.Drop(ctx, opts.Template); err != nil {
			return false, err
		}
		if err := builder.Create(ctx, opts.Template, files); err != nil {
			return false, err
		}
		return true, nil
	}

	return builder.SmartCreate(ctx, opts.Template, files)
}

// cloneDatabase makes sure the template is current and clones it. The
// output name is generated when opts.Output is empty.
func cloneDatabase(ctx context.Context, discoverer FileDiscoverer, builder TemplateBuilder, cloner DatabaseCloner, opts cloneOptions) (string, error) {
	output := opts.Output
	if output == "" {
		output = clone.GenerateName(opts.Template)
	}
	if err := clone.ValidateDatabaseName(output); err != nil {
		return "", err
	}

	built, err := buildTemplate(ctx, discoverer, builder, opts.buildOptions)
	if err != nil {
		return "", err
	}
	slog.Debug("template ready", "template", opts.Template, "rebuilt", built)

	if err := cloner.Clone(ctx, opts.Template, output); err != nil {
		return "", err
	}
	return output, nil
}

// templateStatus describes a template's build state.
func templateStatus(ctx context.Context, builder TemplateBuilder, name string) (*TemplateStatus, error) {
	report, err := builder.Check(name)
	if err != nil {
		return nil, fmt.Errorf("failed to check template %s: %w", name, err)
	}
	exists, err := builder.Exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up template %s: %w", name, err)
	}
	return newTemplateStatus(report, exists), nil
}

// listTemplates joins recorded templates with their on-disk sizes.
func listTemplates(ctx context.Context, builder TemplateBuilder, catalog Catalog) (string, error) {
	infos, err := builder.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list templates: %w", err)
	}

	databases, err := catalog.DescribeDatabases(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to describe databases: %w", err)
	}
	sizes := make(map[string]int64, len(databases))
	for _, db := range databases {
		sizes[db.Name] = db.SizeBytes
	}

	return FormatTemplateList(infos, sizes), nil
}

// dropDatabase drops a clone. Templates must be dropped with
// "template drop" so their metadata goes with them.
func dropDatabase(ctx context.Context, builder TemplateBuilder, cloner DatabaseCloner, name string) error {
	if err := clone.ValidateDatabaseName(name); err != nil {
		return err
	}
	report, err := builder.Check(name)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", name, err)
	}
	if !report.BuiltAt.IsZero() {
		return fmt.Errorf("%s is a template, use \"template drop %s\"", name, name)
	}
	return cloner.Drop(ctx, name)
}
