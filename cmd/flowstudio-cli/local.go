package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tcmartin/flowstudio/pkg/flowchart"
	"github.com/tcmartin/flowstudio/pkg/loader"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/normalizer"
	"github.com/tcmartin/flowstudio/pkg/utils"
)

func newNormalizeCmd(opts *options) *cobra.Command {
	var output, format string

	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Normalize an editor document into a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := opts.normalizeFile(args[0])
			if err != nil {
				return err
			}

			data, err := encode(def, format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d tasks)\n", output, def.TaskCount())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the definition to a file")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	return cmd
}

func newRenderCmd(opts *options) *cobra.Command {
	var direction string
	var editor bool

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a definition or editor document as a Mermaid flowchart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := opts.readDefinition(args[0], editor)
			if err != nil {
				return err
			}

			diagram, err := flowchart.RenderDefinition(def, opts.renderOptions(direction))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), diagram)
			return err
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "", "Flowchart direction: TD or LR")
	cmd.Flags().BoolVar(&editor, "editor", false, "Treat the file as an editor document")
	return cmd
}

// normalizeFile loads an editor document and normalizes it with the
// configured field catalog
func (o *options) normalizeFile(path string) (*models.WorkflowDefinition, error) {
	doc, err := loader.LoadEditorDocument(path)
	if err != nil {
		return nil, err
	}
	def, err := normalizer.NormalizeDocument(*doc, o.catalog())
	o.logger.LogNormalize(doc.Workflow.Name, taskCount(def), err)
	return def, err
}

// readDefinition loads path as a definition, normalizing it first when it
// is an editor document
func (o *options) readDefinition(path string, editor bool) (*models.WorkflowDefinition, error) {
	if !editor {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		editor = loader.IsEditorDocument(data, loader.DetectFormat(path))
	}
	if editor {
		return o.normalizeFile(path)
	}
	return loader.LoadDefinition(path)
}

func (o *options) catalog() models.FieldCatalog {
	return models.DefaultFieldCatalog().With(o.cfg.Normalizer.ExtraFields...)
}

func (o *options) renderOptions(direction string) flowchart.Options {
	if direction == "" {
		direction = o.cfg.Renderer.Direction
	}
	return flowchart.Options{
		Direction: flowchart.Direction(direction),
		MaxDepth:  o.cfg.Renderer.MaxDepth,
	}
}

func taskCount(def *models.WorkflowDefinition) int {
	if def == nil {
		return 0
	}
	return def.TaskCount()
}

// encode renders v as indented JSON or YAML
func encode(v any, format string) ([]byte, error) {
	data, err := utils.MarshalIndent(v)
	if err != nil {
		return nil, err
	}
	switch format {
	case "json", "":
		return data, nil
	case "yaml", "yml":
		return utils.JSONToYAML(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
