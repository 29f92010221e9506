package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tcmartin/flowstudio/pkg/conductor"
	"github.com/tcmartin/flowstudio/pkg/flowchart"
	"github.com/tcmartin/flowstudio/pkg/normalizer"
	"github.com/tcmartin/flowstudio/pkg/registry"
)

func newPublishCmd(opts *options) *cobra.Command {
	var editor bool

	cmd := &cobra.Command{
		Use:   "publish [file]",
		Short: "Send a definition or editor document to the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := opts.readDefinition(args[0], editor)
			if err != nil {
				return err
			}

			client, err := opts.engineClient()
			if err != nil {
				return err
			}

			result, err := registry.NewPublisher(nil, client, opts.logger).PublishDefinition(cmd.Context(), def)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s version %d to %s\n", result.Name, result.EngineVersion, client.BaseURL())
			return nil
		},
	}

	cmd.Flags().BoolVar(&editor, "editor", false, "Treat the file as an editor document")
	return cmd
}

func newFetchCmd(opts *options) *cobra.Command {
	var version int
	var render, editor bool
	var direction, format string

	cmd := &cobra.Command{
		Use:   "fetch [name]",
		Short: "Read a workflow definition from the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if render && editor {
				return fmt.Errorf("--render and --editor are mutually exclusive")
			}

			client, err := opts.engineClient()
			if err != nil {
				return err
			}

			def, err := client.GetWorkflow(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}

			if render {
				diagram, err := flowchart.RenderDefinition(def, opts.renderOptions(direction))
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), diagram)
				return err
			}

			var out any = def
			if editor {
				doc, err := normalizer.ToEditorDocument(def)
				if err != nil {
					return err
				}
				out = doc
			}

			data, err := encode(out, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Workflow version; 0 is the latest")
	cmd.Flags().BoolVar(&render, "render", false, "Print a Mermaid flowchart")
	cmd.Flags().BoolVar(&editor, "editor", false, "Print an editor document")
	cmd.Flags().StringVar(&direction, "direction", "", "Flowchart direction: TD or LR")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	return cmd
}

func (o *options) engineClient() (*conductor.Client, error) {
	if o.cfg.Engine.BaseURL == "" {
		return nil, fmt.Errorf("no engine URL configured; use --engine or FLOWSTUDIO_ENGINE_URL")
	}
	return conductor.NewClient(o.cfg.Engine.ClientConfig())
}
