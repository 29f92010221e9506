package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/tcmartin/flowstudio/pkg/loader"
	"github.com/tcmartin/flowstudio/pkg/registry"
	"github.com/tcmartin/flowstudio/pkg/utils"
)

const definitionsPath = "/api/v1/definitions"

func newDefinitionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Manage definitions stored on the studio server",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []registry.DefinitionInfo
			resp, err := opts.server().R().SetContext(cmd.Context()).SetResult(&infos).Get(definitionsPath)
			if err := checkServer(resp, err); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", info.ID, info.Name, info.Version, info.Status, info.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Print the latest revision of a definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.server().R().
				SetContext(cmd.Context()).
				SetPathParam("id", args[0]).
				Get(definitionsPath + "/{id}")
			if err := checkServer(resp, err); err != nil {
				return err
			}
			data, err := utils.IndentJSON(resp.Body())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	createCmd := &cobra.Command{
		Use:   "create [file]",
		Short: "Store a definition or editor document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			contentType := "application/json"
			if loader.DetectFormat(args[0]) == loader.FormatYAML {
				contentType = "application/yaml"
			}

			var info registry.DefinitionInfo
			resp, err := opts.server().R().
				SetContext(cmd.Context()).
				SetHeader("Content-Type", contentType).
				SetBody(data).
				SetResult(&info).
				Post(definitionsPath)
			if err := checkServer(resp, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) revision %d\n", info.ID, info.Name, info.Version)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a definition and all its revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.server().R().
				SetContext(cmd.Context()).
				SetPathParam("id", args[0]).
				Delete(definitionsPath + "/{id}")
			if err := checkServer(resp, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	publishCmd := &cobra.Command{
		Use:   "publish [id]",
		Short: "Publish the latest revision of a stored definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result registry.PublishResult
			resp, err := opts.server().R().
				SetContext(cmd.Context()).
				SetPathParam("id", args[0]).
				SetResult(&result).
				Post(definitionsPath + "/{id}/publish")
			if err := checkServer(resp, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s revision %d as version %d\n", result.Name, result.Revision, result.EngineVersion)
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, createCmd, deleteCmd, publishCmd)
	return cmd
}

func (o *options) server() *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(o.serverURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
}

// checkServer turns transport failures and error responses into errors
func checkServer(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}
