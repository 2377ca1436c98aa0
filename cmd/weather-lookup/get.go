package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/render"
)

func newGetCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <city...>",
		Short: "Look up one city and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), a.newController(), strings.Join(args, " "), output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}

// runGet types city into the widget, presses the button once and renders the
// settled view. A Failure returns errLookupFailed after rendering.
func runGet(ctx context.Context, ctrl *lookup.Controller, city, output string, out io.Writer) error {
	write, err := writerFor(output)
	if err != nil {
		return err
	}
	ctrl.UpdateQuery(city)
	st := ctrl.SubmitAndWait(ctx)
	if err := write(out, ctrl.View()); err != nil {
		return err
	}
	if _, failed := st.(lookup.Failure); failed {
		return errLookupFailed
	}
	return nil
}

func writerFor(output string) (func(io.Writer, lookup.View) error, error) {
	switch output {
	case "text", "":
		return render.Text, nil
	case "json":
		return render.JSON, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", output)
	}
}
