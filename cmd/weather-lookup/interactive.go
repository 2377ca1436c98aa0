package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/render"
)

const quitCommand = ":q"

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Run the widget in the terminal; each line is a city, :q quits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), a.newController(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runInteractive renders the widget, then treats every input line as typing
// into the field and pressing the button. The widget is redrawn whenever its
// phase changes.
func runInteractive(ctx context.Context, ctrl *lookup.Controller, in io.Reader, out io.Writer) error {
	var renderErr error
	lastPhase := ""
	draw := func(v lookup.View) {
		if v.Phase == lastPhase {
			return
		}
		lastPhase = v.Phase
		fmt.Fprintln(out)
		if err := render.Text(out, v); err != nil && renderErr == nil {
			renderErr = err
		}
	}
	draw(ctrl.View())
	unsubscribe := ctrl.Subscribe(draw)
	defer unsubscribe()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "city> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == quitCommand {
			break
		}
		ctrl.UpdateQuery(line)
		if req := ctrl.Submit(ctx); req != nil {
			if _, err := req.Wait(ctx); err != nil {
				return err
			}
		}
		if renderErr != nil {
			return renderErr
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
