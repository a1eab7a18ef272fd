// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// consoleWebUI runs the authorization round trip through the terminal: it
// prints the sign-in URL and asks the user to paste the redirect URL the
// browser lands on.
type consoleWebUI struct {
	in  io.Reader
	out io.Writer
}

func newConsoleWebUI(in io.Reader, out io.Writer) *consoleWebUI {
	return &consoleWebUI{in: in, out: out}
}

func (u *consoleWebUI) Authorize(ctx context.Context, authorizationURI string, redirectURI string) (string, error) {
	fmt.Fprintln(u.out, "Open the following URL in a browser and sign in:")
	fmt.Fprintln(u.out)
	fmt.Fprintf(u.out, "  %s\n", color.CyanString(authorizationURI))
	fmt.Fprintln(u.out)
	fmt.Fprintf(u.out, "After signing in the browser navigates to a URL starting with %s.\n", redirectURI)
	fmt.Fprint(u.out, "Paste that full URL here: ")

	type line struct {
		text string
		err  error
	}
	lines := make(chan line, 1)
	go func() {
		text, err := bufio.NewReader(u.in).ReadString('\n')
		lines <- line{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-lines:
		if result.err != nil && result.text == "" {
			return "", fmt.Errorf("reading redirect URL: %w", result.err)
		}

		return strings.TrimSpace(result.text), nil
	}
}
