package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kind-men/uxios"
	"github.com/kind-men/uxios/transport/h2c"
	"github.com/kind-men/uxios/transport/persistent"
)

type flags struct {
	profile      string
	headers      []string
	params       []string
	data         string
	timeout      time.Duration
	baseURL      string
	responseType string
	store        string
	h2c          bool
	include      bool
	verbose      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "uxios",
		Short:         "Send requests through the uxios pipeline",
		Version:       uxios.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.profile, "profile", "", "YAML profile with request defaults")
	pf.StringArrayVarP(&f.headers, "header", "H", nil, "request header as 'Name: value'")
	pf.StringArrayVarP(&f.params, "param", "p", nil, "query parameter as key=value")
	pf.DurationVar(&f.timeout, "timeout", 0, "request timeout")
	pf.StringVar(&f.baseURL, "base-url", "", "base URL for relative request URLs")
	pf.StringVar(&f.responseType, "type", "", "expected response type: json, text or arraybuffer")
	pf.StringVar(&f.store, "store", "", "SQLite file serving the persistent:// scheme")
	pf.BoolVar(&f.h2c, "h2c", false, "serve the h2c:// scheme with prior knowledge HTTP/2")
	pf.BoolVarP(&f.include, "include", "i", false, "print the status line and headers")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log requests, responses and errors")

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions} {
		root.AddCommand(newVerbCmd(f, method, false))
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		cmd := newVerbCmd(f, method, true)
		cmd.Flags().StringVarP(&f.data, "data", "d", "", "request body; @file reads it from a file")
		root.AddCommand(cmd)
	}

	return root
}

func newVerbCmd(f *flags, method string, withBody bool) *cobra.Command {
	use := strings.ToLower(method) + " URL"
	args := cobra.ExactArgs(1)
	if withBody {
		use += " [DATA]"
		args = cobra.RangeArgs(1, 2)
	}

	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := f.data
			if len(args) == 2 {
				body = args[1]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), f, method, args[0], body)
		},
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, f *flags, method, url, body string) error {
	profile := &Profile{}
	if f.profile != "" {
		p, err := LoadProfile(f.profile)
		if err != nil {
			return err
		}
		profile = p
	}

	client, cleanup, err := buildClient(f, profile)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := buildConfig(f, profile, method, url, body)
	if err != nil {
		return err
	}

	resp, err := client.Do(ctx, cfg)
	if err != nil {
		if e, ok := uxios.AsError(err); ok && e.Response != nil {
			printResponse(stdout, stderr, e.Response, f.include)
		}
		return err
	}
	printResponse(stdout, stderr, resp, f.include)
	return nil
}

func buildClient(f *flags, profile *Profile) (*uxios.Client, func(), error) {
	cleanup := func() {}
	options := profile.ClientOptions()
	if f.verbose {
		options = append(options, uxios.WithSimpleLogger(), uxios.WithNetworkInspector())
	}
	if f.h2c || profile.H2C {
		options = append(options, uxios.WithTransport(h2c.New()))
	}

	store := f.store
	if store == "" {
		store = profile.Store
	}
	if store != "" {
		tr, err := persistent.Open(store)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = tr.Close() }
		options = append(options, uxios.WithTransport(tr))
	}

	client := uxios.New(options...)
	if err := client.ValidationError(); err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}

func buildConfig(f *flags, profile *Profile, method, url, body string) (*uxios.Config, error) {
	overrides, err := profile.Overrides()
	if err != nil {
		return nil, err
	}
	overrides = append(overrides, uxios.WithURL(url), uxios.WithMethod(method))

	if f.baseURL != "" {
		overrides = append(overrides, uxios.WithBaseURL(f.baseURL))
	}
	if f.timeout > 0 {
		overrides = append(overrides, uxios.WithTimeout(f.timeout))
	}
	if f.responseType != "" {
		t, err := responseType(f.responseType)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, uxios.WithResponseType(t))
	} else if profile.ResponseType == "" {
		overrides = append(overrides, uxios.WithResponseType(uxios.Text()))
	}

	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		overrides = append(overrides, uxios.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}
	for _, p := range f.params {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid param %q, expected key=value", p)
		}
		overrides = append(overrides, uxios.WithParam(key, value))
	}

	if body != "" {
		data, err := requestBody(body)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, uxios.WithData(data))
	}

	return uxios.BasedOn(nil, overrides...), nil
}

// requestBody sends valid JSON as JSON and anything else as text.
func requestBody(arg string) (any, error) {
	raw := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		raw = b
	}
	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}
	return string(raw), nil
}

func printResponse(stdout, stderr io.Writer, resp *uxios.Response, include bool) {
	if include {
		fmt.Fprintf(stderr, "%d %s\n", resp.Status, http.StatusText(resp.Status))
		names := make([]string, 0, len(resp.Headers))
		for name := range resp.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range resp.Headers[name] {
				fmt.Fprintf(stderr, "%s: %s\n", name, v)
			}
		}
		fmt.Fprintln(stderr)
	}

	switch data := resp.Data.(type) {
	case nil:
		stdout.Write(resp.Raw)
	case string:
		io.WriteString(stdout, data)
	case []byte:
		stdout.Write(data)
	default:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			stdout.Write(resp.Raw)
			return
		}
		stdout.Write(append(out, '\n'))
	}
}
