package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"extsock/bridge"
	"extsock/rpc"

	"gopkg.in/yaml.v3"
)

// CallCmd represents the call command structure
type CallCmd struct {
	Tool     string        `help:"Tool path to invoke, e.g. alert" xor:"target"`
	Resource string        `help:"Resource path to read, e.g. navigator.userAgent" xor:"target"`
	Args     []string      `arg:"" optional:"" help:"Tool arguments; JSON values are decoded, anything else is sent as a string"`
	Wait     time.Duration `help:"How long to wait for an extension peer to connect" default:"30s"`
	Format   string        `help:"Output format (text, json, yaml)" enum:"text,json,yaml" default:"text"`
}

// callOutput is the json/yaml shape of a call result.
type callOutput struct {
	Method  string `json:"method" yaml:"method"`
	IsError bool   `json:"is_error" yaml:"is_error"`
	Code    int    `json:"code,omitempty" yaml:"code,omitempty"`
	Text    string `json:"text" yaml:"text"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Run implements the call command execution
func (c *CallCmd) Run(cli *CLI) error {
	tag, path, err := getTarget(c.Tool, c.Resource)
	if err != nil {
		return err
	}
	if tag == rpc.TagResource && len(c.Args) > 0 {
		return fmt.Errorf("arguments are only accepted with --tool")
	}

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	logger, err := cli.setupLogging(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mgr := bridge.NewManager(bridge.Options{
		Addr:        cfg.Addr(),
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	if err := mgr.Attach(ctx); err != nil {
		return err
	}
	defer closeManager(mgr)

	waitCtx, cancel := context.WithTimeout(ctx, c.Wait)
	err = mgr.WaitForPeer(waitCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("no extension peer connected to %s within %s: %w", cfg.PeerURL(), c.Wait, err)
	}

	var facade *bridge.Facade
	if tag == rpc.TagTool {
		facade = bridge.NewTools(mgr)
	} else {
		facade = bridge.NewResources(mgr)
	}
	res := facade.CallExtension(ctx, path, parseArgs(c.Args)...)

	if err := printResult(cli.stdout(), c.Format, rpc.Encode(tag, path), res); err != nil {
		return err
	}
	if res.IsError {
		return fmt.Errorf("call failed (%s)", rpc.CodeName(res.Code))
	}
	return nil
}

func printResult(w io.Writer, format, method string, res rpc.Result) error {
	if format == "" || format == "text" {
		fmt.Fprintln(w, res.Text())
		return nil
	}

	out := callOutput{Method: method, IsError: res.IsError, Code: res.Code, Text: res.Text()}
	if len(res.Value) > 0 {
		if err := json.Unmarshal(res.Value, &out.Value); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		fmt.Fprint(w, string(data))
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	return nil
}
