package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"extsock/peer"
	"extsock/rpc"
)

// PeerCmd represents the peer command structure
type PeerCmd struct {
	URL        string        `help:"Host WebSocket URL (default: the configured host and port)"`
	UserAgent  string        `name:"user-agent" help:"navigator.userAgent reported to the host"`
	Title      string        `help:"Initial document.title" default:"extsock peer"`
	Href       string        `help:"location.href reported to the host" default:"about:blank"`
	MaxRetries int           `name:"max-retries" help:"Reconnect attempts before giving up (-1 disables; default from config)"`
	BaseDelay  time.Duration `name:"base-delay" help:"Reconnect delay unit; attempt n waits n times this (default from config)"`
}

// Run implements the peer command execution
func (p *PeerCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	logger, err := cli.setupLogging(cfg)
	if err != nil {
		return err
	}

	url := p.URL
	if url == "" {
		url = cfg.PeerURL()
	}
	ua := p.UserAgent
	if ua == "" {
		ua = peer.DefaultUserAgent(appVersion)
	}
	retries := p.MaxRetries
	if retries == 0 {
		retries = cfg.Reconnect.MaxRetries
		if retries == 0 {
			retries = -1
		}
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = cfg.Reconnect.BaseDelay
	}

	root := peer.NewBrowserScope(peer.PageInfo{
		UserAgent: ua,
		Href:      p.Href,
		Title:     p.Title,
	}, logger)
	client := peer.NewClient(peer.NewResolver(root, logger), peer.ClientOptions{
		URL:        url,
		MaxRetries: retries,
		BaseDelay:  delay,
		Logger:     logger,
		OnError: func(e *rpc.Error) {
			logger.Error("peer stopped", "code", rpc.CodeName(e.Code), "error", e.Message)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = client.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
