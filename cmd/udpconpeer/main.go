// Command udpconpeer is a small demo/exerciser for the udpcon transport: it
// starts a Peer, optionally connects to a remote, and prints every event
// as it arrives. It exists to drive the library by hand the way
// xtaci-kcptun's client/server binaries drive kcp-go, not as a product in
// its own right.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/lazarus-games/udpcon"
)

// Config mirrors the flag set below; -c overlays a JSON file onto the
// flag defaults the same way xtaci-kcptun's parseJSONConfig does.
type Config struct {
	Listen    string `json:"listen"`
	Protocol  string `json:"protocol"`
	Connect   string `json:"connect"`
	Send      string `json:"send"`
	Sequenced bool   `json:"sequenced"`
}

func parseJSONConfig(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(cfg)
}

func main() {
	app := cli.NewApp()
	app.Name = "udpconpeer"
	app.Usage = "start a udpcon peer and print events as they arrive"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen,l", Value: "127.0.0.1:0", Usage: "local bind address"},
		cli.StringFlag{Name: "protocol,p", Value: "udpcon-demo", Usage: "protocol name (hashed into the wire protocol id)"},
		cli.StringFlag{Name: "connect", Usage: "remote address to Connect() to on startup"},
		cli.StringFlag{Name: "send", Usage: "payload to send to -connect once discovered"},
		cli.BoolFlag{Name: "sequenced", Usage: "send with Sequenced reliability instead of Unreliable"},
		cli.StringFlag{Name: "c", Usage: "JSON config file overlaying the flags above"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		glog.Fatalf("udpconpeer: %+v", err)
	}
}

func run(c *cli.Context) error {
	cfg := Config{
		Listen:    c.String("listen"),
		Protocol:  c.String("protocol"),
		Connect:   c.String("connect"),
		Send:      c.String("send"),
		Sequenced: c.Bool("sequenced"),
	}
	if path := c.String("c"); path != "" {
		if err := parseJSONConfig(&cfg, path); err != nil {
			return errors.Wrap(err, "parseJSONConfig")
		}
	}

	peer, err := udpcon.Start(cfg.Listen, cfg.Protocol)
	if err != nil {
		return errors.Wrap(err, "udpcon.Start")
	}
	defer peer.Stop()

	fmt.Printf("listening on %s, protocol %q\n", peer.LocalAddr(), cfg.Protocol)

	// SIGUSR1 dumps the stats snapshot, the way xtaci-kcptun's client
	// dumps kcp.DefaultSnmp on the same signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	go func() {
		for range sigCh {
			fmt.Printf("stats: %+v\n", peer.Stats())
		}
	}()

	var target net.Addr
	if cfg.Connect != "" {
		target, err = net.ResolveUDPAddr("udp", cfg.Connect)
		if err != nil {
			return errors.Wrapf(err, "resolve %q", cfg.Connect)
		}
		if err := peer.Connect(target); err != nil {
			return errors.Wrap(err, "Connect")
		}
	}

	sent := false
	for {
		for _, ev := range peer.Update() {
			printEvent(ev)
			if !sent && cfg.Send != "" && ev.Kind == udpcon.EventNewPeer && target != nil && ev.Address.String() == target.String() {
				reliability := udpcon.Unreliable
				if cfg.Sequenced {
					reliability = udpcon.Sequenced
				}
				if err := peer.Send(target, []byte(cfg.Send), reliability); err != nil {
					fmt.Fprintf(os.Stderr, "send: %v\n", err)
				}
				sent = true
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printEvent(ev udpcon.Event) {
	switch ev.Kind {
	case udpcon.EventNewPeer:
		color.Green("new peer %s", ev.Address)
	case udpcon.EventPeerTimedOut:
		color.Red("peer timed out %s", ev.Address)
	case udpcon.EventMessage:
		fmt.Printf("message from %s: %q\n", ev.Address, ev.Data)
	}
}
