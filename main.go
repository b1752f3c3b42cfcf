package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/42wim/matterstate/bridge"
	"github.com/42wim/matterstate/bridge/mattermost"
	"github.com/42wim/matterstate/bridge/slack"
	"github.com/42wim/matterstate/client"
	"github.com/42wim/matterstate/config"
	"github.com/42wim/matterstate/storage"
	"github.com/42wim/matterstate/toast"
	"github.com/google/gops/agent"
	prefixed "github.com/matterbridge/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const version = "0.1.0"

var logger *logrus.Entry

// backend is a connected server: RPC, directory and reconnect hook at once.
type backend interface {
	bridge.ServerClient
	bridge.Directory
	client.Connector
	Server() bridge.Server
	UserID() string
	Close()
}

// directories fans a presence update out to every backend.
type directories []bridge.Directory

func (d directories) UpdatePresence(status bridge.Status, customText string) {
	for _, dir := range d {
		dir.UpdatePresence(status, customText)
	}
}

func main() {
	flagConfig := pflag.String("conf", "", "config file")
	pflag.Bool("debug", false, "enable debug logging")
	pflag.Bool("trace", false, "enable trace logging")
	flagGops := pflag.Bool("gops", false, "enable gops agent")
	flagVersion := pflag.Bool("version", false, "show version")
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("version: %s\n", version)
		return
	}

	logrus.SetFormatter(&prefixed.TextFormatter{
		PrefixPadding: 13,
		DisableColors: true,
		FullTimestamp: true,
	})
	logger = logrus.WithFields(logrus.Fields{"prefix": "main"})
	config.Logger = logrus.WithFields(logrus.Fields{"prefix": "config"})

	if *flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Errorf("failed to start gops agent: %#v", err)
		}
		defer agent.Close()
	}

	v, err := config.LoadConfig(*flagConfig)
	if err != nil {
		logger.Fatalf("loading config failed: %s", err)
	}

	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		logger.Fatalf("binding flags failed: %s", err)
	}

	settings, err := config.Decode(v)
	if err != nil {
		logger.Fatal(err)
	}

	if settings.Debug {
		logger.Info("enabling debug")
		logrus.SetLevel(logrus.DebugLevel)
	}

	if settings.Trace {
		logger.Info("enabling trace")
		logrus.SetLevel(logrus.TraceLevel)
	}

	logger.Infof("matterstate %s starting", version)

	kv, err := storage.Open(settings.Storage.Path)
	if err != nil {
		logger.Fatal(err)
	}
	defer kv.Close()

	backends := newBackends(settings)
	if len(backends) == 0 {
		logger.Fatal("no mattermost or slack server configured")
	}

	var notifier toast.Notifier
	if settings.Notify.Enabled {
		notifier = toast.NewDesktop(settings.Notify.Icon)
	}

	dirs := make(directories, 0, len(backends))
	for _, b := range backends {
		dirs = append(dirs, b)
	}

	c := client.New(client.Options{
		Directory:     dirs,
		Notifier:      notifier,
		Storage:       kv,
		IdleTimeout:   settings.Idle.Timeout,
		ReconnectMin:  settings.Reconnect.Min,
		ReconnectMax:  settings.Reconnect.Max,
		ProbeInterval: settings.Reconnect.Probe,
		ToastLimit:    settings.Toast.Limit,
		ToastTTL:      settings.Toast.TTL,
		PreviewLength: settings.Toast.Preview,
		TypingTTL:     settings.Typing.TTL,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	userID := ""
	for _, b := range backends {
		if id := start(ctx, c, b); userID == "" {
			userID = id
		}
	}

	if userID == "" {
		logger.Warn("no backend reachable yet, waiting for reconnect")
	} else {
		c.BeginSession(userID)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	c.EndSession()
	c.Close()

	for _, b := range backends {
		b.Close()
	}
}

func newBackends(settings *config.Settings) []backend {
	var backends []backend

	if settings.Mattermost.Server != "" {
		mm, err := mattermost.New(mattermost.Config{
			Server:        settings.Mattermost.Server,
			Team:          settings.Mattermost.Team,
			Token:         settings.Mattermost.Token,
			Insecure:      settings.Mattermost.Insecure,
			SkipTLSVerify: settings.Mattermost.SkipTLSVerify,
			ClientCert:    settings.Mattermost.ClientCert,
			ClientKey:     settings.Mattermost.ClientKey,
			Debug:         settings.Debug,
			Trace:         settings.Trace,
		})
		if err != nil {
			logger.Fatal(err)
		}

		backends = append(backends, mm)
	}

	if settings.Slack.Token != "" {
		backends = append(backends, slack.New(slack.Config{
			Token:   settings.Slack.Token,
			Channel: settings.Slack.Channel,
			Debug:   settings.Debug,
			Trace:   settings.Trace,
		}))
	}

	return backends
}

// start connects b and registers it with the client. An unreachable
// backend is handed to the reconnection manager.
func start(ctx context.Context, c *client.Client, b backend) string {
	err := b.Connect(ctx)
	server := b.Server()

	c.Servers.Add(server)
	c.Attach(server.ID, b, b)

	if err != nil {
		logger.Errorf("connecting %s failed: %s", server.Name, err)
		c.HandleEvent(&bridge.Event{
			Type:     "connection_lost",
			ServerID: server.ID,
			Data:     &bridge.ConnectionLostEvent{Address: server.Address, Unreachable: true},
		})

		return ""
	}

	if err := c.LoadMembers(ctx, server.ID, 0); err != nil {
		logger.Errorf("loading members of %s failed: %s", server.Name, err)
	}

	return b.UserID()
}
