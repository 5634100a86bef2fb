package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/glizzus/murmur/internal/client"
	"github.com/glizzus/murmur/internal/config"
	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/presenters"
	"github.com/glizzus/murmur/internal/schedule"
	"github.com/glizzus/murmur/internal/state"
	"github.com/glizzus/murmur/internal/voice"
)

const syncTimeout = 10 * time.Second

// connect logs in with the environment's server config and waits for the
// initial state burst.
func connect(ctx context.Context) (*client.Client, error) {
	serverConfig, err := config.NewServerConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	trust, err := serverConfig.Trust()
	if err != nil {
		return nil, err
	}
	identity, err := serverConfig.Identity()
	if err != nil {
		return nil, err
	}

	c := client.New(client.Config{
		Addr:     serverConfig.Addr,
		Trust:    trust,
		ForceTCP: serverConfig.ForceTCP,
	})

	synced := make(chan struct{}, 1)
	rejected := make(chan event.Rejected, 1)
	unsubscribe := c.Events().Subscribe(func(e event.Event) {
		switch e := e.(type) {
		case event.Synced:
			select {
			case synced <- struct{}{}:
			default:
			}
		case event.Rejected:
			select {
			case rejected <- e:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := c.Connect(ctx, identity); err != nil {
		return nil, err
	}
	if err := c.Authenticate(serverConfig.Username, serverConfig.Password, client.ClientTypeBot, serverConfig.Tokens...); err != nil {
		c.Disconnect()
		return nil, err
	}

	select {
	case <-synced:
		return c, nil
	case r := <-rejected:
		c.Disconnect()
		return nil, &client.RejectError{Type: r.Type, Reason: r.Reason}
	case <-c.Done():
		return nil, errors.New("disconnected before sync")
	case <-time.After(syncTimeout):
		c.Disconnect()
		return nil, fmt.Errorf("server did not sync within %s", syncTimeout)
	case <-ctx.Done():
		c.Disconnect()
		return nil, ctx.Err()
	}
}

// withClient runs action against a synced client and disconnects after.
func withClient(action func(ctx *cli.Context, c *client.Client) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := connect(ctx.Context)
		if err != nil {
			return cli.Exit("Failed to connect: "+err.Error(), 1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := c.Flush(flushCtx); err != nil {
				slog.Debug("Failed to flush before disconnect", slog.Any("error", err))
			}
			c.Disconnect()
		}()
		return action(ctx, c)
	}
}

// targetChannel resolves --channel, falling back to the busiest channel.
func targetChannel(ctx *cli.Context, c *client.Client) (state.Channel, error) {
	snap, err := c.Snapshot(ctx.Context)
	if err != nil {
		return state.Channel{}, err
	}
	if name := ctx.String("channel"); name != "" {
		return voice.FindChannel(snap, name)
	}
	ch, ok := voice.MaxAttendedChannel(snap)
	if !ok {
		return state.Channel{}, errors.New("no channel has anyone in it")
	}
	return ch, nil
}

func playOnce(ctx context.Context, c *client.Client, channelID uint32, path string, bitrate int) error {
	return voice.WithChannel(ctx, c, channelID, func(ctx context.Context, ch state.Channel) error {
		slog.Info("Playing file", "path", path, "channel", ch.Name)
		return voice.PlayFile(ctx, c, path, bitrate)
	})
}

var channelFlag = &cli.StringFlag{
	Name:  "channel",
	Usage: "Name of the channel to use; defaults to the busiest one",
}

func main() {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			log.Fatalf("Failed to load .env file: %v", err)
		}
	}

	app := &cli.App{
		Name:        "murmur-cli",
		Description: "A development CLI for poking at a Mumble server",
		Commands: []*cli.Command{
			{
				Name:  "tree",
				Usage: "Print the channel tree and who is in each channel",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "ids", Usage: "List channels with their ids instead"},
				},
				Action: withClient(func(ctx *cli.Context, c *client.Client) error {
					snap, err := c.Snapshot(ctx.Context)
					if err != nil {
						return cli.Exit("Failed to read state: "+err.Error(), 1)
					}
					if ctx.Bool("ids") {
						fmt.Println(presenters.BuildChannelList(snap))
						return nil
					}
					fmt.Println(presenters.BuildTree(snap))
					return nil
				}),
			},
			{
				Name:      "play",
				Usage:     "Play an audio file into a channel",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					channelFlag,
					&cli.IntFlag{Name: "bitrate", Usage: "Opus bitrate in bits per second"},
					&cli.StringFlag{Name: "cron", Usage: "Keep running and play on this cron schedule"},
				},
				Action: withClient(func(ctx *cli.Context, c *client.Client) error {
					path := ctx.Args().First()
					if path == "" {
						return cli.Exit("Please provide a file to play", 1)
					}
					ch, err := targetChannel(ctx, c)
					if err != nil {
						return cli.Exit("Failed to pick a channel: "+err.Error(), 1)
					}

					bitrate := ctx.Int("bitrate")
					expr := ctx.String("cron")
					if expr == "" {
						if err := playOnce(ctx.Context, c, ch.ID, path, bitrate); err != nil {
							return cli.Exit("Failed to play: "+err.Error(), 1)
						}
						return nil
					}

					cron, err := schedule.ParseCron(expr)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
					defer stop()
					go func() {
						select {
						case <-c.Done():
							stop()
						case <-runCtx.Done():
						}
					}()

					err = schedule.NewScheduler(cron).Run(runCtx, func(ctx context.Context, at time.Time) error {
						return playOnce(ctx, c, ch.ID, path, bitrate)
					})
					if err != nil && !errors.Is(err, context.Canceled) {
						return cli.Exit("Schedule stopped: "+err.Error(), 1)
					}
					return nil
				}),
			},
			{
				Name:      "say",
				Usage:     "Send a text message to a channel",
				ArgsUsage: "<message>",
				Flags:     []cli.Flag{channelFlag},
				Action: withClient(func(ctx *cli.Context, c *client.Client) error {
					msg := ctx.Args().First()
					if msg == "" {
						return cli.Exit("Please provide a message", 1)
					}
					ch, err := targetChannel(ctx, c)
					if err != nil {
						return cli.Exit("Failed to pick a channel: "+err.Error(), 1)
					}
					if err := c.SendText(ch.ID, msg); err != nil {
						return cli.Exit("Failed to send: "+err.Error(), 1)
					}
					log.Printf("Sent to %s", ch.Name)
					return nil
				}),
			},
			{
				Name:  "version",
				Usage: "Print the protocol version this client speaks",
				Action: func(ctx *cli.Context) error {
					fmt.Printf("murmur %s\n", mumbleproto.ClientVersion)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
