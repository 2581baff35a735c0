// Command chatkit runs the bot runtime and provides operational
// tooling around it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/AltairaLabs/chatkit"
	"github.com/AltairaLabs/chatkit/config"
	"github.com/AltairaLabs/chatkit/dlq"
)

type CLI struct {
	Run RunCmd `cmd:"" help:"Run the bot runtime."`
	DLQ DLQCmd `cmd:"" name:"dlq" help:"Dead-letter queue tooling."`
}

type RunCmd struct {
	Config string `help:"Path to the YAML settings file." default:"chatkit.yaml" short:"c" type:"existingfile"`
}

func (c *RunCmd) Run() error {
	settings, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	b, err := chatkit.New(settings)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return b.Run(ctx)
}

type DLQCmd struct {
	Inspect DLQInspectCmd `cmd:"" help:"Print all dead-lettered entries as JSON."`
}

type DLQInspectCmd struct {
	Config string `help:"Path to the YAML settings file." default:"chatkit.yaml" short:"c" type:"existingfile"`
}

func (c *DLQInspectCmd) Run() error {
	settings, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if settings.Storage.Memory() {
		return fmt.Errorf("dlq inspect: memory storage holds no entries outside a running process")
	}

	b, err := chatkit.New(settings)
	if err != nil {
		return err
	}
	defer b.Close()

	entries, err := b.DLQ().Inspect(context.Background())
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []dlq.Entry{}
	}

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("chatkit"),
		kong.Description("Signal-style chat bot runtime."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
