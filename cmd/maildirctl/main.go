package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/logging"
	"github.com/matheus3301/pimsync/internal/mail"
	"github.com/matheus3301/pimsync/internal/mail/maildir"
	"github.com/matheus3301/pimsync/internal/mail/mh"
)

// folder is the part of a local mail folder the commands use.
type folder interface {
	Append(ctx context.Context, r io.Reader, flags mail.Flags) (string, error)
	Get(ctx context.Context, uid string) (*mail.Message, error)
	List(ctx context.Context) ([]*mail.MessageInfo, error)
	Rescan(ctx context.Context) error
	Close() error
}

var global struct {
	Folder string `short:"f" long:"folder" required:"true" description:"Folder directory"`
	Format string `long:"format" choice:"maildir" choice:"mh" default:"maildir" description:"Folder layout"`
	JSON   bool   `long:"json" description:"Output in JSON format"`
	Debug  bool   `short:"d" long:"debug" description:"Enable debug logs"`
}

func main() {
	parser := flags.NewParser(&global, flags.Default)
	mustAdd(parser.AddCommand("append", "Append a message",
		"Reads an RFC 5322 message from a file or stdin and stores it.", &appendCommand{}))
	mustAdd(parser.AddCommand("get", "Print a message",
		"Writes the raw message with the given UID to stdout.", &getCommand{}))
	mustAdd(parser.AddCommand("list", "List messages",
		"Lists the folder summary in append order.", &listCommand{}))
	mustAdd(parser.AddCommand("rescan", "Resync the summary",
		"Registers messages written by other programs and drops vanished ones.", &rescanCommand{}))

	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}

// withFolder opens the selected folder and runs fn with a context
// cancelled on interrupt.
func withFolder(fn func(ctx context.Context, f folder) error) error {
	level := "info"
	if global.Debug {
		level = "debug"
	}
	logger := logging.NewConsole("maildirctl", level)
	defer func() { _ = logger.Sync() }()

	var (
		f   folder
		err error
	)
	switch global.Format {
	case "mh":
		f, err = mh.Open(global.Folder, mh.Options{Logger: logger})
	default:
		f, err = maildir.Open(global.Folder, maildir.Options{Logger: logger})
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("close folder", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return fn(ctx, f)
}

type appendCommand struct {
	Flags string `long:"flags" description:"Maildir flag letters, e.g. RS"`
	Args  struct {
		File string `positional-arg-name:"FILE" description:"Message file; stdin when omitted"`
	} `positional-args:"yes"`
}

func (c *appendCommand) Execute(_ []string) error {
	return withFolder(func(ctx context.Context, f folder) error {
		var r io.Reader = os.Stdin
		if c.Args.File != "" {
			in, err := os.Open(c.Args.File)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()
			r = in
		}
		uid, err := f.Append(ctx, r, mail.ParseFlags(c.Flags))
		if err != nil {
			return err
		}
		fmt.Println(uid)
		return nil
	})
}

type getCommand struct {
	Args struct {
		UID string `positional-arg-name:"UID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *getCommand) Execute(_ []string) error {
	return withFolder(func(ctx context.Context, f folder) error {
		msg, err := f.Get(ctx, c.Args.UID)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(msg.Raw)
		return err
	})
}

type listEntry struct {
	UID     string    `json:"uid"`
	Flags   string    `json:"flags"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
	Size    int64     `json:"size"`
}

type listCommand struct{}

func (c *listCommand) Execute(_ []string) error {
	return withFolder(func(ctx context.Context, f folder) error {
		infos, err := f.List(ctx)
		if err != nil {
			return err
		}
		if global.JSON {
			out := make([]listEntry, 0, len(infos))
			for _, info := range infos {
				out = append(out, listEntry{
					UID:     info.UID,
					Flags:   info.Flags.String(),
					Subject: info.Subject,
					From:    info.From,
					Date:    info.Date,
					Size:    info.Size,
				})
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		for _, info := range infos {
			fmt.Printf("%-40s %-6s %-24s %s\n", info.UID, info.Flags, info.From, info.Subject)
		}
		return nil
	})
}

type rescanCommand struct{}

func (c *rescanCommand) Execute(_ []string) error {
	return withFolder(func(ctx context.Context, f folder) error {
		if err := f.Rescan(ctx); err != nil {
			return err
		}
		infos, err := f.List(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d messages\n", len(infos))
		return nil
	})
}
