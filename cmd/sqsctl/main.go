// Command sqsctl sends and receives messages through a simple queue broker.
//
// Usage:
//
//	sqsctl [-config file] produce [-delay seconds | -at RFC3339] <body>
//	sqsctl [-config file] consume [-once]
//
// The broker and queue come from the TOML config file, overridden by the
// SQS_HOST, SQS_PORT and SQS_QUEUE environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/simplequeue/sqs"
	"github.com/simplequeue/sqs/metrics"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "sqsctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("sqsctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a TOML config file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sqsctl [-config file] produce [-delay seconds | -at RFC3339] <body>")
		fmt.Fprintln(stderr, "       sqsctl [-config file] consume [-once]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg, err := loadConfig(*configPath, getenv)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "produce":
		return produce(ctx, cfg, logger, rest)
	case "consume":
		return consume(ctx, cfg, logger, rest, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

type produceArgs struct {
	body  string
	delay time.Duration
	at    time.Time
}

func parseProduceArgs(args []string) (produceArgs, error) {
	fs := flag.NewFlagSet("produce", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	delay := fs.Int64("delay", 0, "deliver after this many seconds")
	at := fs.String("at", "", "deliver at this RFC3339 date")
	if err := fs.Parse(args); err != nil {
		return produceArgs{}, err
	}
	if fs.NArg() == 0 {
		return produceArgs{}, errors.New("produce: missing message body")
	}

	parsed := produceArgs{
		body:  strings.Join(fs.Args(), " "),
		delay: time.Duration(*delay) * time.Second,
	}
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return produceArgs{}, fmt.Errorf("produce: parse -at: %w", err)
		}
		parsed.at = t
	}
	return parsed, nil
}

func (a produceArgs) message() (sqs.Message[string], error) {
	b := sqs.NewMessageBuilder[string]().WithBody(a.body)
	if a.at.IsZero() {
		b.WithDeliverDelay(a.delay)
	} else {
		b.WithDeliverDate(a.at)
		if a.delay != 0 {
			// Let the builder reject the combination
			b.WithDeliverDelay(a.delay)
		}
	}
	return b.Build()
}

func produce(ctx context.Context, cfg cliConfig, logger zerolog.Logger, args []string) error {
	parsed, err := parseProduceArgs(args)
	if err != nil {
		return err
	}
	msg, err := parsed.message()
	if err != nil {
		return err
	}

	producer := sqs.NewProducer(sqs.TextCodec(), cfg.clientConfig(clientLogger{logger}))
	if err := producer.Connect(ctx, cfg.Host, cfg.Port, cfg.Queue); err != nil {
		return err
	}
	defer quit(producer, logger)

	if err := producer.Send(ctx, msg); err != nil {
		return err
	}
	logger.Info().Str("queue", cfg.Queue).Str("conn_id", producer.ID()).Msg("message sent")
	return nil
}

func consume(ctx context.Context, cfg cliConfig, logger zerolog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("consume", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	once := fs.Bool("once", false, "receive a single message and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	clientConfig := cfg.clientConfig(clientLogger{logger})
	clientConfig.OnError = func(err error) {
		logger.Error().Err(err).Msg("subscription error")
	}

	consumer := sqs.NewConsumer(sqs.TextCodec(), clientConfig)
	if err := consumer.Connect(ctx, cfg.Host, cfg.Port, cfg.Queue); err != nil {
		return err
	}

	if *once {
		defer quit(consumer, logger)
		msg, err := consumer.Receive(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, msg.Body)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter()
		exporter.Collector().Add("sqsctl", consumer)
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: exporter.Handler()}

		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	err := consumer.Subscribe(func(msg sqs.Message[string]) {
		fmt.Fprintln(stdout, msg.Body)
	})
	if err != nil {
		return err
	}
	logger.Info().Str("queue", cfg.Queue).Str("conn_id", consumer.ID()).Msg("subscribed")

	g.Go(func() error {
		<-consumer.Done()
		if st := consumer.State(); st != sqs.NotWantingConnection {
			return fmt.Errorf("subscription stopped, connection is %s", st)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		quit(consumer, logger)
		return nil
	})

	return g.Wait()
}

type quitter interface {
	Quit(ctx context.Context) error
}

// quit ends the session, logging a failed shutdown handshake.
func quit(conn quitter, logger zerolog.Logger) {
	if err := conn.Quit(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("quit failed")
	}
}
