package cmd

import (
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pixfeed/pixfeed/batch"
	"github.com/pixfeed/pixfeed/envconfig"
	"github.com/pixfeed/pixfeed/server"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the pixfeed server",
		Args:    cobra.ExactArgs(0),
		RunE:    serveHandler,
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + `
Environment Variables:

    PIXFEED_HOST          The host:port to bind to (default "127.0.0.1:11435")
    PIXFEED_NUM_THREADS   Default decode worker count (default 1)
    PIXFEED_MAX_QUEUE     Maximum number of queued fetch requests
`)

	return cmd
}

func serveHandler(cmd *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host)
	if err != nil {
		return err
	}

	d := batch.NewDispatcher()

	// finalize the batch and join the workers on shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		ln.Close()
	}()

	if err := server.Serve(ln, d); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
