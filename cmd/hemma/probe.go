package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/nerrad567/hemma-hub/internal/transport"
	"github.com/nerrad567/hemma-hub/internal/wire"
)

type probeOptions struct {
	authURL   string
	streamURL string
	wait      time.Duration
}

func newProbeCmd() *cobra.Command {
	opts := &probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Pair with a running hub and print what it sends",
		Long: `Pair a throwaway client with a running hub, say hello on the stream
endpoint and print every reply and broadcast received until the wait
expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return probe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.authURL, "auth", "ws://127.0.0.1:1337", "certificate endpoint")
	cmd.Flags().StringVar(&opts.streamURL, "stream", "ws://127.0.0.1:1338", "stream endpoint")
	cmd.Flags().DurationVar(&opts.wait, "wait", 5*time.Second, "how long to listen")
	return cmd
}

func probe(ctx context.Context, w io.Writer, opts *probeOptions) error {
	client, err := wire.NewClient()
	if err != nil {
		return err
	}
	if err := requestCertificate(ctx, client, opts.authURL); err != nil {
		return err
	}
	fmt.Fprintf(w, "paired, hub key %x\n", client.ServerKey[:])

	conn, err := transport.Dial(ctx, opts.streamURL, transport.Config{}, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.wait)
	defer cancel()

	hello, err := client.Request("hello")
	if err != nil {
		return err
	}
	served := make(chan error, 1)
	go func() {
		served <- conn.Serve(ctx, func(frame []byte) error {
			payload, broadcast, err := client.Open(frame)
			switch {
			case err != nil:
				fmt.Fprintf(w, "undecodable frame: %v\n", err)
			case broadcast:
				fmt.Fprintf(w, "broadcast: %v\n", payload)
			default:
				fmt.Fprintf(w, "reply: %v\n", payload)
			}
			return nil
		})
	}()
	if err := conn.Send(hello); err != nil {
		cancel()
		<-served
		return fmt.Errorf("sending hello: %w", err)
	}
	return <-served
}

// requestCertificate sends the client's public key to the certificate
// endpoint and stores the reply.
func requestCertificate(ctx context.Context, client *wire.Client, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		//nolint:errcheck // Handshake body is not used
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing %s: %w", url, err)
	}
	defer conn.Close()

	//nolint:errcheck // A missed deadline surfaces as a read error
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.BinaryMessage, client.PublicKey[:]); err != nil {
		return fmt.Errorf("sending public key: %w", err)
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading certificate: %w", err)
	}
	return client.Pair(frame)
}
