package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
)

const (
	// OTABlockSize is the largest chunk sent in one ota.block request.
	OTABlockSize = 512

	// DefaultOTASettle is how long a device gets to enter OTA mode.
	DefaultOTASettle = 3 * time.Second
)

// OTA status values sent back to the requesting client.
const (
	OTAStarted  = "started"
	OTAProgress = "progress"
	OTADone     = "done"
	OTAFailed   = "failed"
	OTABusy     = "busy"
)

// ErrNoResult is reported when the bridge does not answer an OTA step.
var ErrNoResult = errors.New("ota: bridge did not answer")

// OTAStatus is the payload of every reply the ota plugin sends.
type OTAStatus struct {
	Status  string `cbor:"status"`
	Address int64  `cbor:"address"`
	Written int    `cbor:"written,omitempty"`
	Total   int    `cbor:"total,omitempty"`
	Error   string `cbor:"error,omitempty"`
}

// OTA flashes device firmware through a commanding source.
//
// A client request {"target": "ota", "address": n, "data": <intel hex>}
// starts an upload in its own goroutine so the hub keeps routing bridge
// results and other requests while it runs. One upload runs at a time.
type OTA struct {
	plugin.Base
	bridge source.Commander
	settle time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	busy   atomic.Bool
	done   chan struct{}
}

// NewOTA creates the ota plugin. settle <= 0 uses DefaultOTASettle.
func NewOTA(id string, host plugin.Replier, bridge source.Commander, settle time.Duration) *OTA {
	if settle <= 0 {
		settle = DefaultOTASettle
	}
	return &OTA{
		Base:   plugin.NewBase(id, "ota", host),
		bridge: bridge,
		settle: settle,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnSourceMessage ignores source messages.
func (p *OTA) OnSourceMessage(context.Context, source.Source, source.Message) error { return nil }

// OnClientRequest starts an upload for ota requests.
func (p *OTA) OnClientRequest(ctx context.Context, client plugin.Client, request any) error {
	req, ok := targeted(request, "ota")
	if !ok {
		return nil
	}
	address, ok := integer(req["address"])
	if !ok {
		return p.Reply(ctx, client, OTAStatus{Status: OTAFailed, Error: "missing address"})
	}
	var text []byte
	switch d := req["data"].(type) {
	case []byte:
		text = d
	case string:
		text = []byte(d)
	default:
		return p.Reply(ctx, client, OTAStatus{Status: OTAFailed, Address: address, Error: "missing image"})
	}

	image, err := ParseIntelHex(text)
	if err != nil {
		return p.Reply(ctx, client, OTAStatus{Status: OTAFailed, Address: address, Error: err.Error()})
	}
	if !p.busy.CompareAndSwap(false, true) {
		return p.Reply(ctx, client, OTAStatus{Status: OTABusy, Address: address})
	}

	done := make(chan struct{})
	p.done = done
	go func() {
		defer close(done)
		defer p.busy.Store(false)
		p.upload(ctx, client, int(address), image)
	}()
	return nil
}

// upload runs the flashing sequence: otamode, settle, ota.start, the
// image in blocks, ota.end. Progress goes to the requesting client.
func (p *OTA) upload(ctx context.Context, client plugin.Client, address int, image []byte) {
	status := OTAStatus{Address: int64(address), Total: len(image)}
	report := func(s string, err error) {
		status.Status = s
		if err != nil {
			status.Error = err.Error()
		}
		//nolint:errcheck // A client that went away evicts itself
		p.Reply(ctx, client, status)
	}

	if err := p.bridge.Command(ctx, address, "otamode", nil); err != nil {
		report(OTAFailed, err)
		return
	}
	if err := p.sleep(ctx, p.settle); err != nil {
		return
	}

	if err := p.step(ctx, "ota.start", map[string]any{"address": address}); err != nil {
		report(OTAFailed, err)
		return
	}
	report(OTAStarted, nil)

	for addr := 0; addr < len(image); addr += OTABlockSize {
		block := image[addr:min(addr+OTABlockSize, len(image))]
		args := map[string]any{"memaddr": addr, "size": len(block), "data": block}
		if err := p.step(ctx, "ota.block", args); err != nil {
			report(OTAFailed, err)
			return
		}
		status.Written = addr + len(block)
		report(OTAProgress, nil)
	}

	if err := p.step(ctx, "ota.end", nil); err != nil {
		report(OTAFailed, err)
		return
	}
	report(OTADone, nil)
}

// step sends one request to the bridge's own address and requires an
// answer.
func (p *OTA) step(ctx context.Context, name string, args map[string]any) error {
	_, ok, err := p.bridge.Request(ctx, 0, name, args)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNoResult)
	}
	return nil
}

// Wait blocks until the running upload, if any, has finished.
func (p *OTA) Wait() {
	if p.done != nil {
		<-p.done
	}
}
