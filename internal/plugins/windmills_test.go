package plugins

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/hemma-hub/internal/bridges/windcentrale"
	"github.com/nerrad567/hemma-hub/internal/plugin"
	"github.com/nerrad567/hemma-hub/internal/source"
)

func millMessage(id, perShare, performance int64) source.Message {
	return source.Message{
		"name": windcentrale.MessageName,
		"data": map[string]any{
			"id":          id,
			"wind":        "ZW 4",
			"mill_total":  int64(900),
			"per_share":   perShare,
			"performance": performance,
		},
	}
}

func TestWindmills(t *testing.T) {
	frozenClock(t, time.UnixMilli(5000))
	ctx := context.Background()
	holdings, err := windcentrale.ParseHoldings("De Vier Winden:2,Het Rode Hert:4")
	if err != nil {
		t.Fatalf("ParseHoldings() error = %v", err)
	}
	host := &recorder{}
	p := NewWindmills("windcentrale", host, holdings)

	if err := p.OnClientConnect(ctx, plugin.Client{}); err != nil {
		t.Fatalf("OnClientConnect() error = %v", err)
	}

	msgs := []source.Message{
		millMessage(141, 100, 80),
		millMessage(999, 100, 80), // no holding
		millMessage(31, 50, 60),
		millMessage(141, 120, 85),
	}
	for _, m := range msgs {
		if err := p.OnSourceMessage(ctx, bridge, m); err != nil {
			t.Fatalf("OnSourceMessage() error = %v", err)
		}
	}

	want := []MillState{
		{ID: 141, Power: 240, Performance: 85, Timestamp: 5000, Name: "De Vier Winden"},
		{ID: 31, Power: 200, Performance: 60, Timestamp: 5000, Name: "Het Rode Hert"},
	}
	if got := p.Mills(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mills() = %+v, want %+v", got, want)
	}

	replies, broadcasts := host.sent()
	if len(replies) != 0 {
		t.Errorf("replied %d times before any mill was known", len(replies))
	}
	if len(broadcasts) != 3 {
		t.Errorf("broadcasts = %d, want 3", len(broadcasts))
	}
	content(t, broadcasts[0], "windcentrale")

	if err := p.OnClientConnect(ctx, plugin.Client{}); err != nil {
		t.Fatalf("OnClientConnect() error = %v", err)
	}
	replies, _ = host.sent()
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	if got := content(t, replies[0], "windcentrale").([]MillState); !reflect.DeepEqual(got, want) {
		t.Errorf("replayed mills = %+v", got)
	}
}
