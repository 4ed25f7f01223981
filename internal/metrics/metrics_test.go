package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
)

func TestInstrumentCountsTransfers(t *testing.T) {
	c := New()
	sim := i2c.NewSimBus()
	sim.Attach(0x38, func([]i2c.Message) error { return nil })
	bus := c.Instrument(sim)

	buf := make([]byte, 4)
	for i := 0; i < 3; i++ {
		if err := bus.Transfer(i2c.WriteMessage(0x38, []byte{4, 0, 0x3C, 0}), i2c.ReadMessage(0x38, buf)); err != nil {
			t.Fatalf("Transfer returned error: %v", err)
		}
	}
	// Nothing at 0x39: the simulator NACKs.
	if err := bus.Transfer(i2c.WriteMessage(0x39, []byte{0})); !errors.Is(err, i2c.ErrNACK) {
		t.Fatalf("Transfer error = %v, want ErrNACK", err)
	}

	if got := testutil.ToFloat64(c.TransfersTotal); got != 4 {
		t.Errorf("transfers_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.ErrorsTotal.WithLabelValues("nack")); got != 1 {
		t.Errorf("errors_total{cause=nack} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.Duration); got != 1 {
		t.Errorf("duration collected %d metrics, want 1", got)
	}
	if bus.Info().Kind != i2c.InterfaceKindSim {
		t.Errorf("Info() not forwarded: %+v", bus.Info())
	}
}

func TestCause(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&i2c.TransferError{Index: 0, Err: i2c.ErrNACK}, "nack"},
		{&i2c.TransferError{Index: 1, Err: i2c.ErrTimeout}, "timeout"},
		{i2c.ErrClosed, "closed"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := cause(tt.err); got != tt.want {
			t.Errorf("cause(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.TransfersTotal.Add(128)

	path := filepath.Join(t.TempDir(), "pi7c9xg404.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile returned error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "pi7c9xg404_i2c_transfers_total 128") {
		t.Errorf("textfile missing transfer count:\n%s", raw)
	}
}
