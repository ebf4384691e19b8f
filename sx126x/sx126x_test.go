package sx126x

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

// fakeRadio scripts the SPI side of an SX126x: queued IRQ snapshots are
// handed out one per GetIrqStatus read, and buffer/packet status reads
// return the configured frame.
type fakeRadio struct {
	irq     []IrqStatus
	payload []byte
	rssiRaw uint8
	snrRaw  uint8

	regs map[uint16]uint8
	ops  []uint8 // opcodes seen, except IRQ status polls

	rxTimeouts []uint32 // SetRx timeout fields, in order

	dead  bool // ignore writes, read back zeroes
	txErr error
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{regs: map[uint16]uint8{}}
}

func (f *fakeRadio) String() string { return "fake-sx126x" }

func (f *fakeRadio) Duplex() conn.Duplex { return conn.Full }

func (f *fakeRadio) TxPackets(p []spi.Packet) error { return errors.New("not supported") }

func (f *fakeRadio) Tx(w, r []byte) error {
	if f.txErr != nil {
		return f.txErr
	}

	op := w[0]

	switch op {
	case CMD_12_GET_IRQ_STATUS:
		var e IrqStatus
		if len(f.irq) > 0 {
			e = f.irq[0]
			f.irq = f.irq[1:]
		}
		r[2] = uint8(e >> 8)
		r[3] = uint8(e)
		return nil

	case CMD_13_GET_RX_BUFFER_STATUS:
		r[2] = uint8(len(f.payload))
		r[3] = 0

	case CMD_14_GET_PACKET_STATUS:
		r[2] = f.rssiRaw
		r[3] = f.snrRaw
		r[4] = f.rssiRaw

	case CMD_1E_READ_BUFFER:
		copy(r[3:], f.payload)

	case CMD_0D_WRITE_REGISTER:
		if !f.dead {
			addr := uint16(w[1])<<8 | uint16(w[2])
			for i, v := range w[3:] {
				f.regs[addr+uint16(i)] = v
			}
		}

	case CMD_82_SET_RX:
		f.rxTimeouts = append(f.rxTimeouts,
			uint32(w[1])<<16|uint32(w[2])<<8|uint32(w[3]))

	case CMD_1D_READ_REGISTER:
		addr := uint16(w[1])<<8 | uint16(w[2])
		v := f.regs[addr]
		if f.dead {
			v = 0
		}
		r[4] = v
	}

	f.ops = append(f.ops, op)
	return nil
}

func (f *fakeRadio) countOps(op uint8) int {
	n := 0
	for _, o := range f.ops {
		if o == op {
			n++
		}
	}
	return n
}

func newTestDevice(t *testing.T, f *fakeRadio) *Device {
	t.Helper()

	d := &Device{
		conn:     f,
		resetPin: &gpiotest.Pin{N: "RST"},
		busyPin:  &gpiotest.Pin{N: "BUSY"},
	}

	if err := d.Configure(Config{Frequency: 868100000, CRC: CrcModeOn}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	return d
}

func TestRxGoodFrame(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_RX_DONE | IRQ_HEADER_VALID}
	f.payload = []byte("hello")
	f.rssiRaw = 100 // -50 dBm
	f.snrRaw = 40   // 10 dB
	d := newTestDevice(t, f)

	pkt, err := d.LoraRxPacket(100)
	if err != nil {
		t.Fatalf("LoraRxPacket: %v", err)
	}
	if string(pkt.Payload) != "hello" {
		t.Errorf("payload = %q, want %q", pkt.Payload, "hello")
	}
	if pkt.Rssi != -50 {
		t.Errorf("rssi = %d, want -50", pkt.Rssi)
	}
	if pkt.Snr != 10 {
		t.Errorf("snr = %d, want 10", pkt.Snr)
	}
}

func TestRxCorruptFrameIsError(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_RX_DONE | IRQ_CRC_ERR}
	f.payload = []byte("garbage")
	d := newTestDevice(t, f)

	data, err := d.LoraRx(100)
	if !errors.Is(err, ErrCrc) {
		t.Fatalf("LoraRx = %v, want ErrCrc", err)
	}
	if data != nil {
		t.Errorf("corrupt frame returned payload %q", data)
	}

	// Raw snapshot stays available for telemetry
	if got := d.LastIrqStatus(); got != IRQ_RX_DONE|IRQ_CRC_ERR {
		t.Errorf("LastIrqStatus = %v", got)
	}
}

func TestRxHeaderError(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_HEADER_ERR | IRQ_RX_DONE | IRQ_CRC_ERR}
	d := newTestDevice(t, f)

	_, err := d.LoraRx(100)
	if !errors.Is(err, ErrHeader) {
		t.Fatalf("LoraRx = %v, want ErrHeader", err)
	}
}

func TestRxDeadlineExpires(t *testing.T) {
	f := newFakeRadio()
	d := newTestDevice(t, f)

	_, err := d.LoraRx(5)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("LoraRx = %v, want ErrTimeout", err)
	}
}

func TestRxSingleHardwareTimeout(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_TIMEOUT}
	d := newTestDevice(t, f)

	_, err := d.LoraRxSingle(100)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("LoraRxSingle = %v, want ErrTimeout", err)
	}
}

func TestRxUnexpectedStatus(t *testing.T) {
	// A hardware timeout bit during continuous receive matches nothing
	// we recognise for that mode
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_TIMEOUT}
	d := newTestDevice(t, f)

	_, err := d.LoraRx(100)
	if !errors.Is(err, ErrUnexpectedIrq) {
		t.Fatalf("LoraRx = %v, want ErrUnexpectedIrq", err)
	}
}

func TestRxReArmsAfterFailure(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_RX_DONE | IRQ_CRC_ERR, IRQ_RX_DONE}
	f.payload = []byte("ok")
	d := newTestDevice(t, f)

	if _, err := d.LoraRx(100); !errors.Is(err, ErrCrc) {
		t.Fatalf("first LoraRx = %v, want ErrCrc", err)
	}

	data, err := d.LoraRx(100)
	if err != nil {
		t.Fatalf("second LoraRx: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("payload = %q, want %q", data, "ok")
	}

	if got := f.countOps(CMD_82_SET_RX); got != 2 {
		t.Errorf("SetRx issued %d times, want 2", got)
	}
}

func TestRxArmTimeouts(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_RX_DONE, IRQ_RX_DONE, IRQ_RX_DONE}
	f.payload = []byte("x")
	d := newTestDevice(t, f)

	// Continuous receive arms the chip with the listen-forever
	// sentinel; single-shot programs the hardware timeout in 15.625us
	// steps, clamped below the sentinel
	d.LoraRx(100)
	d.LoraRxSingle(100)
	d.LoraRxSingle(10 * 60 * 1000)

	want := []uint32{RX_CONTINUOUS, 100 * 64, RX_TIMEOUT_MAX}
	if len(f.rxTimeouts) != len(want) {
		t.Fatalf("SetRx issued %d times, want %d", len(f.rxTimeouts), len(want))
	}
	for i, w := range want {
		if f.rxTimeouts[i] != w {
			t.Errorf("SetRx[%d] timeout = %#06x, want %#06x", i, f.rxTimeouts[i], w)
		}
	}
}

func TestLoraTx(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_TX_DONE}
	d := newTestDevice(t, f)

	if err := d.LoraTx([]byte("ping"), 100); err != nil {
		t.Fatalf("LoraTx: %v", err)
	}

	if err := d.LoraTx(make([]byte, 300), 100); !errors.Is(err, ErrPacketSize) {
		t.Errorf("oversize LoraTx = %v, want ErrPacketSize", err)
	}
}

func TestDetect(t *testing.T) {
	f := newFakeRadio()
	d := newTestDevice(t, f)

	if !d.Detect() {
		t.Error("Detect() = false for responding chip")
	}

	f.dead = true
	if d.Detect() {
		t.Error("Detect() = true for dead chip")
	}
}

func TestTransportFaultPoisons(t *testing.T) {
	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_RX_DONE}
	d := newTestDevice(t, f)

	f.txErr = errors.New("spi broke")
	if _, err := d.LoraRx(100); !errors.Is(err, ErrTransport) {
		t.Fatalf("LoraRx = %v, want ErrTransport", err)
	}

	// Still poisoned after the fault clears
	f.txErr = nil
	if _, err := d.LoraRx(100); !errors.Is(err, ErrTransport) {
		t.Fatalf("LoraRx after recovery = %v, want ErrTransport", err)
	}
}

func TestIrqTimestampCapture(t *testing.T) {
	var now uint64 = 1000
	SetIrqClock(func() uint64 { now += 10; return now })
	defer SetIrqClock(nil)

	f := newFakeRadio()
	f.irq = []IrqStatus{IRQ_RX_DONE}
	f.payload = []byte("x")
	d := newTestDevice(t, f)

	if _, err := d.LoraRx(100); err != nil {
		t.Fatalf("LoraRx: %v", err)
	}

	if ts := LastIrqTimestamp(); ts <= 1000 {
		t.Errorf("LastIrqTimestamp = %d, want > 1000", ts)
	}
}

// TestRxSoak drives 1000 receive attempts with the CRC error bit
// injected alongside RxDone on every 20th frame.  All injected frames
// must fail with ErrCrc and none may surface as a good receive.
func TestRxSoak(t *testing.T) {
	f := newFakeRadio()
	f.payload = []byte("soak-frame")

	injected := map[int]bool{}
	for i := 0; i < 1000; i++ {
		flags := IRQ_RX_DONE
		if i%20 == 0 {
			flags |= IRQ_CRC_ERR
			injected[i] = true
		}
		f.irq = append(f.irq, flags)
	}

	d := newTestDevice(t, f)

	good, crc, other := 0, 0, 0
	for i := 0; i < 1000; i++ {
		_, err := d.LoraRx(100)
		switch {
		case err == nil:
			if injected[i] {
				t.Fatalf("attempt %d: injected CRC error classified as success", i)
			}
			good++
		case errors.Is(err, ErrCrc):
			if !injected[i] {
				t.Fatalf("attempt %d: spurious ErrCrc", i)
			}
			crc++
		default:
			other++
		}
	}

	if good != 950 || crc != 50 || other != 0 {
		t.Errorf("outcomes = %d good, %d crc, %d other; want 950/50/0", good, crc, other)
	}
}
