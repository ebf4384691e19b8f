package sx126x

import "errors"

// IrqStatus is the radio's latched interrupt status word, as returned by
// the GetIrqStatus command.  Several bits can be set at once: the chip
// raises RxDone for every frame it finishes, including frames whose
// header or payload CRC failed.
type IrqStatus uint16

const (
	IRQ_TX_DONE           IrqStatus = 1 << 0
	IRQ_RX_DONE           IrqStatus = 1 << 1
	IRQ_PREAMBLE_DETECTED IrqStatus = 1 << 2
	IRQ_SYNC_WORD_VALID   IrqStatus = 1 << 3
	IRQ_HEADER_VALID      IrqStatus = 1 << 4
	IRQ_HEADER_ERR        IrqStatus = 1 << 5
	IRQ_CRC_ERR           IrqStatus = 1 << 6
	IRQ_CAD_DONE          IrqStatus = 1 << 7
	IRQ_CAD_DETECTED      IrqStatus = 1 << 8
	IRQ_TIMEOUT           IrqStatus = 1 << 9

	IRQ_ALL IrqStatus = 0x03FF
)

func (f IrqStatus) isTxDone() bool {
	return (f & IRQ_TX_DONE) != 0
}

func (f IrqStatus) isRxDone() bool {
	return (f & IRQ_RX_DONE) != 0
}

func (f IrqStatus) isHeaderErr() bool {
	return (f & IRQ_HEADER_ERR) != 0
}

func (f IrqStatus) isCrcErr() bool {
	return (f & IRQ_CRC_ERR) != 0
}

func (f IrqStatus) isTimeout() bool {
	return (f & IRQ_TIMEOUT) != 0
}

var irqNames = []struct {
	bit  IrqStatus
	name string
}{
	{IRQ_TX_DONE, "TxDone"},
	{IRQ_RX_DONE, "RxDone"},
	{IRQ_PREAMBLE_DETECTED, "PreambleDetected"},
	{IRQ_SYNC_WORD_VALID, "SyncWordValid"},
	{IRQ_HEADER_VALID, "HeaderValid"},
	{IRQ_HEADER_ERR, "HeaderErr"},
	{IRQ_CRC_ERR, "CrcErr"},
	{IRQ_CAD_DONE, "CadDone"},
	{IRQ_CAD_DETECTED, "CadDetected"},
	{IRQ_TIMEOUT, "Timeout"},
}

// String lists the set flags, eg. "RxDone|CrcErr", for diagnostics.
func (f IrqStatus) String() string {
	s := ""
	for _, n := range irqNames {
		if f&n.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Mode is the receive mode a Device was armed in.  It selects which IRQ
// bits are meaningful to the classifier: the hardware Timeout bit only
// fires in single-shot receive.
type Mode uint8

const (
	ModeRxContinuous Mode = iota
	ModeRxSingle
)

// Receive error kinds.  ErrHeader and ErrCrc are expected outcomes of
// normal operation under imperfect radio conditions; callers decide
// whether to count, retry or ignore them.  ErrUnexpectedIrq indicates a
// driver or hardware bug and should not be silently retried.
var (
	ErrHeader        = errors.New("header error")
	ErrCrc           = errors.New("bad CRC")
	ErrTimeout       = errors.New("timeout")
	ErrUnexpectedIrq = errors.New("unexpected IRQ status")

	ErrTransport    = errors.New("spi transport fault")
	ErrNoFrequency  = errors.New("frequency mandatory")
	ErrNotDetected  = errors.New("sx126x not detected")
	ErrBadFrequency = errors.New("frequency must be between 150MHz and 960MHz")
	ErrTxPowerRange = errors.New("tx power outside of acceptable range")
	ErrPacketSize   = errors.New("packet too large")
)

// classifyRx maps one latched IRQ snapshot to the single outcome of a
// receive attempt.  Bits are tested in fixed priority order, first match
// wins:
//
//	HeaderErr > CrcErr > RxDone > Timeout > unexpected
//
// The integrity bits must be tested before RxDone: the chip asserts
// RxDone even for frames that failed the header or payload CRC check, so
// a done-bit-first test would hand corrupted payloads to the caller as
// good frames.  A nil return means the frame passed and the payload can
// be read out.
//
// The function is pure: no I/O, no radio state changes.  Re-arming after
// a failure is the caller's responsibility.
func classifyRx(flags IrqStatus, mode Mode) error {
	switch {
	case flags.isHeaderErr():
		return ErrHeader
	case flags.isCrcErr():
		return ErrCrc
	case flags.isRxDone():
		return nil
	case mode == ModeRxSingle && flags.isTimeout():
		return ErrTimeout
	default:
		return ErrUnexpectedIrq
	}
}
