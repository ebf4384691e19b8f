// Package sx126x implements support for Semtech SX1261/2 LoRa transceivers,
// of which the HOPERF RFM90 and Waveshare Core1262 are common modules.
//
// Datasheet: https://semtech.my.salesforce.com/sfc/p/#E0000000JelG/a/2R000000Un7F/yT.fKdAr9ZAo3cJLc4F2cBdUsMftpT2vsOICP7NmvMo
//
// Unlike the SX127x generation the chip is driven by SPI commands rather
// than direct register access, and its IRQ status word carries separate
// header-error and payload-CRC-error bits.  The receive path here reads
// the latched IRQ status once per attempt and classifies it in a fixed
// priority order before any payload is handed out; see irq.go.
//
// A transport failure is treated as fatal: once an SPI transaction
// errors, every subsequent operation returns ErrTransport and the caller
// must create a fresh Device to re-establish communication.
package sx126x

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// PowerMode is an 'enum' selecting which power amplifier is wired up.
//
// An enum is used to detect 'default' value, which is 'high-power'
// (SX1262).  Low power selects the SX1261 PA.
type PowerMode uint8

const (
	PowerModeDefault = 0
	PowerModeLow     = 1
	PowerModeHigh    = 2
)

// CrcMode is an 'enum' to control CRC calculations.
//
// An enum is used to detect 'default' value, which is 'On'.
type CrcMode uint8

const (
	CrcModeDefault = 0
	CrcModeOff     = 1
	CrcModeOn      = 2
)

// SyncMode is an 'enum' selecting the LoRa sync word.
//
// An enum is used to detect 'default' value, which is 'private'
// (point-to-point networks, not LoRaWAN).
type SyncMode uint8

const (
	SyncModeDefault = 0
	SyncModePrivate = 1
	SyncModePublic  = 2
)

type Config struct {
	// Frequency is in Hz
	Frequency uint32

	// PowerMode selects the SX1262 (+22dBm) or SX1261 (+15dBm) PA
	PowerMode PowerMode

	// Length of LoRa preamble
	PreambleLength uint16

	// CodingRate increases forward error-correction at cost of
	// reduced bit rate.  Valid values are 5,6,7,8.
	CodingRate uint8

	// SpreadingFactor increases ability to distinguish signal from
	// noise at cost of reduced bit rate.  Valid values are 5 through 12.
	SpreadingFactor uint8

	// Bandwidth is the signal bandwidth in Hz
	Bandwidth int

	// CRC controls payload CRC calculations
	CRC CrcMode

	// Sync selects the public (LoRaWAN) or private sync word
	Sync SyncMode
}

// RxPacket is a received frame with signal quality stats.
type RxPacket struct {
	Payload []byte // payload, excluding length & crc
	Rssi    int    // average rssi in dBm for the packet
	Snr     int    // signal-to-noise in dB for the packet
}

type Device struct {
	bus      spi.Port
	conn     spi.Conn
	resetPin gpio.PinOut
	busyPin  gpio.PinIn
	dio1Pin  gpio.PinIn

	highPower bool
	preamble  uint16
	crcOn     bool

	// Snapshot of the IRQ status of the last completed operation,
	// kept for root-cause telemetry.
	lastIrq IrqStatus

	// First SPI failure; permanently poisons the device.
	err error
}

// New creates a new SX126x connection.  The SPI wire must already be
// configured.
//
// busyPin is mandatory, the chip refuses commands while it is high.
// dio1Pin is optional: if passed, interrupt-style interaction is used,
// otherwise the IRQ status is polled.
func New(bus spi.Port, resetPin gpio.PinOut, busyPin gpio.PinIn, dio1Pin gpio.PinIn) (Device, error) {
	conn, err := bus.Connect(8*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return Device{}, err
	}

	return Device{
		bus:      bus,
		conn:     conn,
		resetPin: resetPin,
		busyPin:  busyPin,
		dio1Pin:  dio1Pin,
	}, nil
}

func (d *Device) Configure(cfg Config) error {
	// It is mandatory to set frequency.  Since permitted frequencies vary by
	// region there is no good global default.
	if cfg.Frequency == 0 {
		return ErrNoFrequency
	}
	if cfg.Frequency < 150000000 || cfg.Frequency > 960000000 {
		return ErrBadFrequency
	}

	// Default to high power (SX1262 PA)
	d.highPower = cfg.PowerMode != PowerModeLow

	d.preamble = cfg.PreambleLength
	if cfg.PreambleLength == 0 {
		d.preamble = 8 // default to Radiohead value
	}

	bandwidth := cfg.Bandwidth
	if cfg.Bandwidth == 0 {
		bandwidth = 125000 // default to RadioHead compatible Bw125Cr45Sf128 mode
	}

	codingRate := cfg.CodingRate
	if cfg.CodingRate == 0 {
		codingRate = 5 // default to RadioHead compatible Bw125Cr45Sf128 mode
	}

	spreadingFactor := cfg.SpreadingFactor
	if cfg.SpreadingFactor == 0 {
		spreadingFactor = 7 // default to RadioHead compatible Bw125Cr45Sf128 mode
	}

	// Default to CRC on
	d.crcOn = cfg.CRC != CrcModeOff

	syncWord := uint16(SYNC_WORD_PRIVATE)
	if cfg.Sync == SyncModePublic {
		syncWord = SYNC_WORD_PUBLIC
	}

	if d.dio1Pin != nil {
		d.dio1Pin.In(gpio.PullDown, gpio.RisingEdge)
	}

	d.reset()

	d.Standby()
	d.writeCommand(CMD_96_SET_REGULATOR_MODE, REGULATOR_DCDC)
	d.writeCommand(CMD_9D_SET_DIO2_AS_RF_SWITCH, 1)
	d.writeCommand(CMD_89_CALIBRATE, 0x7F) // all calibration blocks

	d.writeCommand(CMD_8A_SET_PACKET_TYPE, PACKET_TYPE_LORA)
	d.setFrequency(cfg.Frequency)

	// Use the entire 256 byte buffer for rx or tx, but not at the same time
	d.writeCommand(CMD_8F_SET_BUFFER_BASE_ADDRESS, 0x00, 0x00)

	d.setModulationParams(spreadingFactor, bandwidth, codingRate)
	d.writeRegister(REG_0740_LORA_SYNC_WORD_MSB, uint8(syncWord>>8), uint8(syncWord&0xFF))

	// Route every IRQ we classify to DIO1 and the status word
	irqMask := IRQ_ALL
	d.writeCommand(CMD_08_SET_DIO_IRQ_PARAMS,
		uint8(irqMask>>8), uint8(irqMask&0xFF), // IRQ mask
		uint8(irqMask>>8), uint8(irqMask&0xFF), // DIO1 mask
		0x00, 0x00, // DIO2
		0x00, 0x00) // DIO3

	// Set transmit power to 13 dBm, a safe value any module supports.
	if err := d.setTxPower(13); err != nil {
		return err
	}

	return d.err
}

// Detect checks the chip responds by writing a scratch value to the sync
// word register and reading it back.  There is no version register on
// this generation of silicon.
func (d *Device) Detect() bool {
	orig := d.readRegister(REG_0741_LORA_SYNC_WORD_LSB, 1)
	if len(orig) != 1 {
		return false
	}

	d.writeRegister(REG_0741_LORA_SYNC_WORD_LSB, 0xA5)
	got := d.readRegister(REG_0741_LORA_SYNC_WORD_LSB, 1)
	d.writeRegister(REG_0741_LORA_SYNC_WORD_LSB, orig[0])

	return d.err == nil && len(got) == 1 && got[0] == 0xA5
}

func (d *Device) Sleep() {
	// Warm start so the configuration is retained
	d.writeCommand(CMD_84_SET_SLEEP, 0x04)
}

func (d *Device) Standby() {
	d.writeCommand(CMD_80_SET_STANDBY, STDBY_RC)
}

// LastIrqStatus returns the raw IRQ snapshot of the last completed
// operation.  When a receive fails with the higher-priority error kind,
// the full bitmask is still available here for telemetry.
func (d *Device) LastIrqStatus() IrqStatus {
	return d.lastIrq
}

// LoraTx sends a lora packet, (with timeout)
func (d *Device) LoraTx(pkt []uint8, timeoutMs uint32) error {
	if d.err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, d.err)
	}
	if len(pkt) > 255 {
		return ErrPacketSize
	}

	d.Standby() // Standby required to write the buffer
	d.setPacketParams(uint8(len(pkt)))
	d.writeBuffer(0x00, pkt)
	d.clearIrqStatus(IRQ_ALL)
	d.writeCommand(CMD_83_SET_TX, 0x00, 0x00, 0x00) // no hardware timeout

	end := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	evt, ok := d.waitForIrq(IRQ_TX_DONE|IRQ_TIMEOUT, end)

	if d.err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, d.err)
	}
	if !ok || !evt.isTxDone() {
		return ErrTimeout
	}

	return nil
}

// LoraRx listens for a LoRa packet in continuous receive mode until the
// timeout (milliseconds) expires.
//
// On success the result is the payload in a freshly allocated buffer.
// Every failure is a typed error: ErrTimeout when nothing was received,
// ErrHeader/ErrCrc for frames the hardware flagged as corrupt, and
// ErrUnexpectedIrq if the status word matched nothing we recognise.
// After any failure the caller can simply re-listen; the radio is left
// in standby.
func (d *Device) LoraRx(timeoutMs uint32) ([]uint8, error) {
	pkt, err := d.rx(timeoutMs, nil, ModeRxContinuous)
	if err != nil {
		return nil, err
	}
	return pkt.Payload, nil
}

// LoraRxTo is LoraRx receiving into a caller-supplied buffer.  The
// returned length is valid only when the error is nil.
func (d *Device) LoraRxTo(timeoutMs uint32, buf []uint8) (int, error) {
	pkt, err := d.rx(timeoutMs, buf, ModeRxContinuous)
	if err != nil {
		return 0, err
	}

	return len(pkt.Payload), nil
}

// LoraRxPacket is LoraRx returning the payload together with the signal
// quality the hardware reported for the frame.
func (d *Device) LoraRxPacket(timeoutMs uint32) (*RxPacket, error) {
	return d.rx(timeoutMs, nil, ModeRxContinuous)
}

// LoraRxSingle performs a single-shot receive using the hardware
// symbol timeout, in which the chip itself raises the Timeout IRQ.
func (d *Device) LoraRxSingle(timeoutMs uint32) (*RxPacket, error) {
	return d.rx(timeoutMs, nil, ModeRxSingle)
}

// rx is the common implementation for the receive entry points.
//
// buf is optional, if not specified an allocation will occur.  Exactly
// one IRQ snapshot is classified per attempt, and the radio is forced
// back to standby before returning, so every new attempt re-arms
// explicitly.
func (d *Device) rx(timeoutMs uint32, buf []uint8, mode Mode) (*RxPacket, error) {
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, d.err)
	}

	d.Standby()
	d.setPacketParams(0xFF)
	d.clearIrqStatus(IRQ_ALL)

	if mode == ModeRxSingle {
		// Hardware timeout in steps of 15.625us
		steps := timeoutMs * 64
		if steps > RX_TIMEOUT_MAX {
			steps = RX_TIMEOUT_MAX
		}
		d.writeCommand(CMD_82_SET_RX, uint8(steps>>16), uint8(steps>>8), uint8(steps))
	} else {
		// Continuous mode so the chip can listen for long periods
		d.writeCommand(CMD_82_SET_RX,
			uint8(RX_CONTINUOUS>>16), uint8((RX_CONTINUOUS>>8)&0xFF), uint8(RX_CONTINUOUS&0xFF))
	}

	end := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	evt, ok := d.waitForIrq(IRQ_RX_DONE|IRQ_HEADER_ERR|IRQ_CRC_ERR|IRQ_TIMEOUT, end)

	// Force standby since in continuous mode a new packet could
	// otherwise overwrite the buffer while we read it
	d.Standby()

	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, d.err)
	}

	if !ok {
		// The wait deadline expired before the chip reported anything
		return nil, ErrTimeout
	}

	if err := classifyRx(evt, mode); err != nil {
		return nil, err
	}

	length, offset := d.rxBufferStatus()
	rssi, snr := d.packetStatus()

	if buf == nil {
		buf = make([]byte, length)
	} else {
		buf = buf[:minInt(int(length), len(buf))]
	}
	d.readBuffer(offset, buf)

	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, d.err)
	}

	return &RxPacket{Payload: buf, Rssi: rssi, Snr: snr}, nil
}

// waitForIrq waits until one of events appears in the IRQ status or the
// deadline passes.  The returned snapshot is the single status word the
// caller should classify; it has been cleared in the chip and recorded
// in lastIrq.
func (d *Device) waitForIrq(events IrqStatus, end time.Time) (IrqStatus, bool) {
	now := time.Now()

	for now.Before(end) && d.err == nil {
		var e IrqStatus

		if d.dio1Pin != nil {
			if d.dio1Pin.WaitForEdge(end.Sub(now)) {
				e = d.irqStatus()
			}
		} else {
			e = d.irqStatus()
		}

		if e&events != 0 {
			d.clearIrqStatus(e)
			d.lastIrq = e
			return e, true
		}

		now = time.Now()
	}

	return 0, false
}

func (d *Device) irqStatus() IrqStatus {
	v := d.readCommand(CMD_12_GET_IRQ_STATUS, 2)
	recordIrqTimestamp()
	if len(v) != 2 {
		return 0
	}
	return IrqStatus(v[0])<<8 | IrqStatus(v[1])
}

func (d *Device) clearIrqStatus(flags IrqStatus) {
	d.writeCommand(CMD_02_CLEAR_IRQ_STATUS, uint8(flags>>8), uint8(flags&0xFF))
}

func (d *Device) rxBufferStatus() (length uint8, offset uint8) {
	v := d.readCommand(CMD_13_GET_RX_BUFFER_STATUS, 2)
	if len(v) != 2 {
		return 0, 0
	}
	return v[0], v[1]
}

// packetStatus reads the signal quality of the last received frame:
// average RSSI in dBm and SNR in dB.
func (d *Device) packetStatus() (rssi int, snr int) {
	v := d.readCommand(CMD_14_GET_PACKET_STATUS, 3)
	if len(v) != 3 {
		return 0, 0
	}

	rssi = -int(v[0]) / 2
	snr = int(int8(v[1])) / 4
	return rssi, snr
}

func (d *Device) reset() {
	d.resetPin.Out(gpio.Low)
	time.Sleep(100 * time.Microsecond)
	d.resetPin.Out(gpio.High)
	time.Sleep(5 * time.Millisecond)
	d.waitBusy()
}

func (d *Device) setFrequency(freq uint32) {
	// RF frequency is in steps of FXOSC/2^25.  Do the calculation as 64
	// bit unsigned to avoid floating point.
	frf := uint32((uint64(freq) << 25) / FXOSC)

	d.writeCommand(CMD_86_SET_RF_FREQUENCY,
		uint8(frf>>24), uint8(frf>>16), uint8(frf>>8), uint8(frf))
}

func (d *Device) setModulationParams(sf uint8, bw int, cr uint8) {
	sf = min(max(sf, 5), 12)
	cr = min(max(cr, 5), 8)

	bwCode := uint8(0x06)
	for _, b := range bwCodes {
		if bw <= b.hz {
			bwCode = b.code
			break
		}
	}

	// Low data rate optimization is mandated for symbol durations
	// beyond 16ms
	ldro := uint8(0)
	if sf >= 11 && bw <= 125000 || sf >= 12 && bw <= 250000 {
		ldro = 1
	}

	d.writeCommand(CMD_8B_SET_MODULATION_PARAMS, sf, bwCode, cr-4, ldro)
}

func (d *Device) setPacketParams(payloadLen uint8) {
	crc := uint8(CRC_OFF)
	if d.crcOn {
		crc = CRC_ON
	}

	d.writeCommand(CMD_8C_SET_PACKET_PARAMS,
		uint8(d.preamble>>8), uint8(d.preamble&0xFF),
		HEADER_TYPE_EXPLICIT,
		payloadLen,
		crc,
		IQ_STANDARD)
}

func (d *Device) setTxPower(db int) error {
	if d.highPower {
		if db < -9 || db > 22 {
			return ErrTxPowerRange
		}

		// SX1262: duty cycle 0x04, hpMax 0x07 per datasheet table 13-21
		d.writeCommand(CMD_95_SET_PA_CONFIG, 0x04, 0x07, 0x00, 0x01)
	} else {
		if db < -17 || db > 15 {
			return ErrTxPowerRange
		}

		// SX1261
		d.writeCommand(CMD_95_SET_PA_CONFIG, 0x01, 0x00, 0x01, 0x01)
	}

	d.writeCommand(CMD_8E_SET_TX_PARAMS, uint8(int8(db)), PA_RAMP_200US)

	return nil
}

// waitBusy blocks until the chip is ready to accept a command.  A stuck
// busy line poisons the device like an SPI failure would.
func (d *Device) waitBusy() {
	deadline := time.Now().Add(100 * time.Millisecond)

	for d.busyPin.Read() == gpio.High {
		if time.Now().After(deadline) {
			if d.err == nil {
				d.err = errors.New("busy line stuck high")
			}
			return
		}
		time.Sleep(10 * time.Microsecond)
	}
}

func (d *Device) writeCommand(op uint8, args ...uint8) {
	if d.err != nil {
		return
	}
	d.waitBusy()

	buf := make([]byte, len(args)+1)
	buf[0] = op
	copy(buf[1:], args)

	if err := d.conn.Tx(buf, buf); err != nil {
		d.err = err
	}
}

// readCommand sends op and returns n reply bytes.  The first byte
// clocked back after the opcode is the chip status and is discarded.
func (d *Device) readCommand(op uint8, n int) []uint8 {
	if d.err != nil {
		return nil
	}
	d.waitBusy()

	buf := make([]byte, n+2)
	buf[0] = op

	if err := d.conn.Tx(buf, buf); err != nil {
		d.err = err
		return nil
	}

	return buf[2:]
}

func (d *Device) writeRegister(addr uint16, vals ...uint8) {
	if d.err != nil {
		return
	}
	d.waitBusy()

	buf := make([]byte, len(vals)+3)
	buf[0] = CMD_0D_WRITE_REGISTER
	buf[1] = uint8(addr >> 8)
	buf[2] = uint8(addr & 0xFF)
	copy(buf[3:], vals)

	if err := d.conn.Tx(buf, buf); err != nil {
		d.err = err
	}
}

func (d *Device) readRegister(addr uint16, n int) []uint8 {
	if d.err != nil {
		return nil
	}
	d.waitBusy()

	buf := make([]byte, n+4)
	buf[0] = CMD_1D_READ_REGISTER
	buf[1] = uint8(addr >> 8)
	buf[2] = uint8(addr & 0xFF)

	if err := d.conn.Tx(buf, buf); err != nil {
		d.err = err
		return nil
	}

	return buf[4:]
}

func (d *Device) writeBuffer(offset uint8, data []byte) {
	if d.err != nil {
		return
	}
	d.waitBusy()

	buf := make([]byte, len(data)+2)
	buf[0] = CMD_0E_WRITE_BUFFER
	buf[1] = offset
	copy(buf[2:], data)

	if err := d.conn.Tx(buf, buf); err != nil {
		d.err = err
	}
}

func (d *Device) readBuffer(offset uint8, data []byte) {
	if d.err != nil {
		return
	}
	d.waitBusy()

	buf := make([]byte, len(data)+3)
	buf[0] = CMD_1E_READ_BUFFER
	buf[1] = offset

	if err := d.conn.Tx(buf, buf); err != nil {
		d.err = err
		return
	}

	copy(data, buf[3:])
}

func min(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

func max(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
