package sx126x

// Command opcodes, from the SX1261/2 datasheet chapter 13.
const (
	CMD_02_CLEAR_IRQ_STATUS        = 0x02
	CMD_07_CLEAR_DEVICE_ERRORS     = 0x07
	CMD_08_SET_DIO_IRQ_PARAMS      = 0x08
	CMD_11_GET_PACKET_TYPE         = 0x11
	CMD_12_GET_IRQ_STATUS          = 0x12
	CMD_13_GET_RX_BUFFER_STATUS    = 0x13
	CMD_14_GET_PACKET_STATUS       = 0x14
	CMD_17_GET_DEVICE_ERRORS       = 0x17
	CMD_0D_WRITE_REGISTER          = 0x0D
	CMD_0E_WRITE_BUFFER            = 0x0E
	CMD_1D_READ_REGISTER           = 0x1D
	CMD_1E_READ_BUFFER             = 0x1E
	CMD_80_SET_STANDBY             = 0x80
	CMD_82_SET_RX                  = 0x82
	CMD_83_SET_TX                  = 0x83
	CMD_84_SET_SLEEP               = 0x84
	CMD_86_SET_RF_FREQUENCY        = 0x86
	CMD_89_CALIBRATE               = 0x89
	CMD_8A_SET_PACKET_TYPE         = 0x8A
	CMD_8B_SET_MODULATION_PARAMS   = 0x8B
	CMD_8C_SET_PACKET_PARAMS       = 0x8C
	CMD_8E_SET_TX_PARAMS           = 0x8E
	CMD_8F_SET_BUFFER_BASE_ADDRESS = 0x8F
	CMD_93_SET_RX_TX_FALLBACK_MODE = 0x93
	CMD_95_SET_PA_CONFIG           = 0x95
	CMD_96_SET_REGULATOR_MODE      = 0x96
	CMD_97_SET_DIO3_AS_TCXO_CTRL   = 0x97
	CMD_98_CALIBRATE_IMAGE         = 0x98
	CMD_9D_SET_DIO2_AS_RF_SWITCH   = 0x9D
	CMD_9F_STOP_TIMER_ON_PREAMBLE  = 0x9F
	CMD_A0_SET_LORA_SYMB_TIMEOUT   = 0xA0
	CMD_C0_GET_STATUS              = 0xC0
)

// Registers reachable via ReadRegister/WriteRegister.
const (
	REG_0740_LORA_SYNC_WORD_MSB = 0x0740
	REG_0741_LORA_SYNC_WORD_LSB = 0x0741
	REG_08AC_RX_GAIN            = 0x08AC
	REG_08E7_OCP                = 0x08E7
	REG_0911_XTA_TRIM           = 0x0911
)

const (
	PACKET_TYPE_GFSK = 0x00
	PACKET_TYPE_LORA = 0x01

	STDBY_RC   = 0x00
	STDBY_XOSC = 0x01

	REGULATOR_LDO  = 0x00
	REGULATOR_DCDC = 0x01

	HEADER_TYPE_EXPLICIT = 0x00
	HEADER_TYPE_IMPLICIT = 0x01

	CRC_OFF = 0x00
	CRC_ON  = 0x01

	IQ_STANDARD = 0x00
	IQ_INVERTED = 0x01

	PA_RAMP_200US = 0x04

	// LoRa sync words per the datasheet (register 0x0740/0x0741)
	SYNC_WORD_PRIVATE = 0x1424
	SYNC_WORD_PUBLIC  = 0x3444

	// SetRx timeout field: 23.4.  0 is single-shot with no timeout,
	// 0xFFFFFF listens until explicitly stopped.  One step is 15.625us.
	RX_CONTINUOUS        = 0xFFFFFF
	RX_SINGLE_NO_TIMEOUT = 0x000000
	RX_TIMEOUT_MAX       = 0xFFFFFE

	// Crystal oscillator frequency (Hz).  RF frequency is programmed
	// in steps of FXOSC / 2^25.
	FXOSC = 32000000
)

// LoRa modem bandwidth codes.  The register encoding is not monotonic
// in bandwidth, so keep an explicit table.
var bwCodes = []struct {
	hz   int
	code uint8
}{
	{7800, 0x00},
	{10400, 0x08},
	{15600, 0x01},
	{20800, 0x09},
	{31250, 0x02},
	{41700, 0x0A},
	{62500, 0x03},
	{125000, 0x04},
	{250000, 0x05},
	{500000, 0x06},
}
