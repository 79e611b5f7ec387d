//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"

	"github.com/itohio/timerchain/pkg/usart"
)

const usart1Base = 0x40013800

type usartRegs struct {
	SR   volatile.Register32
	DR   volatile.Register32
	BRR  volatile.Register32
	CR1  volatile.Register32
	CR2  volatile.Register32
	CR3  volatile.Register32
	GTPR volatile.Register32
}

const (
	usartSR_TC  = 1 << 6
	usartSR_TXE = 1 << 7

	usartCR1_RE  = 1 << 2
	usartCR1_TE  = 1 << 3
	usartCR1_PS  = 1 << 9
	usartCR1_PCE = 1 << 10
	usartCR1_M   = 1 << 12
	usartCR1_UE  = 1 << 13

	usartCR2_LBCL      = 1 << 8
	usartCR2_CPHA      = 1 << 9
	usartCR2_CPOL      = 1 << 10
	usartCR2_CLKEN     = 1 << 11
	usartCR2_STOP_Pos  = 12
	usartCR2_ClockBits = usartCR2_LBCL | usartCR2_CPHA | usartCR2_CPOL | usartCR2_CLKEN
)

type gpioRegs struct {
	CRL volatile.Register32
	CRH volatile.Register32
	IDR volatile.Register32
	ODR volatile.Register32
}

const (
	gpioAFPushPull50MHz = 0xB // CNF=10 MODE=11
	gpioInputFloating   = 0x4 // CNF=01 MODE=00
)

var (
	gpioa  = (*gpioRegs)(unsafe.Pointer(uintptr(gpioaBase)))
	usart1 = &usartPort{regs: (*usartRegs)(unsafe.Pointer(uintptr(usart1Base)))}
)

var _ usart.Port = (*usartPort)(nil)

// usartPort is USART1 polled, no interrupts.
type usartPort struct {
	regs *usartRegs
}

// configurePins puts CK and TX in alternate function push-pull and RX in
// floating input.
func configurePins() {
	crh := gpioa.CRH.Get()
	for _, p := range []struct {
		pin  uint32
		mode uint32
	}{
		{PIN_USART1_CK, gpioAFPushPull50MHz},
		{PIN_USART1_TX, gpioAFPushPull50MHz},
		{PIN_USART1_RX, gpioInputFloating},
	} {
		shift := (p.pin - 8) * 4
		crh = crh&^(0xF<<shift) | p.mode<<shift
	}
	gpioa.CRH.Set(crh)
}

// Disable waits for a frame in flight to finish, then clears UE. The runtime
// has USART1 running when main starts.
func (u *usartPort) Disable() {
	if u.regs.CR1.HasBits(usartCR1_UE) {
		for !u.regs.SR.HasBits(usartSR_TC) {
		}
	}
	u.regs.CR1.ClearBits(usartCR1_UE | usartCR1_TE | usartCR1_RE)
}

// ConfigureSyncClock must run while UE and TE are clear.
func (u *usartPort) ConfigureSyncClock(clk usart.SyncClock) {
	var cr2 uint32
	if clk.Enable {
		cr2 |= usartCR2_CLKEN
	}
	if clk.Polarity == usart.PolarityHigh {
		cr2 |= usartCR2_CPOL
	}
	if clk.Phase == usart.Phase2Edge {
		cr2 |= usartCR2_CPHA
	}
	if clk.LastBitClock {
		cr2 |= usartCR2_LBCL
	}
	u.regs.CR2.Set(u.regs.CR2.Get()&^usartCR2_ClockBits | cr2)
}

func (u *usartPort) Configure(cfg usart.Config) {
	u.regs.CR2.ReplaceBits(uint32(cfg.StopBits), 0x3, usartCR2_STOP_Pos)

	cr1 := u.regs.CR1.Get() &^ (usartCR1_M | usartCR1_PCE | usartCR1_PS | usartCR1_TE | usartCR1_RE)
	if cfg.WordLength == usart.Word9 {
		cr1 |= usartCR1_M
	}
	switch cfg.Parity {
	case usart.ParityEven:
		cr1 |= usartCR1_PCE
	case usart.ParityOdd:
		cr1 |= usartCR1_PCE | usartCR1_PS
	}
	if cfg.Mode&usart.ModeTX != 0 {
		cr1 |= usartCR1_TE
	}
	if cfg.Mode&usart.ModeRX != 0 {
		cr1 |= usartCR1_RE
	}
	u.regs.CR1.Set(cr1)

	u.regs.BRR.Set(usart.BRR(PCLK2_HZ, cfg.BaudRate))
}

func (u *usartPort) Enable() {
	u.regs.CR1.SetBits(usartCR1_UE)
}

func (u *usartPort) TxEmpty() bool {
	return u.regs.SR.HasBits(usartSR_TXE)
}

func (u *usartPort) WriteData(b byte) {
	u.regs.DR.Set(uint32(b))
}
