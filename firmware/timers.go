//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"

	"github.com/itohio/timerchain/pkg/hal"
)

// STM32F1 peripheral memory map
const (
	tim1Base  = 0x40012C00
	tim2Base  = 0x40000000
	rccBase   = 0x40021000
	gpioaBase = 0x40010800
)

// Timer register block up to RCR. The layout is shared by TIM1 and TIM2..TIM5;
// RCR is reserved on the general purpose timers.
type timRegs struct {
	CR1   volatile.Register32
	CR2   volatile.Register32
	SMCR  volatile.Register32
	DIER  volatile.Register32
	SR    volatile.Register32
	EGR   volatile.Register32
	CCMR1 volatile.Register32
	CCMR2 volatile.Register32
	CCER  volatile.Register32
	CNT   volatile.Register32
	PSC   volatile.Register32
	ARR   volatile.Register32
	RCR   volatile.Register32
}

const (
	timCR1_CEN  = 1 << 0
	timCR1_DIR  = 1 << 4
	timCR1_ARPE = 1 << 7

	timCR2_MMS_Pos  = 4
	timSMCR_SMS_Pos = 0
	timSMCR_TS_Pos  = 4

	timSMS_External1 = 0x7

	timEGR_UG = 1 << 0
)

type rccRegs struct {
	CR       volatile.Register32
	CFGR     volatile.Register32
	CIR      volatile.Register32
	APB2RSTR volatile.Register32
	APB1RSTR volatile.Register32
	AHBENR   volatile.Register32
	APB2ENR  volatile.Register32
	APB1ENR  volatile.Register32
}

const (
	rccAPB2ENR_AFIOEN   = 1 << 0
	rccAPB2ENR_IOPAEN   = 1 << 2
	rccAPB2ENR_TIM1EN   = 1 << 11
	rccAPB2ENR_USART1EN = 1 << 14
	rccAPB1ENR_TIM2EN   = 1 << 0
)

var (
	rcc = (*rccRegs)(unsafe.Pointer(uintptr(rccBase)))

	// TIM3 and TIM4 belong to the TinyGo runtime (sleep and tick timers), so
	// the slave is the advanced timer TIM1.
	tim1 = &gpTimer{regs: (*timRegs)(unsafe.Pointer(uintptr(tim1Base))), advanced: true}
	tim2 = &gpTimer{regs: (*timRegs)(unsafe.Pointer(uintptr(tim2Base)))}
)

var (
	_ hal.MasterTimer = (*gpTimer)(nil)
	_ hal.SlaveTimer  = (*gpTimer)(nil)
)

// gpTimer drives one timer in its counting role. The same block can act as
// master or slave; which role it plays depends on the calls made on it.
type gpTimer struct {
	regs     *timRegs
	advanced bool // TIM1/TIM8: has a repetition counter
}

func enableClocks() {
	rcc.APB2ENR.SetBits(rccAPB2ENR_AFIOEN | rccAPB2ENR_IOPAEN | rccAPB2ENR_TIM1EN | rccAPB2ENR_USART1EN)
	rcc.APB1ENR.SetBits(rccAPB1ENR_TIM2EN)
}

// ConfigureTimeBase loads the prescaler and auto-reload and forces an update
// so the buffered prescaler and repetition count take effect before the
// counter starts. RepetitionCount is ignored on timers without RCR.
func (t *gpTimer) ConfigureTimeBase(tb hal.TimeBase) {
	cr1 := t.regs.CR1.Get() &^ (timCR1_DIR | timCR1_CEN)
	if tb.Mode == hal.CountDown {
		cr1 |= timCR1_DIR
	}
	t.regs.CR1.Set(cr1 | timCR1_ARPE)
	t.regs.ARR.Set(uint32(tb.Ceiling))
	t.regs.PSC.Set(uint32(tb.Divider))
	if t.advanced {
		t.regs.RCR.Set(uint32(tb.RepetitionCount))
	}
	t.regs.EGR.Set(timEGR_UG)
	t.regs.SR.Set(0)
}

func (t *gpTimer) ConfigureMasterMode(mode hal.MasterMode) {
	var mms uint32
	switch mode {
	case hal.MasterReset:
		mms = 0
	case hal.MasterEnable:
		mms = 1
	case hal.MasterUpdate:
		mms = 2
	}
	t.regs.CR2.ReplaceBits(mms, 0x7, timCR2_MMS_Pos)
}

func (t *gpTimer) ConfigureTrigger(src hal.TriggerSource) {
	t.regs.SMCR.ReplaceBits(uint32(src), 0x7, timSMCR_TS_Pos)
}

func (t *gpTimer) ConfigureSlaveMode(mode hal.SlaveMode) {
	var sms uint32
	if mode == hal.SlaveExternalClock1 {
		sms = timSMS_External1
	}
	t.regs.SMCR.ReplaceBits(sms, 0x7, timSMCR_SMS_Pos)
}

func (t *gpTimer) Enable() {
	t.regs.CR1.SetBits(timCR1_CEN)
}

func (t *gpTimer) Counter() uint16 {
	return uint16(t.regs.CNT.Get())
}
