//go:build stm32f103

//go:generate tinygo flash -target=bluepill

package main

import (
	"github.com/itohio/timerchain/pkg/chain"
	"github.com/itohio/timerchain/pkg/hal"
	"github.com/itohio/timerchain/pkg/report"
	"github.com/itohio/timerchain/pkg/usart"
)

func main() {
	enableClocks()
	configurePins()

	cfg := usart.Default()
	cfg.BaudRate = UART_BAUD_RATE
	out := usart.Setup(usart1, cfg)

	// TIM2 is the master and must run before TIM1 is put in slave mode.
	counter := chain.Init(tim2, tim1, chain.Config{
		MasterDivider: MASTER_DIVIDER,
		MasterCeiling: MASTER_CEILING,
		Trigger:       hal.ITR1, // TIM1 ITR1 = TIM2 TRGO
	})

	report.Run(counter, out)
}
